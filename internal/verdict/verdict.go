package verdict

import "math"

// Labels reported in verdicts.
const (
	LabelAIImage   = "AI Generated"
	LabelRealImage = "Real Image"
	LabelAIVideo   = "AI Generated Video"
	LabelRealVideo = "Real Video"
)

// Input types reported alongside a verdict.
const (
	InputImage = "image"
	InputVideo = "video"
)

// ProviderMainModel tags verdicts produced by the local classifier.
const ProviderMainModel = "main_model"

// ProbabilityTolerance bounds how far ai+real may drift from 1.
const ProbabilityTolerance = 1e-6

// ClassificationResult is the verdict for one still image.
type ClassificationResult struct {
	IsAI            bool    `json:"is_ai"`
	Confidence      float64 `json:"confidence"`
	Label           string  `json:"label"`
	AIProbability   float64 `json:"ai_probability"`
	RealProbability float64 `json:"real_probability"`
}

// VideoVerdict aggregates the per-frame results of a sampled video.
type VideoVerdict struct {
	ClassificationResult
	InputType         string  `json:"input_type"`
	SampledFrames     int     `json:"sampled_frames"`
	AIFrames          int     `json:"ai_frames"`
	RealFrames        int     `json:"real_frames"`
	SampleIntervalSec float64 `json:"sample_interval_sec"`
	DurationSeconds   float64 `json:"duration_seconds"`
}

// ProviderVerdict is the normalized answer of a secondary provider.
type ProviderVerdict struct {
	ClassificationResult
	Reason   string `json:"reason"`
	Provider string `json:"provider"`
}

// ImageLabel maps the binary decision to an image label.
func ImageLabel(isAI bool) string {
	if isAI {
		return LabelAIImage
	}
	return LabelRealImage
}

// VideoLabel maps the binary decision to a video label.
func VideoLabel(isAI bool) string {
	if isAI {
		return LabelAIVideo
	}
	return LabelRealVideo
}

// Complementary reports whether ai and real sum to one within tolerance.
func Complementary(ai, real float64) bool {
	return math.Abs(ai+real-1) <= ProbabilityTolerance
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
