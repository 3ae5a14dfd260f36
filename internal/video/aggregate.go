package video

import (
	"github.com/truthvision/truthvision/internal/verdict"
)

const msgNoFrames = "No frames were extracted from the video."

// Aggregate folds per-frame results, in sample order, into one verdict.
// Probabilities and confidence are means; is_ai is a strict frame majority.
func Aggregate(frames []verdict.ClassificationResult, interval, duration float64) (verdict.VideoVerdict, error) {
	if len(frames) == 0 {
		return verdict.VideoVerdict{}, verdict.InvalidInputf(msgNoFrames)
	}

	var aiFrames int
	var confidenceSum, aiSum float64
	for _, f := range frames {
		if f.IsAI {
			aiFrames++
		}
		confidenceSum += f.Confidence
		aiSum += f.AIProbability
	}

	n := float64(len(frames))
	ai := aiSum / n
	isAI := float64(aiFrames)/n > 0.5

	return verdict.VideoVerdict{
		ClassificationResult: verdict.ClassificationResult{
			IsAI:            isAI,
			Confidence:      confidenceSum / n,
			Label:           verdict.VideoLabel(isAI),
			AIProbability:   ai,
			RealProbability: 1 - ai,
		},
		InputType:         verdict.InputVideo,
		SampledFrames:     len(frames),
		AIFrames:          aiFrames,
		RealFrames:        len(frames) - aiFrames,
		SampleIntervalSec: interval,
		DurationSeconds:   verdict.Round2(duration),
	}, nil
}
