package video

import "math"

// DefaultFPS is assumed when the container reports no usable frame rate.
const DefaultFPS = 25.0

// DefaultSampleInterval is the spacing between sampled frames, in seconds.
const DefaultSampleInterval = 1.0

// EffectiveFPS replaces a missing or non-positive frame rate with DefaultFPS.
func EffectiveFPS(fps float64) float64 {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return DefaultFPS
	}
	return fps
}

// MaxStride bounds FrameStride so the float-to-int conversion cannot
// overflow. A stride past the last frame samples only frame 0.
const MaxStride = math.MaxInt32

// FrameStride is the number of decoded frames between two samples. Halves
// round to even.
func FrameStride(fps, interval float64) int {
	raw := math.RoundToEven(EffectiveFPS(fps) * interval)
	switch {
	case math.IsNaN(raw) || raw < 1:
		return 1
	case raw > MaxStride:
		return MaxStride
	}
	return int(raw)
}

// Duration is totalFrames/fps, or 0 when the frame count is unknown.
func Duration(totalFrames int64, fps float64) float64 {
	if totalFrames <= 0 {
		return 0
	}
	return float64(totalFrames) / EffectiveFPS(fps)
}
