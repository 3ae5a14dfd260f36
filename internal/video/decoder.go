// Package video samples frames from uploaded videos and aggregates their
// per-frame verdicts.
package video

import (
	"context"
	"image"
)

// StreamInfo describes the primary video stream of a container.
type StreamInfo struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int64 // 0 when the container does not report it
}

// Decoder opens a video file for sequential decoding.
type Decoder interface {
	Open(ctx context.Context, path string) (Stream, error)
}

// Stream yields decoded frames in presentation order.
type Stream interface {
	Info() StreamInfo
	// Advance decodes the next frame. It returns io.EOF after the last one.
	Advance() error
	// Frame materializes the most recently decoded frame. The returned image
	// is owned by the caller.
	Frame() (image.Image, error)
	Close() error
}
