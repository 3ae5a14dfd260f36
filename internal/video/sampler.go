package video

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/truthvision/truthvision/internal/verdict"
)

const (
	msgUnreadable   = "Unable to read video file."
	msgInvalidVideo = "Failed to process video. Make sure this is a valid video file."
)

// FrameClassifier classifies one decoded frame.
type FrameClassifier interface {
	Classify(img image.Image) (verdict.ClassificationResult, error)
}

// Sampler decodes an uploaded video, classifies every stride-th frame and
// aggregates the results.
type Sampler struct {
	decoder    Decoder
	classifier FrameClassifier
	tempDir    string
	workers    int
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithTempDir sets where uploads are spooled. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(s *Sampler) { s.tempDir = dir }
}

// WithWorkers classifies sampled frames on n goroutines. Decoding stays
// sequential and the aggregate is the same as with one worker.
func WithWorkers(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSampler builds a sampler over the given decoder and frame classifier.
func NewSampler(dec Decoder, cls FrameClassifier, opts ...Option) *Sampler {
	s := &Sampler{
		decoder:    dec,
		classifier: cls,
		workers:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze samples one frame every interval seconds and returns the
// aggregated verdict. Once started it runs to completion regardless of ctx
// cancellation. The spooled temp file is removed on every path.
func (s *Sampler) Analyze(ctx context.Context, data []byte, mimeType string, interval float64) (verdict.VideoVerdict, error) {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	path, err := s.spool(data, mimeType)
	if err != nil {
		return verdict.VideoVerdict{}, err
	}
	defer os.Remove(path)

	stream, err := s.decoder.Open(ctx, path)
	if err != nil {
		var kerr *verdict.Error
		if errors.As(err, &kerr) {
			return verdict.VideoVerdict{}, err
		}
		return verdict.VideoVerdict{}, verdict.E(verdict.InvalidInput, msgUnreadable, err)
	}
	defer stream.Close()

	info := stream.Info()
	stride := FrameStride(info.FPS, interval)

	var frames []verdict.ClassificationResult
	var decoded int
	if s.workers > 1 {
		frames, decoded, err = s.sampleConcurrent(ctx, stream, stride)
	} else {
		frames, decoded, err = s.sampleSequential(stream, stride)
	}
	if err != nil {
		return verdict.VideoVerdict{}, err
	}

	v, err := Aggregate(frames, interval, Duration(info.FrameCount, info.FPS))
	if err != nil {
		return verdict.VideoVerdict{}, err
	}

	logrus.WithFields(logrus.Fields{
		"fps":            info.FPS,
		"frame_count":    info.FrameCount,
		"decoded_frames": decoded,
		"stride":         stride,
		"sampled_frames": v.SampledFrames,
		"ai_frames":      v.AIFrames,
		"workers":        s.workers,
		"elapsed_ms":     time.Since(start).Milliseconds(),
	}).Debug("video analyzed")
	return v, nil
}

func (s *Sampler) sampleSequential(stream Stream, stride int) ([]verdict.ClassificationResult, int, error) {
	var frames []verdict.ClassificationResult
	idx := 0
	for ; ; idx++ {
		if err := stream.Advance(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, idx, verdict.E(verdict.InvalidInput, msgInvalidVideo, err)
		}
		if idx%stride != 0 {
			continue
		}
		res, err := s.classifyFrame(stream)
		if err != nil {
			return nil, idx, err
		}
		frames = append(frames, res)
	}
	return frames, idx, nil
}

// sampleConcurrent keeps decoding on the calling goroutine and hands sampled
// frames to a bounded errgroup. Results land in per-sample slots so they are
// aggregated in sample order.
func (s *Sampler) sampleConcurrent(ctx context.Context, stream Stream, stride int) ([]verdict.ClassificationResult, int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var slots []*verdict.ClassificationResult
	idx := 0
	var decodeErr error
	for ; gctx.Err() == nil; idx++ {
		if err := stream.Advance(); err != nil {
			if !errors.Is(err, io.EOF) {
				decodeErr = verdict.E(verdict.InvalidInput, msgInvalidVideo, err)
			}
			break
		}
		if idx%stride != 0 {
			continue
		}
		img, err := stream.Frame()
		if err != nil {
			decodeErr = verdict.E(verdict.InvalidInput, msgInvalidVideo, err)
			break
		}
		slot := new(verdict.ClassificationResult)
		slots = append(slots, slot)
		g.Go(func() error {
			res, err := s.classifier.Classify(img)
			if err != nil {
				return verdict.E(verdict.InvalidInput, msgInvalidVideo, err)
			}
			*slot = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, idx, err
	}
	if decodeErr != nil {
		return nil, idx, decodeErr
	}

	frames := make([]verdict.ClassificationResult, len(slots))
	for i, slot := range slots {
		frames[i] = *slot
	}
	return frames, idx, nil
}

func (s *Sampler) classifyFrame(stream Stream) (verdict.ClassificationResult, error) {
	img, err := stream.Frame()
	if err != nil {
		return verdict.ClassificationResult{}, verdict.E(verdict.InvalidInput, msgInvalidVideo, err)
	}
	res, err := s.classifier.Classify(img)
	if err != nil {
		return verdict.ClassificationResult{}, verdict.E(verdict.InvalidInput, msgInvalidVideo, err)
	}
	return res, nil
}

// spool writes the upload to a private temp file named after its container type.
func (s *Sampler) spool(data []byte, mimeType string) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "upload-*"+extensionFor(mimeType))
	if err != nil {
		return "", verdict.E(verdict.Unexpected, "create temp file", err)
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", verdict.E(verdict.Unexpected, "write temp file", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", verdict.E(verdict.Unexpected, "close temp file", err)
	}
	return path, nil
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	case "video/x-matroska":
		return ".mkv"
	case "video/x-msvideo":
		return ".avi"
	default:
		return ".mp4"
	}
}
