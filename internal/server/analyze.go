package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/truthvision/truthvision/internal/telemetry"
	"github.com/truthvision/truthvision/internal/verdict"
)

const (
	inputTypeKey      = "input_type"
	multipartOverhead = 1 << 20

	msgInternal    = "An internal server error occurred. Please try again later."
	msgMissingFile = "Field 'file' is required."
)

var (
	imageTypes = []string{"image/jpeg", "image/png", "image/webp"}
	videoTypes = []string{"video/mp4", "video/webm", "video/quicktime", "video/x-matroska", "video/x-msvideo"}
)

type imageResponse struct {
	verdict.ClassificationResult
	InputType string `json:"input_type"`
	Provider  string `json:"provider"`
}

type videoResponse struct {
	verdict.VideoVerdict
	Provider string `json:"provider"`
}

func isVideoType(t string) bool {
	return contains(videoTypes, t)
}

func isAcceptedType(t string) bool {
	return contains(imageTypes, t) || contains(videoTypes, t)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// declaredType returns the lowercased media type of a part, without parameters.
func declaredType(raw string) string {
	raw = strings.TrimSpace(raw)
	if mt, _, err := mime.ParseMediaType(raw); err == nil {
		return mt
	}
	return strings.ToLower(raw)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	start := time.Now()
	ctx, span := s.telemetry.Tracer().Start(c.Request.Context(), "truthvision.analyze")
	defer span.End()

	log := requestLogger(c)
	inputType := ""
	frames := 0
	outcome := "ok"
	defer func() {
		s.telemetry.RecordAnalysis(ctx, inputType, outcome, elapsedMs(start), frames)
	}()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxVideoBytes+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			outcome = "too_large"
			writeDetail(c, http.StatusRequestEntityTooLarge, sizeDetail(s.cfg.MaxVideoBytes))
			return
		}
		outcome = "missing_file"
		log.WithError(err).Debug("no file in analyze request")
		writeDetail(c, http.StatusUnprocessableEntity, msgMissingFile)
		return
	}

	mediaType := declaredType(fh.Header.Get("Content-Type"))
	limit := s.cfg.MaxImageBytes
	if isVideoType(mediaType) {
		limit = s.cfg.MaxVideoBytes
	}
	if fh.Size > limit {
		outcome = "too_large"
		writeDetail(c, http.StatusRequestEntityTooLarge, sizeDetail(limit))
		return
	}
	if !isAcceptedType(mediaType) {
		outcome = "unsupported_type"
		writeDetail(c, http.StatusUnsupportedMediaType, "Unsupported file type. Allowed formats: "+strings.Join(append(append([]string{}, imageTypes...), videoTypes...), ", "))
		return
	}

	inputType = verdict.InputImage
	if isVideoType(mediaType) {
		inputType = verdict.InputVideo
	}
	c.Set(inputTypeKey, inputType)
	span.SetAttributes(telemetry.SafeAttributes(map[string]interface{}{
		"truthvision.input_type": inputType,
		"truthvision.media_type": mediaType,
		"truthvision.size_bytes": fh.Size,
	})...)

	data, err := readUpload(fh)
	if err != nil {
		outcome = verdict.Unexpected.String()
		log.WithError(err).Error("read upload")
		span.SetStatus(codes.Error, "read upload")
		writeDetail(c, http.StatusInternalServerError, msgInternal)
		return
	}

	var body any
	if inputType == verdict.InputVideo {
		var v verdict.VideoVerdict
		if s.videos == nil {
			err = verdict.E(verdict.Configuration, "video analysis is not configured", nil)
		} else {
			v, err = s.videos.Analyze(ctx, data, mediaType, s.interval)
		}
		frames = v.SampledFrames
		body = videoResponse{VideoVerdict: v, Provider: verdict.ProviderMainModel}
	} else {
		var r verdict.ClassificationResult
		if s.images == nil {
			err = verdict.E(verdict.Configuration, "image analysis is not configured", nil)
		} else {
			r, err = s.images.ClassifyBytes(data)
		}
		body = imageResponse{ClassificationResult: r, InputType: verdict.InputImage, Provider: verdict.ProviderMainModel}
	}
	if err != nil {
		kind := verdict.KindOf(err)
		outcome = kind.String()
		span.SetStatus(codes.Error, outcome)
		s.writeAnalysisError(c, span, err)
		return
	}

	span.SetAttributes(attribute.Int("truthvision.sampled_frames", frames))
	c.JSON(http.StatusOK, body)
}

func (s *Server) writeAnalysisError(c *gin.Context, span trace.Span, err error) {
	log := requestLogger(c).WithField("kind", verdict.KindOf(err).String())
	if verdict.KindOf(err) == verdict.InvalidInput {
		log.WithError(err).Info("rejected upload")
		writeDetail(c, http.StatusUnprocessableEntity, verdict.Message(err, "Invalid input."))
		return
	}
	span.RecordError(err)
	log.WithError(err).Error("analysis failed")
	writeDetail(c, http.StatusInternalServerError, msgInternal)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func sizeDetail(limit int64) string {
	return fmt.Sprintf("File size must not exceed %.0fMB.", float64(limit)/1024/1024)
}
