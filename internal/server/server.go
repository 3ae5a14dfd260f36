package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/truthvision/truthvision/internal/config"
	"github.com/truthvision/truthvision/internal/telemetry"
	"github.com/truthvision/truthvision/internal/verdict"
)

// ImageClassifier classifies one encoded still image.
type ImageClassifier interface {
	ClassifyBytes(data []byte) (verdict.ClassificationResult, error)
}

// VideoAnalyzer samples and classifies an encoded video.
type VideoAnalyzer interface {
	Analyze(ctx context.Context, data []byte, mimeType string, interval float64) (verdict.VideoVerdict, error)
}

// Deps are the analysis backends the gateway dispatches to.
type Deps struct {
	Images    ImageClassifier
	Videos    VideoAnalyzer
	Telemetry *telemetry.Provider
}

// Server wraps the HTTP gateway.
type Server struct {
	cfg       config.ServerConfig
	interval  float64
	images    ImageClassifier
	videos    VideoAnalyzer
	telemetry *telemetry.Provider
	engine    *gin.Engine
	http      *http.Server
}

// New creates a gateway with all routes registered.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:       cfg.Server,
		interval:  cfg.Video.SampleIntervalSec,
		images:    deps.Images,
		videos:    deps.Videos,
		telemetry: deps.Telemetry,
	}
	s.engine = s.router()
	s.http = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if allowsAnyOrigin(s.cfg.AllowedOrigins) {
		// Echo the caller's origin; "*" is not valid alongside credentials.
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	corsCfg.ExposeHeaders = []string{requestIDHeader}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.handleHealth)
	r.POST("/analyze", s.handleAnalyze)

	r.NoRoute(func(c *gin.Context) {
		writeDetail(c, http.StatusNotFound, "Not Found")
	})
	return r
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	logrus.WithField("addr", s.cfg.Addr).Info("TruthVision gateway listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorBody{Detail: detail})
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
