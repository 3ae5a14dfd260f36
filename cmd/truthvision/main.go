package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/truthvision/truthvision/internal/classifier"
	"github.com/truthvision/truthvision/internal/config"
	"github.com/truthvision/truthvision/internal/logging"
	"github.com/truthvision/truthvision/internal/server"
	"github.com/truthvision/truthvision/internal/telemetry"
	"github.com/truthvision/truthvision/internal/video"
)

var version = "dev"

func main() {
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config)")
	configPath := flag.String("config", "truthvision.yaml", "Path to TruthVision config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}
	if err := config.Validate(cfg); err != nil {
		logrus.Fatalf("invalid config: %v", err)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  cfg.Telemetry.Service,
		Version:  version,
	})
	if err != nil {
		logrus.Fatalf("init telemetry: %v", err)
	}

	cls, model, err := classifier.Open(cfg.Model.Dir, classifier.ModelOptions{
		SharedLibraryPath: cfg.Model.OnnxRuntimeLibrary,
		Runtime: classifier.RuntimeSettings{
			MaxSessions:  cfg.Model.MaxSessions,
			IntraThreads: cfg.Model.IntraThreads,
			InterThreads: cfg.Model.InterThreads,
		},
	})
	if err != nil {
		logrus.Fatalf("load model from %s: %v", cfg.Model.Dir, err)
	}
	defer model.Close()
	logrus.WithFields(logrus.Fields{
		"model":  model.ModelFile(),
		"labels": cls.Labels(),
	}).Info("image classifier ready")

	decoder := video.NewFFmpegDecoder(cfg.Video.FFmpegPath, cfg.Video.FFprobePath)
	if err := decoder.CheckAvailable(); err != nil {
		logrus.WithError(err).Warn("ffmpeg unavailable; video uploads will be rejected")
	}
	sampler := video.NewSampler(decoder, cls,
		video.WithTempDir(cfg.Video.TempDir),
		video.WithWorkers(cfg.Video.Workers),
	)

	srv := server.New(cfg, server.Deps{
		Images:    cls,
		Videos:    sampler,
		Telemetry: tel,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logrus.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		logrus.Info("shutting down TruthVision gateway")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("forced shutdown")
	}
	tel.Shutdown(shutdownCtx)
}
