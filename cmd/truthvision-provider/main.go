package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/truthvision/truthvision/internal/config"
	"github.com/truthvision/truthvision/internal/logging"
	"github.com/truthvision/truthvision/internal/mockprovider"
	"github.com/truthvision/truthvision/internal/provider"
	"github.com/truthvision/truthvision/internal/telemetry"
	"github.com/truthvision/truthvision/internal/verdict"
)

func main() {
	cfgPath := flag.String("config", "truthvision.yaml", "path to config yaml")
	imagePath := flag.String("image", "", "image to classify (required)")
	useMock := flag.Bool("mock", false, "send the request to a local mock provider instead of the configured one")
	flag.Parse()

	if *imagePath == "" {
		logrus.Fatalf("image flag is required")
	}
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	if err := logging.Setup(cfg.Logging); err != nil {
		logrus.Fatalf("configure logging: %v", err)
	}

	pc := provider.Config{
		Type:             cfg.Provider.Type,
		Name:             cfg.Provider.Name,
		BaseURL:          cfg.Provider.BaseURL,
		Model:            cfg.Provider.Model,
		APIKey:           cfg.Provider.ProviderAPIKey(),
		APIKeyEnv:        cfg.Provider.APIKeyEnv,
		Timeout:          cfg.Provider.Timeout(),
		MaxResponseBytes: cfg.Provider.MaxResponseBytes,
	}

	ctx := context.Background()
	if *useMock {
		shutdown, baseURL, err := mockprovider.Start("127.0.0.1:0", mockprovider.Options{
			Reply: os.Getenv("MOCK_PROVIDER_REPLY"),
		})
		if err != nil {
			logrus.Fatalf("start mock provider: %v", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
		pc.BaseURL = baseURL
		if !strings.EqualFold(pc.Type, "gemini") {
			pc.BaseURL = baseURL + "/v1/chat/completions"
		}
		if pc.APIKey == "" {
			pc.APIKey = "mock"
		}
	}

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  cfg.Telemetry.Service + "-provider",
	})
	if err != nil {
		logrus.Fatalf("init telemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	p, err := provider.New(ctx, pc)
	if err != nil {
		logrus.Fatalf("create provider: %v", err)
	}

	start := time.Now()
	v, err := provider.ClassifyFile(ctx, p, *imagePath)
	outcome := "ok"
	if err != nil {
		outcome = verdict.KindOf(err).String()
	}
	tel.RecordProviderDuration(ctx, p.Name(), outcome, float64(time.Since(start).Milliseconds()))
	if err != nil {
		tel.Shutdown(context.Background())
		logrus.WithFields(logrus.Fields{
			"provider": p.Name(),
			"kind":     verdict.KindOf(err).String(),
		}).Fatalf("classify: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"provider":    p.Name(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("provider verdict received")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logrus.Fatalf("write verdict: %v", err)
	}
}
