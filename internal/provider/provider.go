// Package provider delegates still-image classification to remote
// multimodal chat models and normalizes their JSON verdicts.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/truthvision/truthvision/internal/verdict"
)

const (
	systemPrompt = "You are an AI image authenticity classifier. " +
		"Return ONLY strict JSON with fields: " +
		"is_ai (boolean), ai_probability (number 0..1), real_probability (number 0..1), reason (string)."
	userPrompt = "Classify whether this image is AI-generated or real. " +
		"Respond with JSON only."
)

const (
	defaultTimeout          = 60 * time.Second
	defaultMaxResponseBytes = 4 * 1024 * 1024
)

// Provider classifies a single image through a remote model.
type Provider interface {
	Name() string
	Classify(ctx context.Context, image []byte, mimeType string) (*verdict.ProviderVerdict, error)
}

// Config selects and configures a provider backend.
type Config struct {
	Type             string // openai | gemini
	Name             string // reported in verdicts, e.g. "grok"
	BaseURL          string
	Model            string
	APIKey           string
	APIKeyEnv        string // only used in error messages
	Timeout          time.Duration
	MaxResponseBytes int64
}

// New builds the provider named by cfg.Type. A missing API key is a
// Configuration error.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "openai":
		return NewOpenAI(cfg)
	case "gemini":
		return NewGemini(ctx, cfg)
	default:
		return nil, verdict.E(verdict.Configuration, fmt.Sprintf("unknown provider type %q", cfg.Type), nil)
	}
}

func missingKey(cfg Config) error {
	env := cfg.APIKeyEnv
	if env == "" {
		env = "API key"
	}
	return verdict.E(verdict.Configuration, env+" is not configured.", nil)
}

// ClassifyFile reads an image from disk, sniffs its type and classifies it.
func ClassifyFile(ctx context.Context, p Provider, path string) (*verdict.ProviderVerdict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, verdict.E(verdict.InvalidInput, "read image", err)
	}
	mimeType := http.DetectContentType(data)
	switch mimeType {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return nil, verdict.InvalidInputf("unsupported image type %q", mimeType)
	}
	return p.Classify(ctx, data, mimeType)
}
