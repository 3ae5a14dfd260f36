package provider

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/truthvision/truthvision/internal/verdict"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	defaultGeminiName  = "gemini"
)

type geminiProvider struct {
	name    string
	model   string
	timeout time.Duration
	client  *genai.Client
}

// NewGemini creates a provider backed by the Gemini API. BaseURL, when set,
// overrides the API host.
func NewGemini(ctx context.Context, cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, missingKey(cfg)
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Name == "" {
		cfg.Name = defaultGeminiName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, verdict.E(verdict.Configuration, "create gemini client", err)
	}

	return &geminiProvider{
		name:    cfg.Name,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  client,
	}, nil
}

func (p *geminiProvider) Name() string {
	return p.name
}

func (p *geminiProvider) Classify(ctx context.Context, image []byte, mimeType string) (*verdict.ProviderVerdict, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(userPrompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(0)),
		ResponseMIMEType:  "application/json",
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, verdict.E(verdict.Upstream, "call "+p.name, err)
	}
	logrus.WithFields(logrus.Fields{
		"provider":    p.name,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("provider responded")

	return ParseVerdict(resp.Text(), p.name)
}
