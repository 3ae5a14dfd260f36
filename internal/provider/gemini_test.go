package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/truthvision/truthvision/internal/mockprovider"
	"github.com/truthvision/truthvision/internal/verdict"
)

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), Config{APIKeyEnv: "GEMINI_API_KEY"})
	if verdict.KindOf(err) != verdict.Configuration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGeminiClassifyAgainstMock(t *testing.T) {
	srv := httptest.NewServer(mockprovider.Handler(mockprovider.Options{
		Reply: `{"is_ai": false, "ai_probability": 0.05, "real_probability": 0.95, "reason": "sensor noise"}`,
	}))
	defer srv.Close()

	p, err := NewGemini(context.Background(), Config{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if p.Name() != "gemini" {
		t.Fatalf("expected default name gemini, got %q", p.Name())
	}

	v, err := p.Classify(context.Background(), []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if v.IsAI || !near(v.RealProbability, 0.95) || v.Reason != "sensor noise" || v.Provider != "gemini" {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestGeminiClassifyUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(mockprovider.Handler(mockprovider.Options{Status: http.StatusServiceUnavailable}))
	defer srv.Close()

	p, err := NewGemini(context.Background(), Config{APIKey: "k", BaseURL: srv.URL, Name: "vision"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	_, err = p.Classify(context.Background(), []byte("img"), "image/png")
	if verdict.KindOf(err) != verdict.Upstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
