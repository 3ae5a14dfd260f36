package redact

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestStringRedaction(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		disallow []string
		require  []string
	}{
		{
			name:     "bearer header",
			input:    "Authorization: Bearer xai-secret-123",
			disallow: []string{"xai-secret-123"},
			require:  []string{"[REDACTED]"},
		},
		{
			name:     "bare xai key",
			input:    "using key xaiABC then xai-0123456789abcdef for grok",
			disallow: []string{"0123456789abcdef"},
			require:  []string{"xai-[REDACTED]", "for grok"},
		},
		{
			name:     "google key in query",
			input:    "POST https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent?key=AIzaSyA-1234567890abcdefghijkl",
			disallow: []string{"AIzaSyA-1234567890abcdefghijkl", "?key="},
			require:  []string{"https://generativelanguage.googleapis.com/gemini-2.5-flash:generateContent"},
		},
		{
			name:     "goog header",
			input:    "x-goog-api-key: abcdef123456",
			disallow: []string{"abcdef123456"},
			require:  []string{"x-goog-api-key: [REDACTED]"},
		},
		{
			name:     "api key field",
			input:    "api_key=sk-proj-abcdefgh1234",
			disallow: []string{"abcdefgh1234"},
			require:  []string{"api_key=[REDACTED]"},
		},
		{
			name:     "inline image",
			input:    `{"url":"data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAAB"}`,
			disallow: []string{"iVBORw0KGgo"},
			require:  []string{"data:image/png;base64,[REDACTED]"},
		},
		{
			name:     "mixed token",
			input:    "Bearer abc key=supersecret token=anotherone model_dir=https://models.example.test/files/base/",
			disallow: []string{"abc", "supersecret", "anotherone", "files/base/"},
			require:  []string{"[REDACTED]", "https://models.example.test/[REDACTED_PATH]"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := String(tc.input)
			for _, bad := range tc.disallow {
				if bad != "" && contains(out, bad) {
					t.Fatalf("output still contains %q: %s", bad, out)
				}
			}
			for _, want := range tc.require {
				if want == "" {
					continue
				}
				if !contains(out, want) {
					t.Fatalf("output missing required substring %q: %s", want, out)
				}
			}
		})
	}
}

func TestHookRedactsMessageAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.AddHook(NewHook())

	logger.WithFields(logrus.Fields{
		"auth":   "Bearer xai-topsecret99",
		"frames": 12,
	}).WithError(errors.New("upstream said api_key=leaked123")).Info("calling https://api.x.ai/v1/chat/completions?token=abcdef123")

	out := buf.String()
	for _, bad := range []string{"topsecret99", "leaked123", "abcdef123"} {
		if contains(out, bad) {
			t.Fatalf("log still contains %q: %s", bad, out)
		}
	}
	if !contains(out, `"frames":12`) {
		t.Fatalf("non-string fields should pass through: %s", out)
	}
}

func contains(s, sub string) bool {
	return s != "" && sub != "" && strings.Contains(s, sub)
}
