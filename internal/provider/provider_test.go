package provider

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/truthvision/truthvision/internal/verdict"
)

func TestNewDispatch(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
		kind verdict.Kind
	}{
		{name: "default openai", cfg: Config{APIKey: "k"}, want: "grok"},
		{name: "explicit openai", cfg: Config{Type: "OpenAI", APIKey: "k", Name: "vision"}, want: "vision"},
		{name: "gemini", cfg: Config{Type: "gemini", APIKey: "k"}, want: "gemini"},
		{name: "unknown", cfg: Config{Type: "bedrock", APIKey: "k"}, kind: verdict.Configuration},
		{name: "missing key", cfg: Config{Type: "openai"}, kind: verdict.Configuration},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(context.Background(), tc.cfg)
			if tc.want == "" {
				if verdict.KindOf(err) != tc.kind {
					t.Fatalf("expected %s, got %v", tc.kind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if p.Name() != tc.want {
				t.Fatalf("expected name %q, got %q", tc.want, p.Name())
			}
		})
	}
}

func writePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, "frame.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return path
}

func TestClassifyFile(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir)

	fake := NewFake(`{"is_ai": true, "ai_probability": 0.7, "real_probability": 0.3}`)
	v, err := ClassifyFile(context.Background(), fake, path)
	if err != nil {
		t.Fatalf("classify file: %v", err)
	}
	if fake.Calls != 1 || fake.LastMIME != "image/png" {
		t.Fatalf("expected one png call, got calls=%d mime=%q", fake.Calls, fake.LastMIME)
	}
	if !v.IsAI || v.Provider != "fake" {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestClassifyFileRejections(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("just some text"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	fake := NewFake(`{}`)
	for _, path := range []string{text, filepath.Join(dir, "missing.png")} {
		_, err := ClassifyFile(context.Background(), fake, path)
		if verdict.KindOf(err) != verdict.InvalidInput {
			t.Fatalf("%s: expected invalid input, got %v", path, err)
		}
	}
	if fake.Calls != 0 {
		t.Fatalf("provider should not be called, got %d calls", fake.Calls)
	}
}

func TestClassifyFilePropagatesProviderError(t *testing.T) {
	path := writePNG(t, t.TempDir())
	boom := verdict.E(verdict.Upstream, "grok returned status 503", errors.New("overloaded"))
	fake := &FakeProvider{Error: boom}

	_, err := ClassifyFile(context.Background(), fake, path)
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
