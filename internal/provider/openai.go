package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/truthvision/truthvision/internal/verdict"
)

const (
	defaultChatURL   = "https://api.x.ai/v1/chat/completions"
	defaultChatModel = "grok-4"
	defaultChatName  = "grok"
)

// openAIProvider talks to any OpenAI-compatible chat completions endpoint
// (xAI by default). BaseURL is the full endpoint URL.
type openAIProvider struct {
	name             string
	url              string
	model            string
	apiKey           string
	client           *http.Client
	maxResponseBytes int64
}

// NewOpenAI creates a chat-completions provider. The API key is required.
func NewOpenAI(cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, missingKey(cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultChatURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultChatModel
	}
	if cfg.Name == "" {
		cfg.Name = defaultChatName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaultMaxResponseBytes
	}

	return &openAIProvider{
		name:             cfg.Name,
		url:              cfg.BaseURL,
		model:            cfg.Model,
		apiKey:           cfg.APIKey,
		maxResponseBytes: cfg.MaxResponseBytes,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

// chatMessage content is either a string or a list of parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func (p *openAIProvider) Name() string {
	return p.name
}

func (p *openAIProvider) Classify(ctx context.Context, image []byte, mimeType string) (*verdict.ProviderVerdict, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Temperature: 0,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []chatPart{
				{Type: "text", Text: userPrompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
			}},
		},
	})
	if err != nil {
		return nil, verdict.E(verdict.Unexpected, "marshal chat request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, verdict.E(verdict.Configuration, "create chat request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, verdict.E(verdict.Upstream, "call "+p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, p.maxResponseBytes+1))
	if err != nil {
		return nil, verdict.E(verdict.Upstream, "read "+p.name+" response", err)
	}
	if int64(len(respBody)) > p.maxResponseBytes {
		return nil, verdict.E(verdict.Upstream, fmt.Sprintf("%s response exceeded limit (%d bytes)", p.name, p.maxResponseBytes), nil)
	}

	logrus.WithFields(logrus.Fields{
		"provider":    p.name,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("provider responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("%s returned status %d", p.name, resp.StatusCode)
		var errBody chatErrorResponse
		if err := json.Unmarshal(respBody, &errBody); err == nil && errBody.Error.Message != "" {
			return nil, verdict.E(verdict.Upstream, msg, fmt.Errorf("%s (type=%s)", errBody.Error.Message, errBody.Error.Type))
		}
		return nil, verdict.E(verdict.Upstream, msg, nil)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, verdict.E(verdict.Parse, "decode "+p.name+" response", err)
	}
	if len(chat.Choices) == 0 {
		return nil, verdict.E(verdict.Parse, p.name+" response had no choices", nil)
	}

	content, err := messageText(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, verdict.E(verdict.Parse, "decode "+p.name+" message", err)
	}
	return ParseVerdict(content, p.name)
}

// messageText accepts string content or a list of text parts.
func messageText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var parts []chatPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, part := range parts {
		if part.Type == "text" || part.Type == "" {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}
