package mockprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

const chatPayload = `{"model":"grok-4","messages":[{"role":"system","content":"x"},{"role":"user","content":[{"type":"text","text":"classify"},{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}}]}]}`

func TestMockProviderChatCompletions(t *testing.T) {
	shutdown, baseURL, err := StartMockProvider("127.0.0.1:0")
	if err != nil {
		t.Skipf("start mock provider: %v", err)
	}
	defer shutdown(context.Background())

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/chat/completions", bytes.NewReader([]byte(chatPayload)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post mock provider: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var body struct {
		ID      string `json:"id"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Role    string `json:"role"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ID == "" {
		t.Fatalf("expected non-empty id")
	}
	if len(body.Choices) == 0 {
		t.Fatalf("expected at least one choice")
	}
	if body.Choices[0].Message.Content != DefaultReply {
		t.Fatalf("expected default reply, got %q", body.Choices[0].Message.Content)
	}
}

func TestMockProviderRejections(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		auth    string
		payload string
		want    int
	}{
		{"missing auth", Options{}, "", chatPayload, http.StatusUnauthorized},
		{"no image", Options{}, "Bearer k", `{"messages":[{"role":"user","content":"hi"}]}`, http.StatusBadRequest},
		{"forced status", Options{Status: http.StatusTooManyRequests}, "Bearer k", chatPayload, http.StatusTooManyRequests},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader([]byte(tc.payload)))
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			rec := httptest.NewRecorder()
			Handler(tc.opts).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestMockProviderGenerateContent(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1beta/models/gemini-2.5-flash:generateContent", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("x-goog-api-key", "k")
	rec := httptest.NewRecorder()
	Handler(Options{Reply: `{"is_ai":false}`}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Candidates) != 1 || body.Candidates[0].Content.Parts[0].Text != `{"is_ai":false}` {
		t.Fatalf("unexpected body %+v", body)
	}
}
