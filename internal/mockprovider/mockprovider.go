package mockprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultPort    = 18080
	defaultDelayMS = 50
)

// DefaultReply wraps a verdict in prose the way chat models often do.
const DefaultReply = "Sure! Here is my assessment:\n```json\n" +
	`{"is_ai": true, "ai_probability": 87, "real_probability": 13, "reason": "smooth textures and inconsistent lighting"}` +
	"\n```\nLet me know if you need anything else."

// Options controls the mock's behaviour.
type Options struct {
	Reply  string        // assistant text; DefaultReply when empty
	Status int           // non-zero forces an error status on analysis endpoints
	Delay  time.Duration // added before every analysis response
}

// StartMockProvider launches a mock that speaks the OpenAI chat completions
// and Gemini generateContent protocols. If addr is empty, it listens on
// 127.0.0.1:MOCK_PROVIDER_PORT (default 18080). MOCK_PROVIDER_REPLY and
// MOCK_DELAY_MS override the reply and delay.
// It returns a shutdown function and the base URL (e.g., http://127.0.0.1:18080).
func StartMockProvider(addr string) (func(context.Context) error, string, error) {
	opts := Options{
		Reply: os.Getenv("MOCK_PROVIDER_REPLY"),
		Delay: defaultDelayMS * time.Millisecond,
	}
	if val := strings.TrimSpace(os.Getenv("MOCK_DELAY_MS")); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed >= 0 {
			opts.Delay = time.Duration(parsed) * time.Millisecond
		}
	}
	return Start(addr, opts)
}

// Start launches the mock with explicit options.
func Start(addr string, opts Options) (func(context.Context) error, string, error) {
	if strings.TrimSpace(addr) == "" {
		port := strings.TrimSpace(os.Getenv("MOCK_PROVIDER_PORT"))
		if port == "" {
			port = strconv.Itoa(defaultPort)
		}
		addr = "127.0.0.1:" + port
	}
	if opts.Reply == "" {
		opts.Reply = DefaultReply
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           Handler(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("mock provider server error")
		}
	}()

	shutdown := func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}

	baseURL := "http://" + ln.Addr().String()
	logrus.WithFields(logrus.Fields{"url": baseURL, "delay": opts.Delay}).Info("mock provider listening")
	return shutdown, baseURL, nil
}

// Handler serves the mock endpoints. It is exported for httptest use.
func Handler(opts Options) http.Handler {
	if opts.Reply == "" {
		opts.Reply = DefaultReply
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		logrus.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Debug("mock upstream request")

		p := r.URL.Path
		if len(p) > 1 {
			p = strings.TrimSuffix(p, "/")
		}

		switch {
		case r.Method == http.MethodPost && (p == "/v1/chat/completions" || p == "/chat/completions"):
			if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token", "invalid_request_error")
				return
			}
			if err := checkChatRequest(r); err != nil {
				writeError(w, http.StatusBadRequest, err.Error(), "invalid_request_error")
				return
			}
			if opts.Status != 0 {
				writeError(w, opts.Status, "mock failure", "server_error")
				return
			}
			sleep(opts.Delay)
			writeChatCompletion(w, opts.Reply)
		case r.Method == http.MethodPost && strings.HasSuffix(p, ":generateContent"):
			if r.Header.Get("x-goog-api-key") == "" && r.URL.Query().Get("key") == "" {
				writeError(w, http.StatusUnauthorized, "missing api key", "UNAUTHENTICATED")
				return
			}
			if opts.Status != 0 {
				writeError(w, opts.Status, "mock failure", "INTERNAL")
				return
			}
			sleep(opts.Delay)
			writeGenerateContent(w, opts.Reply)
		case r.Method == http.MethodGet && (p == "/v1/models" || p == "/models"):
			writeModels(w)
		default:
			writeError(w, http.StatusNotFound, "Not found", "invalid_request_error")
		}
	})
	return mux
}

// checkChatRequest requires a user message carrying an image data URL.
func checkChatRequest(r *http.Request) error {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	for _, m := range req.Messages {
		if m.Role != "user" {
			continue
		}
		var parts []struct {
			Type     string `json:"type"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		}
		if err := json.Unmarshal(m.Content, &parts); err != nil {
			continue
		}
		for _, part := range parts {
			if part.Type == "image_url" && strings.HasPrefix(part.ImageURL.URL, "data:image/") {
				return nil
			}
		}
	}
	return errors.New("no image_url part in user message")
}

func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func writeError(w http.ResponseWriter, status int, msg, typ string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    typ,
			"code":    status,
		},
	})
}

func writeChatCompletion(w http.ResponseWriter, reply string) {
	resp := map[string]any{
		"id":      "chatcmpl-mock",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "mock-vision",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": reply,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     5,
			"completion_tokens": 5,
			"total_tokens":      10,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeGenerateContent(w http.ResponseWriter, reply string) {
	resp := map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": reply}},
				},
				"finishReason": "STOP",
				"index":        0,
			},
		},
		"modelVersion": "mock-vision",
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeModels(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data": []map[string]any{
			{
				"id":       "mock-vision",
				"object":   "model",
				"owned_by": "mock",
			},
		},
	})
}
