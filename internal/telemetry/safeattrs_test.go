package telemetry

import (
	"testing"
	"time"
)

func TestSafeAttributesFiltersPayloads(t *testing.T) {
	kvs := map[string]interface{}{
		"prompt":                  "should drop",
		"image_data_url":          "data:image/png;base64,AAAA",
		"frame_data":              []byte{1, 2, 3},
		"api_key":                 "xai-123",
		"token":                   "abc",
		"provider_reason":         "free text from the model",
		"authorization":           "secret",
		"long_string":             string(make([]byte, 300)),
		"raw_upload":              []byte("mp4"),
		"unsupported_kind":        struct{}{},
		"truthvision.input_type":  "image",
		"truthvision.image_type":  "image/png",
		"truthvision.size_bytes":  int64(2048),
		"truthvision.frames":      12,
		"truthvision.ai_prob":     float32(0.87),
		"truthvision.is_ai":       true,
		"truthvision.decode_time": 1500 * time.Microsecond,
	}

	attrs := SafeAttributes(kvs)
	seen := map[string]bool{}
	for _, a := range attrs {
		seen[string(a.Key)] = true
	}
	for _, bad := range []string{"prompt", "image_data_url", "frame_data", "api_key", "token", "provider_reason", "authorization", "long_string", "raw_upload", "unsupported_kind"} {
		if seen[bad] {
			t.Fatalf("unexpected unsafe attribute %s", bad)
		}
	}
	for _, want := range []string{"truthvision.input_type", "truthvision.image_type", "truthvision.size_bytes", "truthvision.frames", "truthvision.ai_prob", "truthvision.is_ai", "truthvision.decode_time"} {
		if !seen[want] {
			t.Fatalf("expected attribute %s to be kept", want)
		}
	}
	for i := 1; i < len(attrs); i++ {
		if attrs[i-1].Key >= attrs[i].Key {
			t.Fatalf("attributes not sorted: %s before %s", attrs[i-1].Key, attrs[i].Key)
		}
	}
	for _, a := range attrs {
		if a.Key == "truthvision.decode_time" && a.Value.AsFloat64() != 1.5 {
			t.Fatalf("expected duration in ms, got %v", a.Value.AsFloat64())
		}
	}
}

func TestSafeAttributesEmpty(t *testing.T) {
	if attrs := SafeAttributes(nil); attrs != nil {
		t.Fatalf("expected nil, got %v", attrs)
	}
}
