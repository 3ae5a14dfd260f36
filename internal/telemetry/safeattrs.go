package telemetry

import (
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// maxAttrLen caps string attributes. Media types, input types and provider
// names are far shorter; anything longer is free text.
const maxAttrLen = 256

// payloadKeys mark attributes that could carry upload bytes, provider
// credentials or model prose.
var payloadKeys = []string{
	"image",
	"frame_data",
	"data_url",
	"base64",
	"prompt",
	"reason",
	"authorization",
	"api_key",
	"token",
	"secret",
}

// SafeAttributes converts analysis span fields into OTEL attributes, sorted
// by key. Raw bytes, payload-like keys and long strings never reach a span.
func SafeAttributes(values map[string]interface{}) []attribute.KeyValue {
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if !isPayloadKey(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		if kv, ok := analysisAttr(k, values[k]); ok {
			attrs = append(attrs, kv)
		}
	}
	return attrs
}

func isPayloadKey(k string) bool {
	lk := strings.ToLower(k)
	// image_type and image_count style fields are metadata, not pixels.
	if strings.HasSuffix(lk, "_type") || strings.HasSuffix(lk, "_count") {
		return false
	}
	for _, frag := range payloadKeys {
		if strings.Contains(lk, frag) {
			return true
		}
	}
	return false
}

func analysisAttr(k string, v interface{}) (attribute.KeyValue, bool) {
	switch val := v.(type) {
	case string:
		if len(val) > maxAttrLen {
			return attribute.KeyValue{}, false
		}
		return attribute.String(k, val), true
	case bool:
		return attribute.Bool(k, val), true
	case int:
		return attribute.Int(k, val), true
	case int32:
		return attribute.Int64(k, int64(val)), true
	case int64:
		return attribute.Int64(k, val), true
	case float32:
		return attribute.Float64(k, float64(val)), true
	case float64:
		return attribute.Float64(k, val), true
	case time.Duration:
		return attribute.Float64(k, float64(val.Microseconds())/1000), true
	}
	return attribute.KeyValue{}, false
}
