package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/truthvision/truthvision/internal/verdict"
)

// objectSpanRe is greedy: it spans from the first '{' to the last '}'.
var objectSpanRe = regexp.MustCompile(`(?s)\{.*\}`)

// ParseVerdict recovers a JSON verdict from free-form model output and
// normalizes its probabilities.
func ParseVerdict(content, providerName string) (*verdict.ProviderVerdict, error) {
	obj, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	aiProb := 0.5
	if raw, ok := present(obj, "ai_probability"); ok {
		if aiProb, err = normalizeProbability(raw); err != nil {
			return nil, verdict.E(verdict.Parse, "invalid ai_probability", err)
		}
	}
	realProb := 1 - aiProb
	if raw, ok := present(obj, "real_probability"); ok {
		if realProb, err = normalizeProbability(raw); err != nil {
			return nil, verdict.E(verdict.Parse, "invalid real_probability", err)
		}
	}

	total := aiProb + realProb
	if total <= 0 {
		aiProb, realProb = 0.5, 0.5
	} else if math.Abs(total-1) > verdict.ProbabilityTolerance {
		aiProb, realProb = aiProb/total, realProb/total
	}

	isAI := aiProb >= realProb
	if raw, ok := present(obj, "is_ai"); ok {
		if isAI, err = truthy(raw); err != nil {
			return nil, verdict.E(verdict.Parse, "invalid is_ai", err)
		}
	}

	return &verdict.ProviderVerdict{
		ClassificationResult: verdict.ClassificationResult{
			IsAI:            isAI,
			Confidence:      math.Max(aiProb, realProb),
			Label:           verdict.ImageLabel(isAI),
			AIProbability:   aiProb,
			RealProbability: realProb,
		},
		Reason:   reasonString(obj["reason"]),
		Provider: providerName,
	}, nil
}

// extractJSON parses the trimmed text as a JSON object, falling back to the
// widest {...} span inside it.
func extractJSON(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, verdict.E(verdict.Parse, "Empty provider response.", nil)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err == nil && obj != nil {
		return obj, nil
	}

	span := objectSpanRe.FindString(content)
	if span == "" {
		return nil, verdict.E(verdict.Parse, "Could not parse JSON from provider response.", nil)
	}
	obj = nil
	if err := json.Unmarshal([]byte(span), &obj); err != nil || obj == nil {
		if err == nil {
			err = errors.New("not a JSON object")
		}
		return nil, verdict.E(verdict.Parse, "Could not parse JSON from provider response.", err)
	}
	return obj, nil
}

// present treats JSON null the same as a missing key.
func present(obj map[string]any, key string) (any, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// normalizeProbability reads a number (or numeric string), treats values
// above 1 as percentages and clamps to [0,1].
func normalizeProbability(v any) (float64, error) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case bool:
		if val {
			f = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "%")), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported probability type %T", v)
	}
	if math.IsNaN(f) {
		return 0, errors.New("probability is NaN")
	}
	if f > 1 {
		f /= 100
	}
	return clamp01(f), nil
}

func truthy(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case float64:
		return val != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, fmt.Errorf("unsupported boolean %q", val)
		}
		return b, nil
	default:
		return false, fmt.Errorf("unsupported boolean type %T", v)
	}
}

func reasonString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
