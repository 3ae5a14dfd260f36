// Package redact scrubs credentials and inline media from log output.
package redact

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	authHeaderRe  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*bearer\s+)([A-Za-z0-9._\-+/=]+)`)
	bearerRe      = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._\-+/=]+)`)
	apiKeyValueRe = regexp.MustCompile(`(?i)(api[_-]?key(?:s)?\s*[:=]\s*)([A-Za-z0-9._\-+/=]+)`)
	headerKeyRe   = regexp.MustCompile(`(?i)(x-api-key|x-goog-api-key)\s*[:=]\s*([A-Za-z0-9._\-+/=]+)`)
	xaiKeyRe      = regexp.MustCompile(`\bxai-[A-Za-z0-9]{8,}`)
	openAIKeyRe   = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`)
	googleKeyRe   = regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{20,}`)
	dataURLRe     = regexp.MustCompile(`data:([a-z]+/[a-z0-9.+\-]+);base64,[A-Za-z0-9+/=]+`)
	tokenishKeyRe = regexp.MustCompile(`(?i)\b(key|token)\s*[:=]\s*([A-Za-z0-9._\-+/=]{6,})`)
	urlRe         = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// String redacts known secret patterns from free-form strings.
func String(s string) string {
	if s == "" {
		return s
	}

	out := s
	out = dataURLRe.ReplaceAllString(out, "data:${1};base64,[REDACTED]")
	out = authHeaderRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = bearerRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyValueRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = headerKeyRe.ReplaceAllString(out, "${1}: [REDACTED]")
	out = xaiKeyRe.ReplaceAllString(out, "xai-[REDACTED]")
	out = openAIKeyRe.ReplaceAllString(out, "sk-[REDACTED]")
	out = googleKeyRe.ReplaceAllString(out, "AIza[REDACTED]")
	out = tokenishKeyRe.ReplaceAllStringFunc(out, func(s string) string {
		if strings.Contains(s, "[REDACTED]") {
			return s
		}
		matches := tokenishKeyRe.FindStringSubmatch(s)
		if len(matches) < 3 {
			return s
		}
		return matches[1] + "=[REDACTED]"
	})
	out = urlRe.ReplaceAllStringFunc(out, redactURL)
	for strings.Contains(out, "[REDACTED][REDACTED]") {
		out = strings.ReplaceAll(out, "[REDACTED][REDACTED]", "[REDACTED]")
	}
	return out
}

// redactURL keeps scheme, host and the last path element. Query strings,
// which may carry ?key=, are dropped.
func redactURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "[REDACTED_URL]"
	}

	host := u.Host
	if strings.HasSuffix(trimmed, "/") {
		return fmt.Sprintf("%s://%s/[REDACTED_PATH]", u.Scheme, host)
	}

	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	if base == "." || base == "/" || base == "" {
		return fmt.Sprintf("%s://%s", u.Scheme, host)
	}
	return fmt.Sprintf("%s://%s/%s", u.Scheme, host, base)
}

// Hook is a logrus hook that redacts the message and string-like fields of
// every entry.
type Hook struct{}

// NewHook returns a redaction hook.
func NewHook() *Hook {
	return &Hook{}
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	entry.Message = String(entry.Message)
	for k, v := range entry.Data {
		switch val := v.(type) {
		case string:
			entry.Data[k] = String(val)
		case error:
			entry.Data[k] = String(val.Error())
		case fmt.Stringer:
			entry.Data[k] = String(val.String())
		}
	}
	return nil
}
