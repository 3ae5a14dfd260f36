package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if cfg.Server.MaxImageBytes <= 0 {
		return errors.New("server.max_image_bytes must be positive")
	}
	if cfg.Server.MaxVideoBytes <= 0 {
		return errors.New("server.max_video_bytes must be positive")
	}
	if cfg.Server.ReadHeaderTimeout < 0 {
		return errors.New("server.read_header_timeout must not be negative")
	}
	for i, origin := range cfg.Server.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			return fmt.Errorf("server.allowed_origins[%d]: %w", i, err)
		}
	}

	if err := validateModelConfig(cfg.Model); err != nil {
		return err
	}

	if err := validateVideoConfig(cfg.Video); err != nil {
		return err
	}

	if err := validateProviderConfig(cfg.Provider); err != nil {
		return err
	}

	if err := validateLoggingConfig(cfg.Logging); err != nil {
		return err
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validateOrigin(origin string) error {
	origin = strings.TrimSpace(origin)
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid origin %q", origin)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("origin %q must be http or https", origin)
	}
	return nil
}

func validateModelConfig(m ModelConfig) error {
	if strings.TrimSpace(m.Dir) == "" {
		return errors.New("model.dir must be set")
	}
	if m.MaxSessions < 0 {
		return errors.New("model.max_sessions must not be negative")
	}
	if m.IntraThreads < 0 || m.InterThreads < 0 {
		return errors.New("model thread counts must not be negative")
	}
	return nil
}

const maxSampleIntervalSec = 3600

func validateVideoConfig(v VideoConfig) error {
	if !(v.SampleIntervalSec > 0) || v.SampleIntervalSec > maxSampleIntervalSec {
		return fmt.Errorf("video.sample_interval_sec must be in (0, %d], got %v", maxSampleIntervalSec, v.SampleIntervalSec)
	}
	if strings.TrimSpace(v.FFmpegPath) == "" || strings.TrimSpace(v.FFprobePath) == "" {
		return errors.New("video.ffmpeg_path and video.ffprobe_path must be set")
	}
	if v.Workers < 1 {
		return fmt.Errorf("video.workers must be at least 1, got %d", v.Workers)
	}
	return nil
}

func validateProviderConfig(p ProviderConfig) error {
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "openai", "gemini":
	default:
		return fmt.Errorf("provider.type must be openai or gemini, got %q", p.Type)
	}
	if strings.TrimSpace(p.APIKeyEnv) == "" && strings.TrimSpace(p.APIKey) == "" {
		return errors.New("provider missing api key (api_key_env or api_key)")
	}
	if p.BaseURL != "" {
		u, err := url.Parse(p.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("provider has invalid base_url")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("provider base_url must be http or https")
		}
	}
	if p.TimeoutSeconds <= 0 {
		return errors.New("provider.timeout_seconds must be positive")
	}
	if p.MaxResponseBytes <= 0 {
		return errors.New("provider.max_response_bytes must be positive")
	}
	return nil
}

func validateLoggingConfig(l LoggingConfig) error {
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", l.Format)
	}
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognised", l.Level)
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	if t.Protocol != "" {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "grpc", "http":
		default:
			return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
		}
	}
	return nil
}
