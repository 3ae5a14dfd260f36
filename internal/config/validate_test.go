package config

import (
	"strings"
	"testing"
)

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing server addr",
			mutate: func(c *Config) { c.Server.Addr = " " },
			want:   "server.addr",
		},
		{
			name:   "zero image limit",
			mutate: func(c *Config) { c.Server.MaxImageBytes = 0 },
			want:   "max_image_bytes",
		},
		{
			name:   "negative video limit",
			mutate: func(c *Config) { c.Server.MaxVideoBytes = -1 },
			want:   "max_video_bytes",
		},
		{
			name:   "bad origin",
			mutate: func(c *Config) { c.Server.AllowedOrigins = []string{"localhost:3000"} },
			want:   "allowed_origins",
		},
		{
			name:   "empty model dir",
			mutate: func(c *Config) { c.Model.Dir = "" },
			want:   "model.dir",
		},
		{
			name:   "non-positive interval",
			mutate: func(c *Config) { c.Video.SampleIntervalSec = 0 },
			want:   "sample_interval_sec",
		},
		{
			name:   "huge interval",
			mutate: func(c *Config) { c.Video.SampleIntervalSec = 1e300 },
			want:   "sample_interval_sec",
		},
		{
			name:   "no workers",
			mutate: func(c *Config) { c.Video.Workers = 0 },
			want:   "video.workers",
		},
		{
			name:   "unknown provider type",
			mutate: func(c *Config) { c.Provider.Type = "bedrock" },
			want:   "provider.type",
		},
		{
			name:   "missing provider key",
			mutate: func(c *Config) { c.Provider.APIKeyEnv = "" },
			want:   "api key",
		},
		{
			name:   "invalid provider url",
			mutate: func(c *Config) { c.Provider.BaseURL = "::://bad" },
			want:   "base_url",
		},
		{
			name:   "provider url scheme",
			mutate: func(c *Config) { c.Provider.BaseURL = "ftp://api.x.ai/v1" },
			want:   "http or https",
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
		{
			name: "telemetry without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			want: "endpoint",
		},
		{
			name: "telemetry protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = "localhost:4317"
				c.Telemetry.Protocol = "udp"
			},
			want: "telemetry.protocol",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			} else if !contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.want)
			}
		})
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(defaultConfig()); err != nil {
		t.Fatalf("expected defaults to be valid, got %v", err)
	}

	gemini := defaultConfig()
	gemini.Provider.Type = "gemini"
	gemini.Provider.BaseURL = "http://127.0.0.1:18080"
	gemini.Telemetry = TelemetryConfig{Enabled: true, Endpoint: "localhost:4318", Protocol: "http"}
	if err := Validate(gemini); err != nil {
		t.Fatalf("expected gemini config to be valid, got %v", err)
	}
}

func contains(s, sub string) bool {
	return s != "" && sub != "" && strings.Contains(s, sub)
}
