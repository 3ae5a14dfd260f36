package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds TruthVision configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Video     VideoConfig     `yaml:"video"`
	Provider  ProviderConfig  `yaml:"provider"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"` // HTTP listen address, e.g. ":8000"
	MaxImageBytes     int64         `yaml:"max_image_bytes"`
	MaxVideoBytes     int64         `yaml:"max_video_bytes"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

type ModelConfig struct {
	Dir                string `yaml:"dir"`                 // directory with model.onnx, config.json, preprocessor_config.json
	OnnxRuntimeLibrary string `yaml:"onnxruntime_library"` // path to libonnxruntime; probed when empty
	MaxSessions        int    `yaml:"max_sessions"`
	IntraThreads       int    `yaml:"intra_threads"`
	InterThreads       int    `yaml:"inter_threads"`
}

type VideoConfig struct {
	SampleIntervalSec float64 `yaml:"sample_interval_sec"`
	FFmpegPath        string  `yaml:"ffmpeg_path"`
	FFprobePath       string  `yaml:"ffprobe_path"`
	TempDir           string  `yaml:"temp_dir"`
	Workers           int     `yaml:"workers"`
}

type ProviderConfig struct {
	Type             string `yaml:"type"`        // openai | gemini
	Name             string `yaml:"name"`        // e.g. "grok"
	BaseURL          string `yaml:"base_url"`    // full chat completions URL for openai
	Model            string `yaml:"model"`       // e.g. "grok-4"
	APIKeyEnv        string `yaml:"api_key_env"` // e.g. "XAI_API_KEY"
	APIKey           string `yaml:"api_key"`     // optional inline key (discouraged; prefer api_key_env)
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	MaxResponseBytes int64  `yaml:"max_response_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
	Service  string `yaml:"service"`
}

const (
	defaultAddr           = ":8000"
	defaultMaxImageBytes  = 5 * 1024 * 1024
	defaultMaxVideoBytes  = 100 * 1024 * 1024
	defaultModelDir       = "models/ai-image-detector"
	defaultSampleInterval = 1.0
	defaultProviderURL    = "https://api.x.ai/v1/chat/completions"
	defaultProviderModel  = "grok-4"
	defaultProviderName   = "grok"
	defaultAPIKeyEnv      = "XAI_API_KEY"
	defaultServiceName    = "truthvision"
)

var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"https://truthvision-ai.vercel.app",
	"*",
}

// Load reads configuration from a YAML file and applies environment
// overrides. If the file doesn't exist, it returns the default config with
// overrides applied and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Server.MaxImageBytes == 0 {
		cfg.Server.MaxImageBytes = defaultMaxImageBytes
	}
	if cfg.Server.MaxVideoBytes == 0 {
		cfg.Server.MaxVideoBytes = defaultMaxVideoBytes
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = append([]string(nil), defaultOrigins...)
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 10 * time.Second
	}

	if cfg.Model.Dir == "" {
		cfg.Model.Dir = defaultModelDir
	}
	if cfg.Model.MaxSessions == 0 {
		cfg.Model.MaxSessions = 1
	}

	if cfg.Video.SampleIntervalSec == 0 {
		cfg.Video.SampleIntervalSec = defaultSampleInterval
	}
	if cfg.Video.FFmpegPath == "" {
		cfg.Video.FFmpegPath = "ffmpeg"
	}
	if cfg.Video.FFprobePath == "" {
		cfg.Video.FFprobePath = "ffprobe"
	}
	if cfg.Video.Workers == 0 {
		cfg.Video.Workers = 1
	}

	if cfg.Provider.Type == "" {
		cfg.Provider.Type = "openai"
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = defaultProviderName
	}
	if cfg.Provider.BaseURL == "" && strings.EqualFold(cfg.Provider.Type, "openai") {
		cfg.Provider.BaseURL = defaultProviderURL
	}
	if cfg.Provider.Model == "" && strings.EqualFold(cfg.Provider.Type, "openai") {
		cfg.Provider.Model = defaultProviderModel
	}
	if cfg.Provider.APIKeyEnv == "" {
		cfg.Provider.APIKeyEnv = defaultAPIKeyEnv
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 60
	}
	if cfg.Provider.MaxResponseBytes == 0 {
		cfg.Provider.MaxResponseBytes = 4 * 1024 * 1024
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.Service == "" {
		cfg.Telemetry.Service = defaultServiceName
	}
}

func applyEnv(cfg *Config) {
	if v := env("TRUTHVISION_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := env("TRUTHVISION_MODEL_DIR"); v != "" {
		cfg.Model.Dir = v
	}
	if v := env("ONNXRUNTIME_SHARED_LIBRARY_PATH"); v != "" {
		cfg.Model.OnnxRuntimeLibrary = v
	}
	if v := env("XAI_API_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := env("XAI_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := env("TRUTHVISION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// ProviderAPIKey returns the inline key or the value of api_key_env.
func (p ProviderConfig) ProviderAPIKey() string {
	if strings.TrimSpace(p.APIKey) != "" {
		return strings.TrimSpace(p.APIKey)
	}
	if p.APIKeyEnv == "" {
		return ""
	}
	return env(p.APIKeyEnv)
}

// Timeout returns the request timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}
