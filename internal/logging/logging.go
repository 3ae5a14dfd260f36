// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/truthvision/truthvision/internal/config"
	"github.com/truthvision/truthvision/internal/redact"
)

// Setup applies level, format and the redaction hook to the standard logger.
func Setup(cfg config.LoggingConfig) error {
	return Configure(logrus.StandardLogger(), cfg)
}

// Configure applies cfg to logger. Hooks already present are replaced so
// repeated calls do not stack redaction hooks.
func Configure(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	hooks := make(logrus.LevelHooks)
	hooks.Add(redact.NewHook())
	logger.ReplaceHooks(hooks)
	return nil
}

// New returns a configured logger writing to out.
func New(out io.Writer, cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	if err := Configure(logger, cfg); err != nil {
		return nil, err
	}
	return logger, nil
}
