package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Upstream
	if cfg.Upstream.APIKey == "" {
		errs = append(errs, errors.New("upstream.api_key is required"))
	}
	if cfg.Upstream.VADThreshold < 0 || cfg.Upstream.VADThreshold > 1 {
		errs = append(errs, fmt.Errorf("upstream.vad_threshold %.2f is out of range [0, 1]", cfg.Upstream.VADThreshold))
	}
	if cfg.Upstream.VADPrefixPadding < 0 {
		errs = append(errs, fmt.Errorf("upstream.vad_prefix_padding %s must not be negative", cfg.Upstream.VADPrefixPadding))
	}
	if cfg.Upstream.VADSilenceDuration < 0 {
		errs = append(errs, fmt.Errorf("upstream.vad_silence_duration %s must not be negative", cfg.Upstream.VADSilenceDuration))
	}
	if cfg.Upstream.DialTimeout < 0 {
		errs = append(errs, fmt.Errorf("upstream.dial_timeout %s must not be negative", cfg.Upstream.DialTimeout))
	}

	// Persistence availability warning
	if cfg.Database.PostgresDSN == "" {
		slog.Warn("database.postgres_dsn is empty; session reports will not be persisted")
	}

	// Hints
	if cfg.Hints.Enabled && cfg.Hints.Model == "" {
		slog.Warn("hints.enabled is set but hints.model is empty; using the default chat model")
	}

	return errors.Join(errs...)
}
