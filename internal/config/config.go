// Package config loads runtime settings from the environment and an optional YAML file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v6"
	"github.com/ghodss/yaml"
)

// Config holds every runtime setting. Values set in the YAML file win over the environment.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080" json:"port"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" json:"logLevel"`

	GeminiAPIKey string `env:"GEMINI_API_KEY" json:"geminiApiKey"`
	LegacyAPIKey string `env:"API_KEY" json:"-"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash" json:"geminiModel"`

	ExtractionContext string   `env:"EXTRACTION_CONTEXT" envDefault:"Relevé Bancaire Standard" json:"extractionContext"`
	ExtractionTimeout Duration `env:"EXTRACTION_TIMEOUT" envDefault:"5m" json:"extractionTimeout"`
	ExtractionWorkers int      `env:"EXTRACTION_WORKERS" envDefault:"5" json:"extractionWorkers"`
	QueueSize         int      `env:"QUEUE_SIZE" envDefault:"100" json:"queueSize"`
	MaxUploadBytes    int64    `env:"MAX_UPLOAD_BYTES" envDefault:"10485760" json:"maxUploadBytes"`

	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE" json:"gcsCredentialsFile"`
}

// Duration reads "90s" or "5m" from both the environment and YAML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string such as \"5m\": %w", err)
	}
	return d.UnmarshalText([]byte(s))
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads the environment, then merges the YAML file at path over it when path is set.
func Load(path string) (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("Load: parse environment: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Load: read %s: %w", path, err)
		}

		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return nil, fmt.Errorf("Load: parse %s: %w", path, err)
		}

		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("Load: merge %s: %w", path, err)
		}
	}

	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = cfg.LegacyAPIKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.ExtractionWorkers <= 0:
		return fmt.Errorf("extraction workers must be positive, got %d", c.ExtractionWorkers)
	case c.QueueSize < 0:
		return fmt.Errorf("queue size must not be negative, got %d", c.QueueSize)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	case c.ExtractionTimeout < 0:
		return fmt.Errorf("extraction timeout must not be negative")
	}
	return nil
}
