// Package config loads the client settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/raine/visagista/internal/analysis"
	"github.com/raine/visagista/internal/session"
)

const (
	AppName     = "visagista"
	EnvFileName = "config.env"

	DefaultEndpoint       = "http://localhost:3001/api/analyze-face"
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxPhotoBytes  = 10 * 1024 * 1024
)

type Config struct {
	Endpoint       string           `yaml:"endpoint"`
	RequestTimeout time.Duration    `yaml:"request_timeout"`
	MaxPhotoBytes  int64            `yaml:"max_photo_bytes"`
	Pricing        analysis.Pricing `yaml:"pricing"`
	Profile        session.UserData `yaml:"profile"`
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

func defaultConfig() *Config {
	return &Config{
		Endpoint:       DefaultEndpoint,
		RequestTimeout: DefaultRequestTimeout,
		MaxPhotoBytes:  DefaultMaxPhotoBytes,
		Pricing:        analysis.DefaultPricing,
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then the VISAGISTA_* environment variables.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("VISAGISTA_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("VISAGISTA_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VISAGISTA_REQUEST_TIMEOUT must be a duration: %w", err)
		}
		c.RequestTimeout = d
	}
	if v := os.Getenv("VISAGISTA_MAX_PHOTO_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("VISAGISTA_MAX_PHOTO_BYTES must be an integer: %w", err)
		}
		c.MaxPhotoBytes = n
	}
	return nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is not set")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint must be an http(s) URL, got %q", c.Endpoint)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if c.MaxPhotoBytes <= 0 {
		return errors.New("max_photo_bytes must be positive")
	}
	p := c.Pricing
	if p.InputPerMillion < 0 || p.OutputPerMillion < 0 || p.PerImage < 0 {
		return errors.New("pricing rates must not be negative")
	}
	return nil
}
