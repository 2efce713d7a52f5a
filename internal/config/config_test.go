package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/visagista/internal/analysis"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "visagista.yaml")
	require.NoError(t, os.WriteFile(path, []byte(dedent.Dedent(content)), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"VISAGISTA_ENDPOINT", "VISAGISTA_REQUEST_TIMEOUT", "VISAGISTA_MAX_PHOTO_BYTES"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(DefaultMaxPhotoBytes), cfg.MaxPhotoBytes)
	assert.Equal(t, analysis.DefaultPricing, cfg.Pricing)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
		endpoint: https://visagista.example/api/analyze-face
		request_timeout: 45s
		pricing:
		  per_image: 0.05
		profile:
		  genero: femenino
		  forma_mandibula: angular
	`)

	clearEnv(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://visagista.example/api/analyze-face", cfg.Endpoint)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(DefaultMaxPhotoBytes), cfg.MaxPhotoBytes)
	assert.Equal(t, 0.05, cfg.Pricing.PerImage)
	// unset keys keep their defaults
	assert.Equal(t, 2.50, cfg.Pricing.OutputPerMillion)
	assert.Equal(t, "femenino", cfg.Profile.Genero)
	assert.Equal(t, "angular", cfg.Profile.FormaMandibula)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
		endpoint: https://from-file.example/api/analyze-face
	`)
	t.Setenv("VISAGISTA_ENDPOINT", "http://from-env:3001/api/analyze-face")
	t.Setenv("VISAGISTA_REQUEST_TIMEOUT", "5s")
	t.Setenv("VISAGISTA_MAX_PHOTO_BYTES", "1024")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:3001/api/analyze-face", cfg.Endpoint)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(1024), cfg.MaxPhotoBytes)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "endpoint: [unclosed"))
	assert.Error(t, err)

	t.Setenv("VISAGISTA_REQUEST_TIMEOUT", "soon")
	_, err = Load("")
	assert.ErrorContains(t, err, "VISAGISTA_REQUEST_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"empty endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is not set"},
		{"not http", func(c *Config) { c.Endpoint = "ftp://host/x" }, "http(s) URL"},
		{"no host", func(c *Config) { c.Endpoint = "http:///api" }, "http(s) URL"},
		{"relative", func(c *Config) { c.Endpoint = "/api/analyze-face" }, "http(s) URL"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"zero photo size", func(c *Config) { c.MaxPhotoBytes = 0 }, "max_photo_bytes"},
		{"negative rate", func(c *Config) { c.Pricing.PerImage = -1 }, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	t.Setenv("HOME", base)
	dir := filepath.Join(base, AppName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFileName), []byte("VISAGISTA_TEST_KEY=from-env-file\n"), 0o644))
	t.Setenv("VISAGISTA_TEST_KEY", "")
	os.Unsetenv("VISAGISTA_TEST_KEY")

	LoadEnvFile()

	assert.Equal(t, "from-env-file", os.Getenv("VISAGISTA_TEST_KEY"))
}
