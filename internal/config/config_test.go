package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Port:            "8080",
		TemplateDir:     "web/templates",
		DBPath:          "expenses.db",
		UploadDir:       "uploads",
		SessionDuration: 24 * time.Hour,
		MaxUploadBytes:  1 << 20,
		FetchTimeout:    time.Second,
		LogLevel:        "info",
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "UPLOAD_DIR", "SESSION_DURATION", "MAX_UPLOAD_BYTES", "LOG_LEVEL", "CONFIG_FILE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "expenses.db", cfg.DBPath)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionDuration)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.False(t, cfg.SecureCookie)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("SECURE_COOKIE", "true")
	t.Setenv("SESSION_DURATION", "2h")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.True(t, cfg.SecureCookie)
	assert.Equal(t, 2*time.Hour, cfg.SessionDuration)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadFromConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("port: \"7070\"\nupload_dir: /srv/uploads\n"), 0o644))
	t.Setenv("CONFIG_FILE", file)
	t.Setenv("UPLOAD_DIR", "")
	os.Unsetenv("UPLOAD_DIR")
	t.Setenv("PORT", "")
	os.Unsetenv("PORT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "/srv/uploads", cfg.UploadDir)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errorString string
	}{
		{"valid", func(*Config) {}, ""},
		{"non-numeric port", func(c *Config) { c.Port = "abc" }, "invalid port 'abc': must be a number"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "invalid port 70000: must be between 1 and 65535"},
		{"empty db path", func(c *Config) { c.DBPath = "" }, "database path cannot be empty"},
		{"empty upload dir", func(c *Config) { c.UploadDir = "" }, "upload directory cannot be empty"},
		{"short session", func(c *Config) { c.SessionDuration = time.Second }, "invalid session duration"},
		{"zero upload size", func(c *Config) { c.MaxUploadBytes = 0 }, "invalid max upload size 0"},
		{"admin email alone", func(c *Config) { c.AdminEmail = "a@b.c" }, "must be set together"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level 'loud'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorString == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "x"
	cfg.DBPath = ""
	cfg.LogLevel = "nope"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
	assert.Contains(t, err.Error(), "database path")
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestCatalog(t *testing.T) {
	cfg := validConfig()
	cat := cfg.Catalog()
	assert.True(t, cat.HasCurrency("GBR"))
	assert.Equal(t, "GBP", cat.CurrencyLabel("GBR"))
	assert.False(t, cat.HasCurrency("USD"))
	assert.True(t, cat.HasCategory("CAR_RENTAL"))
}
