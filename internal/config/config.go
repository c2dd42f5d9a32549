package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"weekly-expenses/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port         string
	TemplateDir  string
	StaticDir    string
	SecureCookie bool

	// Storage
	DBPath    string
	UploadDir string

	// Sessions
	SessionDuration time.Duration

	// Attachments
	MaxUploadBytes int64
	FetchTimeout   time.Duration

	// Bootstrap user, created when the database has no users
	AdminEmail    string
	AdminPassword string

	LogLevel string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("template_dir", "web/templates")
	v.SetDefault("static_dir", "web/static")
	v.SetDefault("secure_cookie", false)
	v.SetDefault("db_path", "expenses.db")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("session_duration", 30*24*time.Hour)
	v.SetDefault("max_upload_bytes", int64(10<<20))
	v.SetDefault("fetch_timeout", 15*time.Second)
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("log_level", "info")
}

// Load reads a .env file if present, then the environment. When CONFIG_FILE
// names a file its values sit between the defaults and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return &Config{
		Port:            v.GetString("port"),
		TemplateDir:     v.GetString("template_dir"),
		StaticDir:       v.GetString("static_dir"),
		SecureCookie:    v.GetBool("secure_cookie"),
		DBPath:          v.GetString("db_path"),
		UploadDir:       v.GetString("upload_dir"),
		SessionDuration: v.GetDuration("session_duration"),
		MaxUploadBytes:  v.GetInt64("max_upload_bytes"),
		FetchTimeout:    v.GetDuration("fetch_timeout"),
		AdminEmail:      v.GetString("admin_email"),
		AdminPassword:   v.GetString("admin_password"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
	}, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		errors = append(errors, "database path cannot be empty")
	}
	if c.UploadDir == "" {
		errors = append(errors, "upload directory cannot be empty")
	}
	if c.TemplateDir == "" {
		errors = append(errors, "template directory cannot be empty")
	}

	if c.SessionDuration < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session duration %v: must be at least 1 minute", c.SessionDuration))
	}
	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}
	if c.FetchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be positive", c.FetchTimeout))
	}

	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errors = append(errors, "ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}

	if _, ok := logLevels[c.LogLevel]; !ok {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	if l, ok := logLevels[c.LogLevel]; ok {
		return l
	}
	return slog.LevelInfo
}

// Catalog returns the currencies and categories expenses may use.
func (c *Config) Catalog() models.Catalog {
	return models.DefaultCatalog()
}
