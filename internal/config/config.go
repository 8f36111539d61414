// Package config loads server configuration from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mmynk/splitsmart/internal/assistant"
)

// Config holds all configuration for the split server.
type Config struct {
	Port       int    `mapstructure:"port"`
	DBPath     string `mapstructure:"db_path"`
	StaticPath string `mapstructure:"static_path"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	SessionSecret string        `mapstructure:"session_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	UndoDepth     int           `mapstructure:"undo_depth"`

	GeminiAPIKey     string        `mapstructure:"gemini_api_key"`
	GeminiModel      string        `mapstructure:"gemini_model"`
	GeminiBaseURL    string        `mapstructure:"gemini_base_url"`
	AssistantTimeout time.Duration `mapstructure:"assistant_timeout"`
	MaxImageBytes    int           `mapstructure:"max_image_bytes"`

	// EphemeralSecret is set when no SESSION_SECRET was configured and one was
	// generated. Tokens then do not survive a restart.
	EphemeralSecret bool `mapstructure:"-"`
}

var defaults = map[string]any{
	"port":              8080,
	"db_path":           "./data/splits.db",
	"static_path":       "",
	"log_level":         "info",
	"log_format":        "text",
	"session_secret":    "",
	"session_ttl":       2 * time.Hour,
	"max_sessions":      1000,
	"undo_depth":        50,
	"gemini_api_key":    "",
	"gemini_model":      assistant.DefaultModel,
	"gemini_base_url":   assistant.DefaultBaseURL,
	"assistant_timeout": 60 * time.Second,
	"max_image_bytes":   10 << 20,
}

// Load reads configuration. path names an optional YAML file; environment
// variables (PORT, DB_PATH, SESSION_TTL, ...) override it.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SessionSecret = secret
		cfg.EphemeralSecret = true
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.DBPath == "" {
		problems = append(problems, "database path cannot be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}
	if len(c.SessionSecret) < 16 {
		problems = append(problems, "session secret must be at least 16 characters")
	}
	if c.SessionTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("session ttl %s is too short: must be at least 1m", c.SessionTTL))
	}
	if c.MaxSessions < 1 {
		problems = append(problems, "max sessions must be positive")
	}
	if c.UndoDepth < 1 {
		problems = append(problems, "undo depth must be positive")
	}
	if c.AssistantTimeout <= 0 {
		problems = append(problems, "assistant timeout must be positive")
	}
	if c.MaxImageBytes < 1 {
		problems = append(problems, "max image bytes must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
