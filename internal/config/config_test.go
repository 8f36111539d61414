package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name         string
		env          map[string]string
		file         string
		validateFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			validateFunc: func(t *testing.T, cfg *Config) {
				if cfg.Port != 8080 || cfg.DBPath != "./data/splits.db" {
					t.Errorf("port/db = %d/%s", cfg.Port, cfg.DBPath)
				}
				if cfg.SessionTTL != 2*time.Hour || cfg.UndoDepth != 50 || cfg.MaxSessions != 1000 {
					t.Errorf("session settings = %+v", cfg)
				}
				if !cfg.EphemeralSecret || len(cfg.SessionSecret) != 64 {
					t.Errorf("expected a generated secret, got %q", cfg.SessionSecret)
				}
			},
		},
		{
			name: "environment overrides",
			env: map[string]string{
				"PORT":           "9090",
				"SESSION_TTL":    "30m",
				"SESSION_SECRET": "0123456789abcdef0123",
				"GEMINI_API_KEY": "key",
			},
			validateFunc: func(t *testing.T, cfg *Config) {
				if cfg.Port != 9090 || cfg.SessionTTL != 30*time.Minute {
					t.Errorf("port/ttl = %d/%s", cfg.Port, cfg.SessionTTL)
				}
				if cfg.EphemeralSecret || cfg.SessionSecret != "0123456789abcdef0123" {
					t.Errorf("secret = %q (ephemeral %v)", cfg.SessionSecret, cfg.EphemeralSecret)
				}
				if cfg.GeminiAPIKey != "key" {
					t.Errorf("gemini key = %q", cfg.GeminiAPIKey)
				}
			},
		},
		{
			name: "file with env precedence",
			file: "port: 7070\nundo_depth: 5\nlog_format: json\n",
			env:  map[string]string{"UNDO_DEPTH": "9"},
			validateFunc: func(t *testing.T, cfg *Config) {
				if cfg.Port != 7070 || cfg.LogFormat != "json" {
					t.Errorf("file values not applied: %+v", cfg)
				}
				if cfg.UndoDepth != 9 {
					t.Errorf("undo depth = %d, want env value 9", cfg.UndoDepth)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = filepath.Join(t.TempDir(), "config.yaml")
				if err := os.WriteFile(path, []byte(tt.file), 0o600); err != nil {
					t.Fatal(err)
				}
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() unexpected error: %v", err)
			}
			tt.validateFunc(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Port:          0,
		LogLevel:      "loud",
		LogFormat:     "xml",
		SessionSecret: "short",
		SessionTTL:    time.Second,
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"invalid port", "database path", "log level", "log format", "session secret", "session ttl", "undo depth"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}
