package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{Path: "data/test.db"},
		Policy: PolicyConfig{
			AutoConsentWindowDays: 7,
			ConsentValidityDays:   365,
			GradeMin:              0,
			GradeMax:              12,
		},
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, true},
		{"non-positive consent window", func(c *Config) { c.Policy.AutoConsentWindowDays = 0 }, true},
		{"non-positive validity", func(c *Config) { c.Policy.ConsentValidityDays = -1 }, true},
		{"inverted grade range", func(c *Config) { c.Policy.GradeMin = 13 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9090\npolicy:\n  auto_consent_window_days: 14\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// File values win
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Policy.AutoConsentWindowDays != 14 {
		t.Errorf("AutoConsentWindowDays = %d, want 14", cfg.Policy.AutoConsentWindowDays)
	}

	// Unset values fall back to defaults
	if cfg.Policy.ConsentValidityDays != 365 {
		t.Errorf("ConsentValidityDays = %d, want 365", cfg.Policy.ConsentValidityDays)
	}
	if cfg.Database.Path != "data/lifecycle.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
}
