package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Federation.ServerTimeout != 15*time.Second {
		t.Errorf("Federation.ServerTimeout = %v, want 15s", cfg.Federation.ServerTimeout)
	}
	if cfg.Federation.DefaultLimit != 200 {
		t.Errorf("Federation.DefaultLimit = %d, want 200", cfg.Federation.DefaultLimit)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v, want 30m", cfg.Session.TTL)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Cache.Type = %q, want memory", cfg.Cache.Type)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("FEDERATION_SERVER_TIMEOUT", "5s")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ris.local, https://viewer.local")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Federation.ServerTimeout != 5*time.Second {
		t.Errorf("Federation.ServerTimeout = %v, want 5s", cfg.Federation.ServerTimeout)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled = true, want false")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://viewer.local" {
		t.Errorf("CORS.AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, _ := Load()
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("Expected a valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing db name", func(c *Config) { c.Database.DBName = "" }},
		{"bad cache type", func(c *Config) { c.Cache.Type = "memcached" }},
		{"bad federation timeout", func(c *Config) { c.Federation.ServerTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}
