package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Sandbox.Mode != "http" {
		t.Errorf("default sandbox mode = %q, want http", cfg.Sandbox.Mode)
	}
	if cfg.Sandbox.MaxRetries != 2 {
		t.Errorf("default max retries = %d, want 2", cfg.Sandbox.MaxRetries)
	}
	if cfg.Sandbox.ExecutionTimeout != 60*time.Second {
		t.Errorf("default execution timeout = %s, want 60s", cfg.Sandbox.ExecutionTimeout)
	}
	if !cfg.Pipeline.EnableClassification || !cfg.Pipeline.EnableGeneration {
		t.Error("classification and generation should default to enabled")
	}
	if cfg.Pipeline.EnableSummary {
		t.Error("summary should default to disabled")
	}
	if cfg.Completion.Intent.Temperature == nil || *cfg.Completion.Intent.Temperature != 0.3 {
		t.Error("intent temperature should default to 0.3")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
completion:
  backend_url: http://llm:8000
  model: coder-7b
sandbox:
  url: http://sandbox:8080
  execution_timeout: 30s
  max_output_length: 2000
storage:
  type: none
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Completion.Model != "coder-7b" {
		t.Errorf("model = %q", cfg.Completion.Model)
	}
	if cfg.Sandbox.ExecutionTimeout != 30*time.Second {
		t.Errorf("execution timeout = %s, want 30s", cfg.Sandbox.ExecutionTimeout)
	}
	// Unset fields keep defaults.
	if cfg.Sandbox.MaxRetries != 2 {
		t.Errorf("max retries = %d, want default 2", cfg.Sandbox.MaxRetries)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
completion:
  backend_url: http://file-wins:8000
sandbox:
  url: http://sandbox:8080
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WERKBANK_BACKEND_URL", "http://env-wins:8000")
	t.Setenv("WERKBANK_PORT", "7070")
	t.Setenv("WERKBANK_STORAGE", "none")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Completion.BackendURL != "http://env-wins:8000" {
		t.Errorf("backend URL = %q, env should override file", cfg.Completion.BackendURL)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Storage.Type != "none" {
		t.Errorf("storage type = %q, want none", cfg.Storage.Type)
	}
}

func TestLoad_FileReferences(t *testing.T) {
	dir := t.TempDir()

	secretPath := filepath.Join(dir, "api_key")
	if err := os.WriteFile(secretPath, []byte("  sk-secret-value\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "config.yaml")
	yaml := `
completion:
  backend_url: http://llm:8000
  api_key_file: ` + secretPath + `
sandbox:
  url: http://sandbox:8080
storage:
  type: none
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Completion.APIKey != "sk-secret-value" {
		t.Errorf("api key = %q, want trimmed file content", cfg.Completion.APIKey)
	}
}

func TestLoad_MissingSecretFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
completion:
  backend_url: http://llm:8000
  api_key_file: /nonexistent/secret
sandbox:
  url: http://sandbox:8080
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for missing secret file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Completion.BackendURL = "http://llm:8000"
		cfg.Sandbox.URL = "http://sandbox:8080"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{
			"missing backend url",
			func(c *Config) { c.Completion.BackendURL = "" },
			"completion.backend_url",
		},
		{
			"backend url not needed when all stages disabled",
			func(c *Config) {
				c.Completion.BackendURL = ""
				c.Pipeline.EnableClassification = false
				c.Pipeline.EnableGeneration = false
				c.Pipeline.EnableSummary = false
			},
			"",
		},
		{
			"invalid sandbox mode",
			func(c *Config) { c.Sandbox.Mode = "docker" },
			"sandbox.mode",
		},
		{
			"http mode requires url",
			func(c *Config) { c.Sandbox.URL = "" },
			"sandbox.url",
		},
		{
			"kubernetes mode requires template",
			func(c *Config) { c.Sandbox.Mode = "kubernetes"; c.Sandbox.Template = "" },
			"sandbox.template",
		},
		{
			"invalid storage type",
			func(c *Config) { c.Storage.Type = "redis" },
			"storage.type",
		},
		{
			"postgres needs dsn",
			func(c *Config) { c.Storage.Type = "postgres" },
			"storage.postgres.dsn",
		},
		{
			"invalid auth type",
			func(c *Config) { c.Auth.Type = "oauth" },
			"auth.type",
		},
		{
			"jwt needs jwks url",
			func(c *Config) { c.Auth.Type = "jwt" },
			"auth.jwt.jwks_url",
		},
		{
			"temperature out of range",
			func(c *Config) { bad := 3.5; c.Completion.Intent.Temperature = &bad },
			"temperature",
		},
		{
			"zero retries",
			func(c *Config) { c.Sandbox.MaxRetries = 0 },
			"max_retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}
