package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	// server.port must be positive.
	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// completion.backend_url is required when any LLM stage is enabled.
	llmNeeded := c.Pipeline.EnableClassification || c.Pipeline.EnableGeneration || c.Pipeline.EnableSummary
	if llmNeeded && c.Completion.BackendURL == "" {
		errs = append(errs, fmt.Errorf("completion.backend_url is required while classification, generation, or summary is enabled"))
	}

	// sandbox.mode must be a known value, with its mode-specific fields.
	switch c.Sandbox.Mode {
	case "http":
		if c.Sandbox.URL == "" {
			errs = append(errs, fmt.Errorf("sandbox.url is required when sandbox.mode is \"http\""))
		}
	case "kubernetes":
		if c.Sandbox.Template == "" {
			errs = append(errs, fmt.Errorf("sandbox.template is required when sandbox.mode is \"kubernetes\""))
		}
	default:
		errs = append(errs, fmt.Errorf("sandbox.mode must be \"http\" or \"kubernetes\", got %q", c.Sandbox.Mode))
	}

	if c.Sandbox.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("sandbox.max_retries must be >= 1, got %d", c.Sandbox.MaxRetries))
	}
	if c.Sandbox.MaxOutputLength <= 0 {
		errs = append(errs, fmt.Errorf("sandbox.max_output_length must be > 0, got %d", c.Sandbox.MaxOutputLength))
	}
	if c.Pipeline.MaxMessageLength <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_message_length must be > 0, got %d", c.Pipeline.MaxMessageLength))
	}

	// storage.type must be a known value.
	switch c.Storage.Type {
	case "none", "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"none\", \"memory\", or \"postgres\", got %q", c.Storage.Type))
	}

	// If storage.type is "postgres", DSN or DSNFile must be set.
	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	// auth.type must be a known value.
	switch c.Auth.Type {
	case "none", "apikey", "jwt":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Auth.Type == "jwt" && c.Auth.JWT.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
	}

	// Stage temperatures must be in [0, 2] when set.
	for _, stage := range []struct {
		name string
		cfg  StageModelConfig
	}{
		{"completion.intent", c.Completion.Intent},
		{"completion.generation", c.Completion.Generation},
		{"completion.summary", c.Completion.Summary},
	} {
		if t := stage.cfg.Temperature; t != nil && (*t < 0 || *t > 2) {
			errs = append(errs, fmt.Errorf("%s.temperature must be in [0, 2], got %g", stage.name, *t))
		}
	}

	return errors.Join(errs...)
}
