// Package config provides unified configuration for the werkbank gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (WERKBANK_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the werkbank gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Completion    CompletionConfig    `yaml:"completion"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 300s (turns include sandbox execution)
}

// CompletionConfig holds completion-service settings.
type CompletionConfig struct {
	BackendURL string        `yaml:"backend_url"`  // required unless pipeline stages using it are disabled
	APIKey     string        `yaml:"api_key"`      // optional
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Timeout    time.Duration `yaml:"timeout"`      // default: 120s

	// Model is the unified model name used by every stage unless
	// SeparateModels is set.
	Model string `yaml:"model"`

	// SeparateModels enables per-stage model selection.
	SeparateModels bool `yaml:"separate_models"`

	Intent     StageModelConfig `yaml:"intent"`
	Generation StageModelConfig `yaml:"generation"`
	Summary    StageModelConfig `yaml:"summary"`
}

// StageModelConfig holds a per-stage model name and temperature override.
// A nil temperature means the backend default is used.
type StageModelConfig struct {
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
}

// SandboxConfig holds execution-service settings.
type SandboxConfig struct {
	// Mode selects the provisioner: "http" (static URL) or "kubernetes"
	// (SandboxClaim per call). Default: "http".
	Mode string `yaml:"mode"`

	// URL is the execution service endpoint for http mode.
	URL string `yaml:"url"`

	// APIKey authenticates against the execution service.
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"`

	// BaseURLOverride replaces the service's default API base (http mode).
	BaseURLOverride string `yaml:"base_url_override"`

	// Template and Namespace select the SandboxTemplate CRD (kubernetes mode).
	Template  string `yaml:"template"`
	Namespace string `yaml:"namespace"`

	ExecutionTimeout time.Duration `yaml:"execution_timeout"` // default: 60s
	ProvisionTimeout time.Duration `yaml:"provision_timeout"` // default: 60s
	MaxRetries       int           `yaml:"max_retries"`       // provisioning retries, default: 2
	MaxOutputLength  int           `yaml:"max_output_length"` // captured stdout cap in runes, default: 5000
	InjectSetupCode  bool          `yaml:"inject_setup_code"` // prepend plotting preamble, default: true
	AutoRequirements bool          `yaml:"auto_requirements"` // detect and install referenced libraries, default: true
}

// PipelineConfig holds stage feature toggles and shaping settings.
type PipelineConfig struct {
	EnableClassification bool `yaml:"enable_classification"` // default: true
	EnableGeneration     bool `yaml:"enable_generation"`     // default: true
	EnableSummary        bool `yaml:"enable_summary"`        // default: false

	// MaxMessageLength caps rendered output text in the final message.
	MaxMessageLength int `yaml:"max_message_length"` // default: 1000
}

// StorageConfig holds turn-record persistence settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "none", "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type    string         `yaml:"type"`     // "none", "apikey", "jwt", default: "none"
	APIKeys []APIKeyConfig `yaml:"api_keys"` // API key entries for type=apikey
	JWT     JWTConfig      `yaml:"jwt"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig holds JWT verification settings. Tokens are verified
// against the RSA keys published at the JWKS URL.
type JWTConfig struct {
	JWKSURL  string `yaml:"jwks_url"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// MCPConfig holds settings for the MCP tool surface.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Path    string `yaml:"path"`    // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	Categories string `yaml:"categories"` // e.g. "sandbox,synth" or "all"
	LogLevel   string `yaml:"log_level"`  // ERROR..TRACE, default: INFO
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 300 * time.Second,
		},
		Completion: CompletionConfig{
			Timeout:    120 * time.Second,
			Intent:     StageModelConfig{Temperature: floatPtr(0.3)},
			Generation: StageModelConfig{Temperature: floatPtr(0.5)},
			Summary:    StageModelConfig{Temperature: floatPtr(0.3)},
		},
		Sandbox: SandboxConfig{
			Mode:             "http",
			ExecutionTimeout: 60 * time.Second,
			ProvisionTimeout: 60 * time.Second,
			MaxRetries:       2,
			MaxOutputLength:  5000,
			InjectSetupCode:  true,
			AutoRequirements: true,
		},
		Pipeline: PipelineConfig{
			EnableClassification: true,
			EnableGeneration:     true,
			EnableSummary:        false,
			MaxMessageLength:     1000,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		MCP: MCPConfig{
			Path: "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Debug: DebugConfig{
			LogLevel: "INFO",
		},
	}
}

func floatPtr(f float64) *float64 { return &f }
