// Command server runs the werkbank chat-to-sandbox gateway.
//
// Configuration is loaded from a YAML file (-config flag, WERKBANK_CONFIG
// env or ./config.yaml) with WERKBANK_* environment overrides. The most
// common settings:
//
//	WERKBANK_BACKEND_URL  - Chat Completions backend URL
//	WERKBANK_SANDBOX_URL  - Execution service URL (http mode)
//	WERKBANK_PORT         - Listen port (default: 8080)
//	WERKBANK_STORAGE      - Storage type: "memory", "postgres" or "none"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/jkoenig/werkbank/pkg/auth"
	"github.com/jkoenig/werkbank/pkg/auth/apikey"
	"github.com/jkoenig/werkbank/pkg/auth/jwt"
	"github.com/jkoenig/werkbank/pkg/auth/noop"
	"github.com/jkoenig/werkbank/pkg/catalog"
	"github.com/jkoenig/werkbank/pkg/completion"
	"github.com/jkoenig/werkbank/pkg/config"
	"github.com/jkoenig/werkbank/pkg/debug"
	"github.com/jkoenig/werkbank/pkg/engine"
	"github.com/jkoenig/werkbank/pkg/intent"
	"github.com/jkoenig/werkbank/pkg/sandbox"
	"github.com/jkoenig/werkbank/pkg/sandbox/kubernetes"
	"github.com/jkoenig/werkbank/pkg/shape"
	"github.com/jkoenig/werkbank/pkg/storage"
	"github.com/jkoenig/werkbank/pkg/storage/memory"
	"github.com/jkoenig/werkbank/pkg/storage/postgres"
	"github.com/jkoenig/werkbank/pkg/synth"
	transporthttp "github.com/jkoenig/werkbank/pkg/transport/http"
	transportmcp "github.com/jkoenig/werkbank/pkg/transport/mcp"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debug.Init(cfg.Debug.Categories, cfg.Debug.LogLevel)
	logger := slog.Default()

	// Completion backend, shared by classification, generation and
	// summary. Optional when all three stages are disabled.
	var chat completion.Client
	if cfg.Completion.BackendURL != "" {
		c, err := completion.NewChat(completion.ChatConfig{
			BaseURL: cfg.Completion.BackendURL,
			APIKey:  cfg.Completion.APIKey,
			Timeout: cfg.Completion.Timeout,
		})
		if err != nil {
			return fmt.Errorf("creating completion client: %w", err)
		}
		defer c.Close()
		chat = c
	}

	selectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	model := cfg.Completion.Model
	if chat != nil {
		model = completion.SelectModel(selectCtx, chat, cfg.Completion.Model)
	}

	classifier := intent.NewClassifier(chat, intent.Options{
		Model:       stageModel(cfg.Completion, cfg.Completion.Intent, model),
		Temperature: cfg.Completion.Intent.Temperature,
		Logger:      logger,
	})

	synthesizer := synth.New(catalog.New(), synth.Options{
		Client:      chat,
		Model:       stageModel(cfg.Completion, cfg.Completion.Generation, model),
		Temperature: cfg.Completion.Generation.Temperature,
		LLMEnabled:  cfg.Pipeline.EnableGeneration,
		Logger:      logger,
	})

	service, err := buildSandboxService(cfg.Sandbox)
	if err != nil {
		return fmt.Errorf("creating sandbox service: %w", err)
	}
	runner := sandbox.NewRunner(service, sandbox.RunnerConfig{
		ExecutionTimeout: cfg.Sandbox.ExecutionTimeout,
		ProvisionTimeout: cfg.Sandbox.ProvisionTimeout,
		MaxRetries:       cfg.Sandbox.MaxRetries,
		MaxOutputLength:  cfg.Sandbox.MaxOutputLength,
		InjectSetupCode:  cfg.Sandbox.InjectSetupCode,
		AutoRequirements: cfg.Sandbox.AutoRequirements,
	}, logger)

	shaper := shape.New(shape.Options{
		MaxMessageLength: cfg.Pipeline.MaxMessageLength,
		EnableSummary:    cfg.Pipeline.EnableSummary,
		Client:           chat,
		Model:            stageModel(cfg.Completion, cfg.Completion.Summary, model),
		Temperature:      cfg.Completion.Summary.Temperature,
		Logger:           logger,
	})

	store, err := buildStore(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	eng, err := engine.New(classifier, synthesizer, runner, shaper, store, engine.Config{
		EnableClassification: cfg.Pipeline.EnableClassification,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	authMW, err := buildAuthMiddleware(cfg.Auth)
	if err != nil {
		return fmt.Errorf("creating auth middleware: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithLogger(logger),
		transporthttp.WithHTTPMiddleware(authMW),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetricsPath(cfg.Observability.Metrics.Path))
	}
	if cfg.MCP.Enabled {
		mcpSrv := transportmcp.NewServer(eng, logger)
		opts = append(opts, transporthttp.WithHTTPMiddleware(mountMCP(cfg.MCP.Path, mcpSrv.Handler())))
		logger.Info("mcp surface enabled", "path", cfg.MCP.Path)
	}

	srv := transporthttp.NewServer(eng, store, opts...)
	logger.Info("werkbank starting",
		"port", cfg.Server.Port,
		"backend", cfg.Completion.BackendURL,
		"model", model,
		"sandbox_mode", cfg.Sandbox.Mode,
		"storage", cfg.Storage.Type,
	)
	return srv.Run(context.Background())
}

// stageModel picks the per-stage model when separate models are enabled,
// falling back to the unified model.
func stageModel(cc config.CompletionConfig, stage config.StageModelConfig, unified string) string {
	if cc.SeparateModels && stage.Model != "" {
		return stage.Model
	}
	return unified
}

func buildSandboxService(cfg config.SandboxConfig) (sandbox.Service, error) {
	switch cfg.Mode {
	case "", "http":
		return sandbox.NewHTTPService(sandbox.HTTPConfig{
			URL:    cfg.URL,
			APIKey: cfg.APIKey,
		})
	case "kubernetes":
		scheme, err := kubernetes.NewScheme()
		if err != nil {
			return nil, err
		}
		restCfg, err := ctrlconfig.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig: %w", err)
		}
		cl, err := client.New(restCfg, client.Options{Scheme: scheme})
		if err != nil {
			return nil, fmt.Errorf("creating kubernetes client: %w", err)
		}
		return kubernetes.NewClaimService(cl, cfg.Template, cfg.Namespace, cfg.BaseURLOverride), nil
	default:
		return nil, fmt.Errorf("unknown sandbox mode %q", cfg.Mode)
	}
}

func buildStore(cfg config.StorageConfig, logger *slog.Logger) (storage.TurnStore, error) {
	switch cfg.Type {
	case "none":
		logger.Info("storage disabled")
		return nil, nil
	case "", "memory":
		logger.Info("storage enabled", "type", "memory", "max_size", cfg.MaxSize)
		return memory.New(cfg.MaxSize), nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("storage enabled", "type", "postgres")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func buildAuthMiddleware(cfg config.AuthConfig) (func(http.Handler) http.Handler, error) {
	var chain *auth.Chain
	var limiter auth.RateLimiter

	switch cfg.Type {
	case "", "none":
		chain = &auth.Chain{
			Voters:   []auth.Authenticator{noop.Authenticator{}},
			Fallback: auth.Allow,
		}
	case "apikey":
		creds := make([]apikey.Credential, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			creds = append(creds, apikey.Credential{
				Key: k.Key,
				Identity: auth.Identity{
					Subject: k.Subject,
					Tier:    k.ServiceTier,
				},
			})
		}
		chain = &auth.Chain{
			Voters:   []auth.Authenticator{apikey.New(creds)},
			Fallback: auth.Deny,
		}
		limiter = auth.NewInProcessLimiter(nil, 60)
	case "jwt":
		chain = &auth.Chain{
			Voters: []auth.Authenticator{jwt.New(jwt.Config{
				JWKSURL:  cfg.JWT.JWKSURL,
				Issuer:   cfg.JWT.Issuer,
				Audience: cfg.JWT.Audience,
			})},
			Fallback: auth.Deny,
		}
		limiter = auth.NewInProcessLimiter(nil, 60)
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}

// mountMCP returns HTTP middleware that serves the MCP handler at the
// given path prefix and delegates everything else.
func mountMCP(path string, handler http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		mux := http.NewServeMux()
		mux.Handle(path, handler)
		mux.Handle("/", next)
		return mux
	}
}
