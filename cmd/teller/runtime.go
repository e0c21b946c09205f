package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"teller/internal/adapter/gateway"
	"teller/internal/adapter/llm"
	"teller/internal/adapter/store"
	"teller/internal/adapter/tool"
	"teller/internal/domain"
	"teller/internal/infra/config"
	"teller/internal/infra/logger"
	"teller/internal/infra/tracer"
	"teller/internal/usecase/agents"
	"teller/internal/usecase/ledger"
	"teller/internal/usecase/routing"
)

// Runtime is the explicit process-wide handle: every component is built
// once here and passed by reference. There are no package-level
// singletons.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *store.SQLiteStore
	Ledger  *ledger.Ledger
	Catalog *tool.Catalog
	Runner  *agents.Runner
	Engine  *routing.Engine
	Gateway *gateway.Server

	closers []func(context.Context) error
}

// NewRuntime constructs the full component graph from config.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	rt.Logger = log
	rt.onClose(func(context.Context) error { return closeLog() })

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		rt.close(ctx)
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	rt.onClose(shutdownTracer)

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		rt.close(ctx)
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.Store = st
	rt.onClose(func(context.Context) error { return st.Close() })

	if cfg.Storage.Seed {
		for _, tok := range cfg.Gateway.Tokens {
			if err := st.Seed(ctx, tok.TenantID, tok.UserID); err != nil {
				rt.close(ctx)
				return nil, fmt.Errorf("seed store: %w", err)
			}
		}
	}

	rt.Ledger = ledger.New(st, st, log)

	rt.Catalog, err = tool.NewCatalog(tool.Deps{
		Banking:  rt.Ledger,
		Offers:   st,
		Requests: st,
		Logger:   log,
	})
	if err != nil {
		rt.close(ctx)
		return nil, fmt.Errorf("build tool catalog: %w", err)
	}

	var provider domain.ChatProvider = llm.NewOpenAIProvider(cfg.LLM, os.Getenv(cfg.LLM.APIKeyEnv), log)
	if cfg.LLM.Breaker {
		provider = llm.WithCircuitBreaker(provider, log)
	}

	rt.Runner = agents.NewRunner(provider, rt.handlers(), log,
		cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	rt.Engine = routing.NewEngine(st, rt.Runner, log)

	if cfg.Gateway.Enabled {
		auth := gateway.NewStaticTokenAuth(cfg.Gateway.Tokens)
		rt.Gateway = gateway.NewServer(cfg.Gateway, rt.Catalog.All(), auth, log)
	}
	return rt, nil
}

// handlers assembles one Handler per agent, applying config overrides.
func (rt *Runtime) handlers() []*agents.Handler {
	names := []domain.AgentName{
		domain.AgentCoordinator,
		domain.AgentTransactions,
		domain.AgentSales,
		domain.AgentSupport,
	}
	out := make([]*agents.Handler, 0, len(names))
	for _, name := range names {
		h := &agents.Handler{
			Name:          name,
			SystemPrompt:  rt.systemPrompt(name),
			Tools:         rt.Catalog.ForAgent(name),
			MaxIterations: rt.Config.Agents.MaxIterations,
		}
		if o, ok := rt.Config.Agents.Overrides[string(name)]; ok {
			if o.SystemPrompt != "" {
				h.SystemPrompt = o.SystemPrompt
			}
			if o.Model != "" {
				h.Model = o.Model
			}
			if o.MaxIterations > 0 {
				h.MaxIterations = o.MaxIterations
			}
		}
		out = append(out, h)
	}
	return out
}

// systemPrompt resolves a handler's prompt: a .prompty file from the
// configured prompt directory wins over the built-in default.
func (rt *Runtime) systemPrompt(name domain.AgentName) string {
	dir := rt.Config.Agents.PromptDir
	if dir == "" {
		return agents.DefaultPrompt(name)
	}
	data, err := os.ReadFile(filepath.Join(dir, string(name)+".prompty"))
	if err != nil {
		rt.Logger.Debug("prompt file not loaded, using default", "agent", name, "error", err)
		return agents.DefaultPrompt(name)
	}
	return strings.TrimSpace(string(data))
}

func (rt *Runtime) onClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

// Close tears the runtime down in reverse construction order.
func (rt *Runtime) Close(ctx context.Context) error {
	return rt.close(ctx)
}

func (rt *Runtime) close(ctx context.Context) error {
	var firstErr error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	rt.closers = nil
	return firstErr
}
