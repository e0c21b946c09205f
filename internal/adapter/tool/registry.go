package tool

import (
	"log/slog"
	"sync"

	"teller/internal/domain"
)

// Registry holds named tools. The tool set is closed: Register rejects any
// name outside the published catalog, so a registry can only ever hold a
// subset of the known tools. Agents get scoped registries holding just the
// tools they may call.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]domain.Tool
	logger *slog.Logger
}

// NewRegistry creates an empty tool registry. Tools are wrapped with schema
// validation on Register; a schema that fails to compile is a construction
// error, not a degraded mode.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]domain.Tool),
		logger: logger,
	}
}

// Register adds a tool, wrapping it with schema validation.
func (r *Registry) Register(t domain.Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if !domain.KnownTool(name) {
		return domain.NewDomainError("Registry.Register", domain.ErrToolNotFound, name)
	}
	if _, exists := r.tools[name]; exists {
		return domain.NewDomainError("Registry.Register", domain.ErrInvalidInput, name+" already registered")
	}

	wrapped, err := WithSchemaValidation(t)
	if err != nil {
		return domain.WrapOp("Registry.Register", err)
	}

	r.tools[name] = wrapped
	r.logger.Debug("tool registered", "tool", name)
	return nil
}

// MustRegister registers each tool and panics on failure. The catalog is
// assembled once at startup from compile-time constants, so a failure here
// is a programming error.
func (r *Registry) MustRegister(tools ...domain.Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (domain.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

// Schemas returns all tool schemas for LLM function-calling.
func (r *Registry) Schemas() []domain.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]domain.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		schemas = append(schemas, t.Schema())
	}
	return schemas
}
