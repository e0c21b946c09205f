package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"teller/internal/domain"
)

// HealthCheckTool reports process liveness and uptime.
type HealthCheckTool struct {
	logger  *slog.Logger
	started time.Time
}

func NewHealthCheckTool(logger *slog.Logger) *HealthCheckTool {
	return &HealthCheckTool{logger: logger, started: time.Now()}
}

func (t *HealthCheckTool) Name() string { return domain.ToolHealthCheck }

func (t *HealthCheckTool) Description() string {
	return "Check that the server is healthy and report its uptime."
}

func (t *HealthCheckTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

func (t *HealthCheckTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.health_check", t.logger, params,
		func(ctx context.Context, span trace.Span, _ struct{}) (any, error) {
			uptime := time.Since(t.started)
			return fmt.Sprintf("Server is healthy. Uptime: %.1fs", uptime.Seconds()), nil
		})
}
