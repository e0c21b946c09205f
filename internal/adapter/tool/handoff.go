package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"teller/internal/domain"
	"teller/internal/infra/tracer"
)

// HandoffTool transfers conversational ownership to another agent. Its
// result content is the JSON handoff payload the router interprets.
type HandoffTool struct {
	name   string
	target domain.AgentName
	logger *slog.Logger
}

// NewHandoffTools builds the transfer_to_* tools for the given targets.
func NewHandoffTools(logger *slog.Logger, targets ...domain.AgentName) []domain.Tool {
	names := map[domain.AgentName]string{
		domain.AgentSales:        domain.ToolGotoSales,
		domain.AgentSupport:      domain.ToolGotoSupport,
		domain.AgentTransactions: domain.ToolGotoTransactions,
	}
	tools := make([]domain.Tool, 0, len(targets))
	for _, target := range targets {
		name, ok := names[target]
		if !ok {
			panic(fmt.Sprintf("no handoff tool for agent %q", target))
		}
		tools = append(tools, &HandoffTool{name: name, target: target, logger: logger})
	}
	return tools
}

func (t *HandoffTool) Name() string { return t.name }

func (t *HandoffTool) Description() string {
	switch t.target {
	case domain.AgentSales:
		return "Transfer the conversation to the sales agent for product offers, loans, and new accounts."
	case domain.AgentSupport:
		return "Transfer the conversation to the customer support agent for service requests and branch information."
	default:
		return "Transfer the conversation to the transactions agent for balances, transfers, and history."
	}
}

func (t *HandoffTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.name,
		Description: t.Description(),
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

func (t *HandoffTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool."+t.name, t.logger, params,
		func(ctx context.Context, span trace.Span, _ struct{}) (any, error) {
			span.SetAttributes(tracer.StringAttr("handoff.target", string(t.target)))
			payload, err := json.Marshal(map[string]string{"goto": string(t.target)})
			if err != nil {
				return nil, err
			}
			return TextResult(string(payload)), nil
		})
}
