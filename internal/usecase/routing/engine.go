package routing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"teller/internal/domain"
	"teller/internal/infra/tracer"
)

// AgentInvoker runs one handler turn for a named agent and returns the
// messages it produced (assistant and tool messages, in order).
type AgentInvoker interface {
	Invoke(ctx context.Context, agent domain.AgentName, msgs []domain.Message) ([]domain.Message, error)
}

// Engine decides which agent handles each inbound turn. Routing is sticky:
// once a concrete handler is persisted for a thread, later turns go straight
// to it without consulting the coordinator.
type Engine struct {
	store  domain.ActiveAgentStore
	agents AgentInvoker
	logger *slog.Logger
}

func NewEngine(store domain.ActiveAgentStore, agents AgentInvoker, logger *slog.Logger) *Engine {
	return &Engine{store: store, agents: agents, logger: logger}
}

// Route runs one conversational turn for the thread and returns the final
// handoff decision plus every message produced along the way.
//
// A store lookup failure is treated the same as an unseen thread: the turn
// falls back to the coordinator rather than failing. An invocation error is
// terminal for the turn; nothing is persisted and no fallback runs.
func (e *Engine) Route(ctx context.Context, thread *domain.Thread, inbound domain.Message) (*domain.HandoffDecision, error) {
	ctx, span := tracer.StartSpan(ctx, "routing.Route",
		trace.WithAttributes(tracer.StringAttr("thread.id", thread.ID)))
	defer span.End()

	active, err := e.store.ActiveAgent(ctx, thread.TenantID, thread.UserID, thread.ID)
	if err != nil {
		e.logger.DebugContext(ctx, "active agent lookup failed, routing via coordinator",
			"thread_id", thread.ID, "error", err)
		active = domain.AgentUnknown
	}

	executed := domain.AgentCoordinator
	if active.Concrete() {
		executed = active
	}

	msgs := make([]domain.Message, 0, len(thread.Messages)+1)
	msgs = append(msgs, thread.Messages...)
	msgs = append(msgs, inbound)

	out, err := e.agents.Invoke(ctx, executed, msgs)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("routing.Route", err)
	}

	candidate := ExtractHandoff(out)
	if candidate == executed {
		// A handler naming itself is a loop, not progress. Suspend to a
		// human instead of re-dispatching.
		e.logger.WarnContext(ctx, "self-handoff suppressed",
			"thread_id", thread.ID, "agent", string(executed))
		candidate = domain.AgentHuman
	}

	if candidate.Concrete() {
		if err := e.store.SetActiveAgent(ctx, thread.TenantID, thread.UserID, thread.ID, candidate); err != nil {
			// Stickiness degrades to coordinator routing next turn; the
			// decision itself still stands.
			e.logger.WarnContext(ctx, "failed to persist active agent",
				"thread_id", thread.ID, "agent", string(candidate), "error", err)
		}
	}

	e.logger.InfoContext(ctx, "turn routed",
		"thread_id", thread.ID,
		"executed", string(executed),
		"target", string(candidate))
	tracer.SetOK(span)
	return &domain.HandoffDecision{Target: candidate, Messages: out}, nil
}
