package agents

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"teller/internal/domain"
	"teller/internal/infra/tracer"
	"teller/internal/usecase/routing"
)

// defaultMaxIterations bounds the think/act loop when a handler does not
// set its own limit.
const defaultMaxIterations = 8

// Handler is one conversational agent: a system prompt plus the tools it
// is allowed to call. Each handler sees only its own tool set.
type Handler struct {
	Name          domain.AgentName
	SystemPrompt  string
	Tools         domain.ToolExecutor
	Model         string // overrides the runner-wide model when set
	MaxIterations int
}

// Runner drives handler turns against a chat provider. It implements the
// routing engine's AgentInvoker.
type Runner struct {
	provider    domain.ChatProvider
	handlers    map[domain.AgentName]*Handler
	logger      *slog.Logger
	model       string
	maxTokens   int
	temperature float64
}

// NewRunner builds a Runner for the given handlers.
func NewRunner(provider domain.ChatProvider, handlers []*Handler, logger *slog.Logger, model string, maxTokens int, temperature float64) *Runner {
	byName := make(map[domain.AgentName]*Handler, len(handlers))
	for _, h := range handlers {
		byName[h.Name] = h
	}
	return &Runner{
		provider:    provider,
		handlers:    byName,
		logger:      logger,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Invoke runs one turn for the named agent: the model is called with the
// handler's prompt and tools, tool calls are executed and fed back, and the
// loop ends on a plain assistant reply, a handoff, or the iteration cap.
// The returned slice holds only the messages this turn produced.
func (r *Runner) Invoke(ctx context.Context, agent domain.AgentName, msgs []domain.Message) ([]domain.Message, error) {
	h, ok := r.handlers[agent]
	if !ok {
		return nil, domain.NewDomainError("agents.Invoke", domain.ErrAgentNotFound, string(agent))
	}

	ctx, span := tracer.StartSpan(ctx, "agents.invoke",
		trace.WithAttributes(tracer.StringAttr("agent.name", string(agent))))
	defer span.End()

	maxIter := h.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	model := r.model
	if h.Model != "" {
		model = h.Model
	}

	convo := make([]domain.Message, 0, len(msgs)+1)
	convo = append(convo, domain.Message{Role: domain.RoleSystem, Content: h.SystemPrompt})
	convo = append(convo, msgs...)

	var out []domain.Message
	for i := 0; i < maxIter; i++ {
		resp, err := r.provider.Chat(ctx, domain.ChatRequest{
			Model:       model,
			Messages:    convo,
			Tools:       h.Tools.Schemas(),
			MaxTokens:   r.maxTokens,
			Temperature: r.temperature,
		})
		if err != nil {
			tracer.RecordError(span, err)
			return nil, domain.NewDomainError("agents.Invoke", domain.ErrProviderError, err.Error())
		}

		reply := resp.Message
		convo = append(convo, reply)
		out = append(out, reply)
		if len(reply.ToolCalls) == 0 {
			break
		}

		handoff := false
		for _, call := range reply.ToolCalls {
			toolMsg := r.executeTool(ctx, h, call)
			convo = append(convo, toolMsg)
			out = append(out, toolMsg)
			if _, ok := routing.HandoffTarget(toolMsg); ok {
				handoff = true
			}
		}
		if handoff {
			// The router owns the conversation from here.
			break
		}
	}

	tracer.SetOK(span)
	return out, nil
}

// executeTool runs a single tool call and wraps the outcome as a tool-role
// message. Failures become message content rather than errors so the model
// can read them and recover. The originating call rides along so the wire
// adapter can echo its id back as tool_call_id.
func (r *Runner) executeTool(ctx context.Context, h *Handler, call domain.ToolCall) domain.Message {
	msg := domain.Message{Role: domain.RoleTool, Name: call.Name, ToolCalls: []domain.ToolCall{call}}

	tool, err := h.Tools.Get(call.Name)
	if err != nil {
		r.logger.WarnContext(ctx, "tool lookup failed",
			"agent", string(h.Name), "tool", call.Name, "error", err)
		res := &domain.ToolResult{ToolCallID: call.ID, Content: "unknown tool " + call.Name, IsError: true}
		msg.Content = res.Text()
		return msg
	}

	res, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		r.logger.ErrorContext(ctx, "tool execution failed",
			"agent", string(h.Name), "tool", call.Name, "error", err)
		res = &domain.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
	}
	msg.Content = res.Text()
	return msg
}
