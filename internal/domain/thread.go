package domain

import (
	"context"
	"time"
)

// AgentName identifies a conversational handler.
type AgentName string

// The closed set of handlers. AgentHuman is a suspend state, not a handler:
// it ends the turn and is never persisted as the active agent.
const (
	AgentUnknown      AgentName = "unknown"
	AgentCoordinator  AgentName = "coordinator_agent"
	AgentSales        AgentName = "sales_agent"
	AgentSupport      AgentName = "customer_support_agent"
	AgentTransactions AgentName = "transactions_agent"
	AgentHuman        AgentName = "human"
)

// HandlerAgents lists the concrete handlers the coordinator can hand off to.
var HandlerAgents = []AgentName{AgentSales, AgentSupport, AgentTransactions}

// ParseAgentName maps a raw handoff target to an AgentName.
// Unrecognized targets resolve to AgentHuman with ok=false.
func ParseAgentName(s string) (AgentName, bool) {
	switch AgentName(s) {
	case AgentCoordinator, AgentSales, AgentSupport, AgentTransactions:
		return AgentName(s), true
	case AgentHuman:
		return AgentHuman, true
	}
	return AgentHuman, false
}

// Concrete reports whether a is a handler that can own a conversation
// between turns (i.e. a valid sticky-routing target).
func (a AgentName) Concrete() bool {
	switch a {
	case AgentSales, AgentSupport, AgentTransactions:
		return true
	}
	return false
}

// Thread is a persisted conversation with its routing state.
type Thread struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	UserID      string    `json:"userId"`
	ActiveAgent AgentName `json:"activeAgent"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HandoffDecision is the outcome of routing one turn.
type HandoffDecision struct {
	Target   AgentName // final owner for the turn (AgentHuman = suspend)
	Messages []Message // messages produced by the turn, in order
}

// ActiveAgentStore is the persisted pointer of "whose turn it is" per thread.
// Get/set pairs carry no transactional guarantee; callers must tolerate
// stale reads.
type ActiveAgentStore interface {
	// ActiveAgent returns the persisted agent for a thread.
	// Returns ErrThreadNotFound when the thread has never been seen.
	ActiveAgent(ctx context.Context, tenantID, userID, threadID string) (AgentName, error)
	// SetActiveAgent persists the active agent for a thread, creating the
	// thread record if needed.
	SetActiveAgent(ctx context.Context, tenantID, userID, threadID string, agent AgentName) error
}

// ThreadStore persists conversation threads and their message logs.
type ThreadStore interface {
	ActiveAgentStore

	Thread(ctx context.Context, tenantID, userID, threadID string) (*Thread, error)
	PutThread(ctx context.Context, t *Thread) error
	AppendMessages(ctx context.Context, tenantID, userID, threadID string, msgs []Message) error
}
