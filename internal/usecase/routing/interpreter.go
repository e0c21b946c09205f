package routing

import (
	"encoding/json"

	"teller/internal/domain"
)

// handoffPayload is the wire shape a handoff tool emits in its result.
type handoffPayload struct {
	Goto string `json:"goto"`
}

// HandoffTarget returns the raw handoff target carried by a single tool
// message, if any. Content that is not JSON, or JSON without a goto field,
// is not a handoff.
func HandoffTarget(msg domain.Message) (string, bool) {
	if msg.Role != domain.RoleTool {
		return "", false
	}
	var p handoffPayload
	if err := json.Unmarshal([]byte(msg.Content), &p); err != nil {
		return "", false
	}
	if p.Goto == "" {
		return "", false
	}
	return p.Goto, true
}

// ExtractHandoff scans tool-role messages in order and resolves the first
// handoff target found; the scan stops at that message. Handlers can emit
// several tool results in one turn, so first match wins, not last.
// No handoff, or a target outside the known agent set, resolves to
// AgentHuman (the suspend state), never an error.
func ExtractHandoff(msgs []domain.Message) domain.AgentName {
	for _, m := range msgs {
		raw, ok := HandoffTarget(m)
		if !ok {
			continue
		}
		target, _ := domain.ParseAgentName(raw)
		return target
	}
	return domain.AgentHuman
}
