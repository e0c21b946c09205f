package tool

import (
	"log/slog"

	"teller/internal/domain"
)

// Deps bundles the collaborators the tool catalog is built from.
type Deps struct {
	Banking  Banking
	Offers   domain.OfferStore
	Requests domain.ServiceRequestStore
	Logger   *slog.Logger
}

// Catalog is the assembled tool set: one registry holding every tool for
// the network call paths, plus a scoped registry per agent so each handler
// only sees what it may call.
type Catalog struct {
	all     *Registry
	byAgent map[domain.AgentName]*Registry
	logger  *slog.Logger
}

// NewCatalog constructs every tool in the closed set and the per-agent
// scopes. The coordinator gets only handoff tools: it routes, it does not
// touch accounts.
func NewCatalog(d Deps) (*Catalog, error) {
	transfer := NewTransferTool(d.Banking, d.Logger)
	balance := NewBalanceTool(d.Banking, d.Logger)
	history := NewHistoryTool(d.Banking, d.Logger)
	create := NewCreateAccountTool(d.Banking, d.Logger)
	offers := NewOfferTool(d.Offers, d.Logger)
	payment := NewMonthlyPaymentTool(d.Logger)
	request := NewServiceRequestTool(d.Requests, d.Logger)
	branches := NewBranchLocationTool(d.Logger)
	health := NewHealthCheckTool(d.Logger)

	handoffs := NewHandoffTools(d.Logger, domain.HandlerAgents...)
	gotoSales, gotoSupport, gotoTransactions := handoffs[0], handoffs[1], handoffs[2]

	c := &Catalog{
		all:     NewRegistry(d.Logger),
		byAgent: make(map[domain.AgentName]*Registry),
		logger:  d.Logger,
	}

	if err := c.register(c.all,
		transfer, balance, history, create, offers, payment, request, branches, health,
		gotoSales, gotoSupport, gotoTransactions,
	); err != nil {
		return nil, err
	}

	scopes := map[domain.AgentName][]domain.Tool{
		domain.AgentCoordinator: {
			gotoSales, gotoSupport, gotoTransactions,
		},
		domain.AgentTransactions: {
			transfer, balance, history, gotoSupport,
		},
		domain.AgentSales: {
			offers, payment, create, gotoSupport, gotoTransactions,
		},
		domain.AgentSupport: {
			request, branches, gotoSales, gotoTransactions,
		},
	}
	for agent, tools := range scopes {
		reg := NewRegistry(d.Logger)
		if err := c.register(reg, tools...); err != nil {
			return nil, err
		}
		c.byAgent[agent] = reg
	}
	return c, nil
}

func (c *Catalog) register(reg *Registry, tools ...domain.Tool) error {
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// All returns the registry holding the full tool set, used by the HTTP
// gateway and the MCP server.
func (c *Catalog) All() *Registry { return c.all }

// ForAgent returns the agent's scoped registry, or an empty one for agents
// without tools.
func (c *Catalog) ForAgent(agent domain.AgentName) domain.ToolExecutor {
	if reg, ok := c.byAgent[agent]; ok {
		return reg
	}
	return NewRegistry(c.logger)
}
