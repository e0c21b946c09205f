package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"teller/internal/domain"
)

// ServiceRequestTool files a support request on behalf of the user.
type ServiceRequestTool struct {
	requests domain.ServiceRequestStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewServiceRequestTool(requests domain.ServiceRequestStore, logger *slog.Logger) *ServiceRequestTool {
	return &ServiceRequestTool{requests: requests, logger: logger, now: time.Now}
}

func (t *ServiceRequestTool) Name() string { return domain.ToolServiceRequest }

func (t *ServiceRequestTool) Description() string {
	return "Create a service request so a bank representative can follow up with the user."
}

func (t *ServiceRequestTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"recipientPhone": {"type": "string", "description": "Phone number for the follow-up"},
				"recipientEmail": {"type": "string", "description": "Email address for the follow-up"},
				"requestSummary": {"type": "string", "description": "One-sentence summary of the user's problem"}
			},
			"required": ["recipientPhone", "recipientEmail", "requestSummary"]
		}`),
	}
}

type serviceRequestParams struct {
	RecipientPhone string `json:"recipientPhone"`
	RecipientEmail string `json:"recipientEmail"`
	RequestSummary string `json:"requestSummary"`
}

func (t *ServiceRequestTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.service_request", t.logger, params,
		func(ctx context.Context, span trace.Span, p serviceRequestParams) (any, error) {
			id, err := callerIdentity(ctx)
			if err != nil {
				return nil, err
			}
			if p.RecipientPhone == "" || p.RecipientEmail == "" || p.RequestSummary == "" {
				return ErrResult("phone number, email address, and request summary are all required")
			}

			now := t.now().UTC()
			req := &domain.ServiceRequest{
				ID:             ulid.Make().String(),
				TenantID:       id.TenantID,
				UserID:         id.UserID,
				RecipientPhone: p.RecipientPhone,
				RecipientEmail: p.RecipientEmail,
				Annotations: []string{
					p.RequestSummary,
					fmt.Sprintf("[%s] : Urgent", now.Format("02-01-2006 15:04:05")),
				},
				RequestedOn: now,
			}
			if err := t.requests.CreateServiceRequest(ctx, req); err != nil {
				return nil, err
			}
			return fmt.Sprintf("Service request created successfully with ID: %s", req.ID), nil
		})
}

// branchDirectory is the static branch table, keyed by state then county.
var branchDirectory = map[string]map[string][]string{
	"Arizona": {
		"Maricopa County": {"Central Bank - Phoenix", "Trust Bank - Scottsdale"},
		"Pima County":     {"Central Bank - Tucson", "Trust Bank - Oro Valley"},
	},
	"California": {
		"Los Angeles County": {"Central Bank - Los Angeles", "Trust Bank - Long Beach"},
		"San Diego County":   {"Central Bank - San Diego", "Trust Bank - Chula Vista"},
	},
	"Colorado": {
		"Denver County":  {"Central Bank - Denver", "Trust Bank - Aurora"},
		"El Paso County": {"Central Bank - Colorado Springs", "Trust Bank - Fountain"},
	},
	"Florida": {
		"Miami-Dade County": {"Central Bank - Miami", "Trust Bank - Hialeah"},
		"Orange County":     {"Central Bank - Orlando", "Trust Bank - Winter Park"},
	},
	"Georgia": {
		"Fulton County": {"Central Bank - Atlanta", "Trust Bank - Sandy Springs"},
		"Cobb County":   {"Central Bank - Marietta", "Trust Bank - Smyrna"},
	},
	"New York": {
		"New York County": {"Central Bank - Manhattan", "Trust Bank - Brooklyn"},
		"Kings County":    {"Central Bank - Brooklyn", "Trust Bank - Queens"},
	},
	"Texas": {
		"Harris County": {"Central Bank - Houston", "Trust Bank - Pasadena"},
		"Dallas County": {"Central Bank - Dallas", "Trust Bank - Plano"},
	},
	"Washington": {
		"King County":   {"Central Bank - Seattle", "Trust Bank - Bellevue"},
		"Pierce County": {"Central Bank - Tacoma", "Trust Bank - Lakewood"},
	},
}

// BranchLocationTool lists branch addresses for a US state.
type BranchLocationTool struct {
	logger *slog.Logger
}

func NewBranchLocationTool(logger *slog.Logger) *BranchLocationTool {
	return &BranchLocationTool{logger: logger}
}

func (t *BranchLocationTool) Name() string { return domain.ToolBranchLocation }

func (t *BranchLocationTool) Description() string {
	return "List bank branch locations in a US state, grouped by county."
}

func (t *BranchLocationTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"state": {"type": "string", "description": "US state name, e.g. California"}
			},
			"required": ["state"]
		}`),
	}
}

type branchParams struct {
	State string `json:"state"`
}

func (t *BranchLocationTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_branch_location", t.logger, params,
		func(ctx context.Context, span trace.Span, p branchParams) (any, error) {
			state := strings.TrimSpace(p.State)
			if state == "" {
				return ErrResult("state name is required")
			}

			var match string
			for name := range branchDirectory {
				if strings.EqualFold(name, state) {
					match = name
					break
				}
			}
			if match == "" {
				states := make([]string, 0, len(branchDirectory))
				for name := range branchDirectory {
					states = append(states, name)
				}
				sort.Strings(states)
				return fmt.Sprintf("No branches found for %q. Available states: %s",
					state, strings.Join(states, ", ")), nil
			}

			counties := make([]string, 0, len(branchDirectory[match]))
			for county := range branchDirectory[match] {
				counties = append(counties, county)
			}
			sort.Strings(counties)

			var b strings.Builder
			fmt.Fprintf(&b, "Branch locations in %s:\n", match)
			for _, county := range counties {
				fmt.Fprintf(&b, "\n%s:\n", county)
				for _, branch := range branchDirectory[match][county] {
					fmt.Fprintf(&b, "  - %s\n", branch)
				}
			}
			return b.String(), nil
		})
}
