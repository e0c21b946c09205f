package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"teller/internal/domain"
)

// CreateAccountTool opens a new bank account with an opening balance.
type CreateAccountTool struct {
	banking Banking
	logger  *slog.Logger
}

func NewCreateAccountTool(banking Banking, logger *slog.Logger) *CreateAccountTool {
	return &CreateAccountTool{banking: banking, logger: logger}
}

func (t *CreateAccountTool) Name() string { return domain.ToolCreateAccount }

func (t *CreateAccountTool) Description() string {
	return "Create a new bank account for a user with an opening balance."
}

func (t *CreateAccountTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"accountHolder": {"type": "string", "description": "Full name of the account holder"},
				"balance": {"type": "number", "description": "Opening balance in dollars, zero or more"}
			},
			"required": ["accountHolder", "balance"]
		}`),
	}
}

type createAccountParams struct {
	AccountHolder string  `json:"accountHolder"`
	Balance       float64 `json:"balance"`
}

func (t *CreateAccountTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.create_account", t.logger, params,
		func(ctx context.Context, span trace.Span, p createAccountParams) (any, error) {
			id, err := callerIdentity(ctx)
			if err != nil {
				return nil, err
			}

			acct, err := t.banking.CreateAccount(ctx, id.TenantID, id.UserID, p.AccountHolder, p.Balance)
			if errors.Is(err, domain.ErrInvalidInput) {
				return ErrResult("%v", err)
			}
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("Successfully created account %s for %s with balance $%.2f",
				acct.Number, acct.Holder, acct.Balance), nil
		})
}
