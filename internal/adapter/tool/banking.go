package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"teller/internal/domain"
	"teller/internal/usecase/ledger"
)

// Banking is the ledger backend the transaction tools call.
type Banking interface {
	Transfer(ctx context.Context, tenantID, userID, fromNumber, toNumber string, amount float64) (*ledger.TransferResult, error)
	Balance(ctx context.Context, tenantID, userID, number string) (*domain.Account, error)
	History(ctx context.Context, tenantID, userID, number string, from, to time.Time) ([]domain.Transaction, error)
	CreateAccount(ctx context.Context, tenantID, userID, holder string, balance float64) (*domain.Account, error)
}

// historyLimit caps how many transactions a history reply includes.
const historyLimit = 10

// callerIdentity pulls the resolved tenant/user pair off the context.
// Tools never accept identity as arguments; the model cannot speak for
// another tenant.
func callerIdentity(ctx context.Context) (domain.Identity, error) {
	id := domain.IdentityFromContext(ctx)
	if id.TenantID == "" || id.UserID == "" {
		return id, errors.New("caller identity missing from context")
	}
	return id, nil
}

// TransferTool moves money between two accounts.
type TransferTool struct {
	banking Banking
	logger  *slog.Logger
}

func NewTransferTool(banking Banking, logger *slog.Logger) *TransferTool {
	return &TransferTool{banking: banking, logger: logger}
}

func (t *TransferTool) Name() string { return domain.ToolBankTransfer }

func (t *TransferTool) Description() string {
	return "Transfer an amount of money from one bank account to another."
}

func (t *TransferTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"fromAccount": {"type": "string", "description": "Source account number, e.g. Acc001"},
				"toAccount": {"type": "string", "description": "Destination account number, e.g. Acc002"},
				"amount": {"type": "number", "description": "Amount in dollars, must be positive"}
			},
			"required": ["fromAccount", "toAccount", "amount"]
		}`),
	}
}

type transferParams struct {
	FromAccount string  `json:"fromAccount"`
	ToAccount   string  `json:"toAccount"`
	Amount      float64 `json:"amount"`
}

func (t *TransferTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.bank_transfer", t.logger, params,
		func(ctx context.Context, span trace.Span, p transferParams) (any, error) {
			id, err := callerIdentity(ctx)
			if err != nil {
				return nil, err
			}

			res, err := t.banking.Transfer(ctx, id.TenantID, id.UserID, p.FromAccount, p.ToAccount, p.Amount)
			switch {
			case err == nil:
				return fmt.Sprintf("Successfully transferred $%.2f from account %s to account %s",
					res.Amount, res.FromAccount, res.ToAccount), nil
			case errors.Is(err, domain.ErrInsufficientFunds):
				// The user hears this as information, not as a failure.
				return t.insufficientFundsText(ctx, id, p.FromAccount), nil
			case errors.Is(err, domain.ErrAccountNotFound):
				return ErrResult("account not found: %v", err)
			case errors.Is(err, domain.ErrInvalidInput):
				return ErrResult("%v", err)
			default:
				return nil, err
			}
		})
}

func (t *TransferTool) insufficientFundsText(ctx context.Context, id domain.Identity, number string) string {
	acct, err := t.banking.Balance(ctx, id.TenantID, id.UserID, number)
	if err != nil {
		return fmt.Sprintf("Insufficient funds in account %s.", number)
	}
	return fmt.Sprintf("Insufficient funds in account %s. Current balance: $%.2f", number, acct.Balance)
}

// BalanceTool reports an account's current balance.
type BalanceTool struct {
	banking Banking
	logger  *slog.Logger
}

func NewBalanceTool(banking Banking, logger *slog.Logger) *BalanceTool {
	return &BalanceTool{banking: banking, logger: logger}
}

func (t *BalanceTool) Name() string { return domain.ToolBankBalance }

func (t *BalanceTool) Description() string {
	return "Retrieve the balance for a specific bank account."
}

func (t *BalanceTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"accountNumber": {"type": "string", "description": "Account number, e.g. Acc001"}
			},
			"required": ["accountNumber"]
		}`),
	}
}

type balanceParams struct {
	AccountNumber string `json:"accountNumber"`
}

func (t *BalanceTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.bank_balance", t.logger, params,
		func(ctx context.Context, span trace.Span, p balanceParams) (any, error) {
			id, err := callerIdentity(ctx)
			if err != nil {
				return nil, err
			}

			acct, err := t.banking.Balance(ctx, id.TenantID, id.UserID, p.AccountNumber)
			if errors.Is(err, domain.ErrAccountNotFound) {
				return ErrResult("account %s not found", p.AccountNumber)
			}
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("The balance for account number %s is $%.2f", acct.Number, acct.Balance), nil
		})
}

// HistoryTool lists an account's recent transactions.
type HistoryTool struct {
	banking Banking
	logger  *slog.Logger
	now     func() time.Time
}

func NewHistoryTool(banking Banking, logger *slog.Logger) *HistoryTool {
	return &HistoryTool{banking: banking, logger: logger, now: time.Now}
}

func (t *HistoryTool) Name() string { return domain.ToolTransactionHistory }

func (t *HistoryTool) Description() string {
	return "Get the transaction history for an account, optionally within a date range."
}

func (t *HistoryTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"accountNumber": {"type": "string", "description": "Account number, e.g. Acc001"},
				"startDate": {"type": "string", "description": "RFC 3339 start of the range; defaults to the first of the current month"},
				"endDate": {"type": "string", "description": "RFC 3339 end of the range; defaults to now"}
			},
			"required": ["accountNumber"]
		}`),
	}
}

type historyParams struct {
	AccountNumber string `json:"accountNumber"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

func (t *HistoryTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_transaction_history", t.logger, params,
		func(ctx context.Context, span trace.Span, p historyParams) (any, error) {
			id, err := callerIdentity(ctx)
			if err != nil {
				return nil, err
			}

			now := t.now().UTC()
			from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
			to := now
			if p.StartDate != "" {
				if from, err = time.Parse(time.RFC3339, p.StartDate); err != nil {
					return ErrResult("invalid startDate %q: %v", p.StartDate, err)
				}
			}
			if p.EndDate != "" {
				if to, err = time.Parse(time.RFC3339, p.EndDate); err != nil {
					return ErrResult("invalid endDate %q: %v", p.EndDate, err)
				}
			}

			txns, err := t.banking.History(ctx, id.TenantID, id.UserID, p.AccountNumber, from, to)
			if errors.Is(err, domain.ErrAccountNotFound) {
				return ErrResult("account %s not found", p.AccountNumber)
			}
			if err != nil {
				return nil, err
			}
			if len(txns) == 0 {
				return fmt.Sprintf("No transactions found for account %s in the specified date range.", p.AccountNumber), nil
			}
			return formatHistory(p.AccountNumber, txns), nil
		})
}

// formatHistory renders the newest transactions, most recent last, capped
// at historyLimit entries.
func formatHistory(accountNumber string, txns []domain.Transaction) string {
	if len(txns) > historyLimit {
		txns = txns[len(txns)-historyLimit:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Transaction history for account %s:\n", accountNumber)
	for _, txn := range txns {
		kind, amount := "Credit", fmt.Sprintf("+$%.2f", txn.CreditAmount)
		if txn.DebitAmount > 0 {
			kind, amount = "Debit", fmt.Sprintf("-$%.2f", txn.DebitAmount)
		}
		fmt.Fprintf(&b, "- %s: %s %s - %s (Balance: $%.2f)\n",
			txn.DateTime.Format("2006-01-02 15:04:05"), kind, amount, txn.Details, txn.AccountBalance)
	}
	return b.String()
}
