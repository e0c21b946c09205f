package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teller/internal/domain"
	"teller/internal/infra/logger"
	"teller/internal/usecase/ledger"
)

// fakeBanking is a scripted Banking backend.
type fakeBanking struct {
	transferResult *ledger.TransferResult
	transferErr    error
	balanceAcct    *domain.Account
	balanceErr     error
	history        []domain.Transaction
	historyErr     error
	createdAcct    *domain.Account
	createErr      error
}

func (f *fakeBanking) Transfer(_ context.Context, _, _, _, _ string, _ float64) (*ledger.TransferResult, error) {
	return f.transferResult, f.transferErr
}

func (f *fakeBanking) Balance(_ context.Context, _, _, _ string) (*domain.Account, error) {
	return f.balanceAcct, f.balanceErr
}

func (f *fakeBanking) History(_ context.Context, _, _, _ string, _, _ time.Time) ([]domain.Transaction, error) {
	return f.history, f.historyErr
}

func (f *fakeBanking) CreateAccount(_ context.Context, _, _, _ string, _ float64) (*domain.Account, error) {
	return f.createdAcct, f.createErr
}

func authedCtx() context.Context {
	return domain.ContextWithIdentity(context.Background(), domain.Identity{
		TenantID: "tenant-a",
		UserID:   "user-1",
	})
}

func execute(t *testing.T, tl domain.Tool, params string) *domain.ToolResult {
	t.Helper()
	wrapped, err := WithSchemaValidation(tl)
	require.NoError(t, err)
	res, err := wrapped.Execute(authedCtx(), json.RawMessage(params))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestTransferTool(t *testing.T) {
	log := logger.Discard()

	t.Run("success", func(t *testing.T) {
		banking := &fakeBanking{transferResult: &ledger.TransferResult{
			FromAccount: "Acc001", ToAccount: "Acc002", Amount: 300,
		}}
		res := execute(t, NewTransferTool(banking, log),
			`{"fromAccount":"Acc001","toAccount":"Acc002","amount":300}`)
		assert.False(t, res.IsError)
		assert.Equal(t, "Successfully transferred $300.00 from account Acc001 to account Acc002", res.Content)
	})

	t.Run("insufficient funds is a plain result", func(t *testing.T) {
		banking := &fakeBanking{
			transferErr: domain.ErrInsufficientFunds,
			balanceAcct: &domain.Account{Number: "Acc001", Balance: 120.50},
		}
		res := execute(t, NewTransferTool(banking, log),
			`{"fromAccount":"Acc001","toAccount":"Acc002","amount":300}`)
		assert.False(t, res.IsError)
		assert.Equal(t, "Insufficient funds in account Acc001. Current balance: $120.50", res.Content)
	})

	t.Run("unknown account is error-marked", func(t *testing.T) {
		banking := &fakeBanking{transferErr: domain.ErrAccountNotFound}
		res := execute(t, NewTransferTool(banking, log),
			`{"fromAccount":"Acc001","toAccount":"Acc999","amount":10}`)
		assert.True(t, res.IsError)
		assert.Contains(t, res.Content, "not found")
		assert.Contains(t, res.Text(), "Error: ")
	})

	t.Run("missing required argument is rejected by schema", func(t *testing.T) {
		banking := &fakeBanking{}
		res := execute(t, NewTransferTool(banking, log), `{"fromAccount":"Acc001"}`)
		assert.True(t, res.IsError)
		assert.Contains(t, res.Content, "schema validation failed")
	})

	t.Run("store fault marks the result as an error", func(t *testing.T) {
		banking := &fakeBanking{transferErr: fmt.Errorf("disk full")}
		res := execute(t, NewTransferTool(banking, log),
			`{"fromAccount":"Acc001","toAccount":"Acc002","amount":10}`)
		assert.True(t, res.IsError)
	})
}

func TestBalanceTool(t *testing.T) {
	banking := &fakeBanking{balanceAcct: &domain.Account{Number: "Acc001", Balance: 5000}}
	res := execute(t, NewBalanceTool(banking, logger.Discard()), `{"accountNumber":"Acc001"}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "The balance for account number Acc001 is $5000.00", res.Content)
}

func TestBalanceToolUnknownAccount(t *testing.T) {
	// Unlike insufficient funds, a missing account is a real failure and
	// renders with the Error: prefix at the conversational boundary.
	banking := &fakeBanking{balanceErr: domain.ErrAccountNotFound}
	res := execute(t, NewBalanceTool(banking, logger.Discard()), `{"accountNumber":"Acc404"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "account Acc404 not found", res.Content)
	assert.Equal(t, "Error: account Acc404 not found", res.Text())
}

func TestHistoryToolUnknownAccount(t *testing.T) {
	banking := &fakeBanking{historyErr: domain.ErrAccountNotFound}
	res := execute(t, NewHistoryTool(banking, logger.Discard()), `{"accountNumber":"Acc404"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, "account Acc404 not found", res.Content)
}

func TestHistoryTool(t *testing.T) {
	when := time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)
	banking := &fakeBanking{history: []domain.Transaction{
		{ID: "Acc001-1", DebitAmount: 300, AccountBalance: 4700, Details: "Transfer to Acc002", DateTime: when},
		{ID: "Acc001-2", CreditAmount: 50, AccountBalance: 4750, Details: "Transfer from Acc003", DateTime: when.Add(time.Hour)},
	}}
	res := execute(t, NewHistoryTool(banking, logger.Discard()), `{"accountNumber":"Acc001"}`)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content, "Transaction history for account Acc001:")
	assert.Contains(t, res.Content, "Debit -$300.00 - Transfer to Acc002 (Balance: $4700.00)")
	assert.Contains(t, res.Content, "Credit +$50.00 - Transfer from Acc003 (Balance: $4750.00)")
}

func TestHistoryToolCapsEntries(t *testing.T) {
	var txns []domain.Transaction
	for i := 1; i <= 15; i++ {
		txns = append(txns, domain.Transaction{
			ID:           fmt.Sprintf("Acc001-%d", i),
			CreditAmount: 1,
			Details:      fmt.Sprintf("deposit %d", i),
			DateTime:     time.Date(2026, 2, 1, i, 0, 0, 0, time.UTC),
		})
	}
	banking := &fakeBanking{history: txns}
	res := execute(t, NewHistoryTool(banking, logger.Discard()), `{"accountNumber":"Acc001"}`)
	assert.Equal(t, historyLimit, strings.Count(res.Content, "\n- "))
	assert.NotContains(t, res.Content, "deposit 5 (")
	assert.Contains(t, res.Content, "deposit 6 (")
	assert.Contains(t, res.Content, "deposit 15 (")
}

func TestHistoryToolEmpty(t *testing.T) {
	banking := &fakeBanking{}
	res := execute(t, NewHistoryTool(banking, logger.Discard()), `{"accountNumber":"Acc001"}`)
	assert.Equal(t, "No transactions found for account Acc001 in the specified date range.", res.Content)
}

func TestCreateAccountTool(t *testing.T) {
	banking := &fakeBanking{createdAcct: &domain.Account{
		Number: "Acc004", Holder: "Rowan Ellis", Balance: 250,
	}}
	res := execute(t, NewCreateAccountTool(banking, logger.Discard()),
		`{"accountHolder":"Rowan Ellis","balance":250}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "Successfully created account Acc004 for Rowan Ellis with balance $250.00", res.Content)
}

func TestMonthlyPayment(t *testing.T) {
	tests := []struct {
		principal float64
		years     int
		want      float64
	}{
		{10000, 1, 856.07},
		{250000, 30, 1342.05},
		{5000, 5, 94.36},
	}
	for _, tt := range tests {
		got := MonthlyPayment(tt.principal, tt.years)
		assert.InDelta(t, tt.want, got, 0.01, "principal=%v years=%d", tt.principal, tt.years)
	}
}

func TestMonthlyPaymentTool(t *testing.T) {
	res := execute(t, NewMonthlyPaymentTool(logger.Discard()), `{"loanAmount":10000,"years":1}`)
	assert.False(t, res.IsError)
	assert.Equal(t, "Monthly payment for a $10000.00 loan over 1 years at 5% APR: $856.07", res.Content)
}

func TestMonthlyPaymentToolValidation(t *testing.T) {
	res := execute(t, NewMonthlyPaymentTool(logger.Discard()), `{"loanAmount":-5,"years":1}`)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "greater than zero")
}

type capturingRequestStore struct {
	created *domain.ServiceRequest
}

func (s *capturingRequestStore) CreateServiceRequest(_ context.Context, r *domain.ServiceRequest) error {
	s.created = r
	return nil
}

func TestServiceRequestTool(t *testing.T) {
	store := &capturingRequestStore{}
	tl := NewServiceRequestTool(store, logger.Discard())
	tl.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	res := execute(t, tl,
		`{"recipientPhone":"555-0101","recipientEmail":"quinn@example.com","requestSummary":"Card was declined abroad"}`)
	assert.False(t, res.IsError)
	require.NotNil(t, store.created)
	assert.True(t, strings.HasPrefix(res.Content, "Service request created successfully with ID: "))
	assert.Equal(t, "tenant-a", store.created.TenantID)
	require.Len(t, store.created.Annotations, 2)
	assert.Equal(t, "Card was declined abroad", store.created.Annotations[0])
	assert.Equal(t, "[14-03-2026 09:30:00] : Urgent", store.created.Annotations[1])
}

func TestBranchLocationTool(t *testing.T) {
	log := logger.Discard()

	t.Run("case-insensitive match", func(t *testing.T) {
		res := execute(t, NewBranchLocationTool(log), `{"state":"california"}`)
		assert.Contains(t, res.Content, "Branch locations in California:")
		assert.Contains(t, res.Content, "Central Bank - Los Angeles")
	})

	t.Run("unknown state lists alternatives", func(t *testing.T) {
		res := execute(t, NewBranchLocationTool(log), `{"state":"Atlantis"}`)
		assert.Contains(t, res.Content, `No branches found for "Atlantis"`)
		assert.Contains(t, res.Content, "Available states:")
	})
}

func TestHandoffTool(t *testing.T) {
	tools := NewHandoffTools(logger.Discard(), domain.AgentSales, domain.AgentTransactions)
	require.Len(t, tools, 2)
	assert.Equal(t, domain.ToolGotoSales, tools[0].Name())

	res := execute(t, tools[0], `{}`)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"goto":"sales_agent"}`, res.Content)
}

func TestRegistryRejectsUnknownTool(t *testing.T) {
	reg := NewRegistry(logger.Discard())
	err := reg.Register(&fakeTool{name: "drop_all_tables"})
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry(logger.Discard())
	require.NoError(t, reg.Register(&fakeTool{name: domain.ToolHealthCheck}))
	err := reg.Register(&fakeTool{name: domain.ToolHealthCheck})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

type fakeTool struct {
	name string
}

func (f *fakeTool) Name() string              { return f.name }
func (f *fakeTool) Description() string       { return f.name }
func (f *fakeTool) Schema() domain.ToolSchema { return domain.ToolSchema{Name: f.name} }

func (f *fakeTool) Execute(_ context.Context, _ json.RawMessage) (*domain.ToolResult, error) {
	return &domain.ToolResult{Content: "ok"}, nil
}

func TestCatalogScopes(t *testing.T) {
	cat, err := NewCatalog(Deps{
		Banking:  &fakeBanking{},
		Offers:   staticOffers{},
		Requests: &capturingRequestStore{},
		Logger:   logger.Discard(),
	})
	require.NoError(t, err)

	// The coordinator routes; it never touches accounts.
	coord := cat.ForAgent(domain.AgentCoordinator)
	_, err = coord.Get(domain.ToolBankTransfer)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
	_, err = coord.Get(domain.ToolGotoTransactions)
	assert.NoError(t, err)

	txn := cat.ForAgent(domain.AgentTransactions)
	_, err = txn.Get(domain.ToolBankTransfer)
	assert.NoError(t, err)
	_, err = txn.Get(domain.ToolServiceRequest)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)

	_, err = cat.All().Get(domain.ToolServiceRequest)
	assert.NoError(t, err)
}

type staticOffers struct{}

func (staticOffers) SearchOffers(_ context.Context, _, _ string, _ int) ([]domain.Offer, error) {
	return []domain.Offer{{Name: "Platinum Card", Text: "2% cash back on everything."}}, nil
}

func TestOfferTool(t *testing.T) {
	res := execute(t, NewOfferTool(staticOffers{}, logger.Discard()),
		`{"userPrompt":"do you have a cash back card?","accountType":"credit_card"}`)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content, "Platinum Card: 2% cash back on everything.")
}

func TestToolRequiresIdentity(t *testing.T) {
	banking := &fakeBanking{balanceAcct: &domain.Account{Number: "Acc001"}}
	tl := NewBalanceTool(banking, logger.Discard())
	res, err := tl.Execute(context.Background(), json.RawMessage(`{"accountNumber":"Acc001"}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "identity")
}
