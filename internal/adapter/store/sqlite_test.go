package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teller/internal/domain"
	"teller/internal/infra/logger"
	"teller/internal/usecase/ledger"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "teller.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedAccount(t *testing.T, s *SQLiteStore, id, number string, balance float64) *domain.Account {
	t.Helper()
	a := &domain.Account{
		ID:       id,
		Number:   number,
		TenantID: "tenant-a",
		UserID:   "user-1",
		Holder:   "Quinn Harper",
		Balance:  balance,
		Created:  time.Now().UTC(),
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func leg(acct *domain.Account, seq int, debit, credit float64) domain.LedgerLeg {
	return domain.LedgerLeg{
		Record: domain.Transaction{
			ID:            fmt.Sprintf("%s-%d", acct.Number, seq),
			AccountNumber: acct.Number,
			Number:        seq,
			TenantID:      acct.TenantID,
			AccountID:     acct.ID,
			DebitAmount:   debit,
			CreditAmount:  credit,
			Details:       "test leg",
			DateTime:      time.Now().UTC(),
		},
		Delta: credit - debit,
	}
}

func TestAccountRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, "A1", "Acc001", 5000)

	got, err := s.AccountByNumber(ctx, "Acc001", "tenant-a", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "A1", got.ID)
	assert.Equal(t, 5000.0, got.Balance)

	_, err = s.AccountByNumber(ctx, "Acc001", "tenant-b", "user-1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	latest, err := s.LatestAccountNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, latest)
}

func TestApplyLeg(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	acct := seedAccount(t, s, "A1", "Acc001", 1000)

	rec, err := s.ApplyLeg(ctx, leg(acct, 1, 300, 0))
	require.NoError(t, err)
	assert.Equal(t, 700.0, rec.AccountBalance)

	got, err := s.AccountByNumber(ctx, "Acc001", "tenant-a", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 700.0, got.Balance)
}

func TestApplyLegInsufficientFunds(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	acct := seedAccount(t, s, "A1", "Acc001", 100)

	_, err := s.ApplyLeg(ctx, leg(acct, 1, 300, 0))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Balance untouched, no record written.
	got, err := s.AccountByNumber(ctx, "Acc001", "tenant-a", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.Balance)
	latest, err := s.LatestTransactionNumber(ctx, "Acc001")
	require.NoError(t, err)
	assert.Equal(t, 0, latest)
}

func TestApplyLegDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	acct := seedAccount(t, s, "A1", "Acc001", 1000)

	_, err := s.ApplyLeg(ctx, leg(acct, 1, 0, 10))
	require.NoError(t, err)
	_, err = s.ApplyLeg(ctx, leg(acct, 1, 0, 10))
	assert.ErrorIs(t, err, domain.ErrWriteConflict)
}

func TestApplyLegUnknownAccount(t *testing.T) {
	s := openTestStore(t)
	ghost := &domain.Account{ID: "A9", Number: "Acc009", TenantID: "tenant-a", UserID: "user-1"}

	_, err := s.ApplyLeg(context.Background(), leg(ghost, 1, 0, 10))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestLatestTransactionNumber(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	acct := seedAccount(t, s, "A1", "Acc001", 1000)

	for i := 1; i <= 3; i++ {
		_, err := s.ApplyLeg(ctx, leg(acct, i, 0, 10))
		require.NoError(t, err)
	}
	latest, err := s.LatestTransactionNumber(ctx, "Acc001")
	require.NoError(t, err)
	assert.Equal(t, 3, latest)
}

func TestTransactionsByDateRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	acct := seedAccount(t, s, "A1", "Acc001", 1000)

	for i := 1; i <= 4; i++ {
		_, err := s.ApplyLeg(ctx, leg(acct, i, 10, 0))
		require.NoError(t, err)
	}

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	txns, err := s.TransactionsByDateRange(ctx, "A1", from, to)
	require.NoError(t, err)
	require.Len(t, txns, 4)
	// Oldest first, snapshots descending as the debits land.
	assert.Equal(t, "Acc001-1", txns[0].ID)
	assert.Equal(t, 990.0, txns[0].AccountBalance)
	assert.Equal(t, 960.0, txns[3].AccountBalance)

	none, err := s.TransactionsByDateRange(ctx, "A1", from.Add(-48*time.Hour), from)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestConcurrentLegsKeepBalanceConsistent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	acct := seedAccount(t, s, "A1", "Acc001", 1000)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Unique ids assigned upfront; the store serializes the
			// balance mutation.
			_, errs[i] = s.ApplyLeg(ctx, leg(acct, i+1, 10, 0))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}
	got, err := s.AccountByNumber(ctx, "Acc001", "tenant-a", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0-10*writers, got.Balance)
	latest, err := s.LatestTransactionNumber(ctx, "Acc001")
	require.NoError(t, err)
	assert.Equal(t, writers, latest)
}

func TestConcurrentTransfersAssignUniqueIDs(t *testing.T) {
	// Full engine against the real store: concurrent transfers race on the
	// read-latest-then-insert id sequence, so collisions drive the bounded
	// retry loop instead of being pre-assigned away.
	s := openTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, "A1", "Acc001", 5000)
	seedAccount(t, s, "A2", "Acc002", 1000)

	eng := ledger.New(s, s, logger.Discard())

	const transfers = 4
	var wg sync.WaitGroup
	results := make([]*ledger.TransferResult, transfers)
	errs := make([]error, transfers)
	for i := 0; i < transfers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = eng.Transfer(ctx, "tenant-a", "user-1", "Acc001", "Acc002", 10)
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i, err := range errs {
		require.NoError(t, err, "transfer %d", i)
		ids[results[i].Debit.ID] = true
		ids[results[i].Credit.ID] = true
	}
	assert.Len(t, ids, 2*transfers, "every leg carries a distinct id")

	from, err := s.AccountByNumber(ctx, "Acc001", "tenant-a", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5000.0-10*transfers, from.Balance)
	to, err := s.AccountByNumber(ctx, "Acc002", "tenant-a", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1000.0+10*transfers, to.Balance)

	latest, err := s.LatestTransactionNumber(ctx, "Acc001")
	require.NoError(t, err)
	assert.Equal(t, transfers, latest)
}

func TestActiveAgentLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.ActiveAgent(ctx, "tenant-a", "user-1", "T1")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)

	require.NoError(t, s.SetActiveAgent(ctx, "tenant-a", "user-1", "T1", domain.AgentTransactions))
	agent, err := s.ActiveAgent(ctx, "tenant-a", "user-1", "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentTransactions, agent)

	// Upsert replaces the previous owner.
	require.NoError(t, s.SetActiveAgent(ctx, "tenant-a", "user-1", "T1", domain.AgentSales))
	agent, err = s.ActiveAgent(ctx, "tenant-a", "user-1", "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentSales, agent)
}

func TestThreadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	th := &domain.Thread{
		ID:          "T1",
		TenantID:    "tenant-a",
		UserID:      "user-1",
		ActiveAgent: domain.AgentUnknown,
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "hello"},
		},
	}
	require.NoError(t, s.PutThread(ctx, th))

	got, err := s.Thread(ctx, "tenant-a", "user-1", "T1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Content)

	_, err = s.Thread(ctx, "tenant-a", "user-1", "T404")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
}

func TestAppendMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Appending to an unseen thread creates it.
	require.NoError(t, s.AppendMessages(ctx, "tenant-a", "user-1", "T1", []domain.Message{
		{Role: domain.RoleUser, Content: "first"},
	}))
	require.NoError(t, s.AppendMessages(ctx, "tenant-a", "user-1", "T1", []domain.Message{
		{Role: domain.RoleAssistant, Content: "second"},
		{Role: domain.RoleTool, Content: `{"goto":"sales_agent"}`},
	}))

	got, err := s.Thread(ctx, "tenant-a", "user-1", "T1")
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "second", got.Messages[1].Content)
	assert.Equal(t, domain.AgentUnknown, got.ActiveAgent)
}

func TestServiceRequests(t *testing.T) {
	s := openTestStore(t)
	req := &domain.ServiceRequest{
		ID:             "01JLZ2V9GapTEST0000000000",
		TenantID:       "tenant-a",
		UserID:         "user-1",
		RecipientPhone: "555-0101",
		RecipientEmail: "quinn@example.com",
		Annotations:    []string{"Card declined", "[14-03-2026 09:30:00] : Urgent"},
		RequestedOn:    time.Now().UTC(),
	}
	assert.NoError(t, s.CreateServiceRequest(context.Background(), req))
}

func TestSearchOffers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Seed(ctx, "tenant-a", "user-1"))

	offers, err := s.SearchOffers(ctx, "I want a credit card with cash back", "credit_card", 2)
	require.NoError(t, err)
	require.NotEmpty(t, offers)
	assert.LessOrEqual(t, len(offers), 2)
	for _, o := range offers {
		assert.Equal(t, "credit_card", o.AccountType)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, "tenant-a", "user-1"))
	require.NoError(t, s.Seed(ctx, "tenant-a", "user-1"))

	acct, err := s.AccountByNumber(ctx, "Acc001", "tenant-a", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 5000.0, acct.Balance)
}
