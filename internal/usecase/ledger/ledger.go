package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"teller/internal/domain"
	"teller/internal/infra/tracer"
)

// maxWriteAttempts bounds the retry loop for transaction-id conflicts.
// Exhausting it surfaces as ErrWriteConflict.
const maxWriteAttempts = 5

// Ledger performs money movement between accounts. Every mutation is a
// debit or credit leg: an immutable transaction record plus the balance
// change, applied atomically by the store.
type Ledger struct {
	accounts domain.AccountStore
	txns     domain.TransactionStore
	logger   *slog.Logger
	now      func() time.Time // for testing
}

// New creates a Ledger over the given stores.
func New(accounts domain.AccountStore, txns domain.TransactionStore, logger *slog.Logger) *Ledger {
	return &Ledger{accounts: accounts, txns: txns, logger: logger, now: time.Now}
}

// TransferResult describes a completed transfer.
type TransferResult struct {
	FromAccount      string
	ToAccount        string
	Amount           float64
	NewSourceBalance float64
	Debit            *domain.Transaction
	Credit           *domain.Transaction
}

// Transfer moves amount from one account to another as a debit leg followed
// by a credit leg. Both accounts are validated before anything is written.
// If the credit leg still fails after the debit committed, a compensating
// credit is written back to the source so no money is lost.
func (l *Ledger) Transfer(ctx context.Context, tenantID, userID, fromNumber, toNumber string, amount float64) (*TransferResult, error) {
	const op = "Ledger.Transfer"

	ctx, span := tracer.StartSpan(ctx, "ledger.transfer",
		trace.WithAttributes(
			tracer.StringAttr("ledger.from", fromNumber),
			tracer.StringAttr("ledger.to", toNumber),
		),
	)
	defer span.End()

	if amount <= 0 {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "amount must be > 0")
	}
	if fromNumber == toNumber {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "source and destination are the same account")
	}

	src, err := l.accounts.AccountByNumber(ctx, fromNumber, tenantID, userID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError(op, err, fmt.Sprintf("source account %s", fromNumber))
	}
	dst, err := l.accounts.AccountByNumber(ctx, toNumber, tenantID, userID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.NewDomainError(op, err, fmt.Sprintf("destination account %s", toNumber))
	}

	// Domain information, not an operational failure: relayed to the
	// conversation as-is. The store re-checks atomically at commit.
	if src.Balance < amount {
		return nil, domain.NewDomainError(op, domain.ErrInsufficientFunds,
			fmt.Sprintf("account %s balance %.2f", fromNumber, src.Balance))
	}

	debit, err := l.applyLeg(ctx, src, amount, 0, fmt.Sprintf("Transfer to %s", toNumber))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	credit, err := l.applyLeg(ctx, dst, 0, amount, fmt.Sprintf("Transfer from %s", fromNumber))
	if err != nil {
		return nil, l.compensate(ctx, src, debit, err)
	}

	l.logger.Info("transfer complete",
		"from", fromNumber, "to", toNumber, "amount", amount,
		"debit_id", debit.ID, "credit_id", credit.ID)
	tracer.SetOK(span)

	return &TransferResult{
		FromAccount:      fromNumber,
		ToAccount:        toNumber,
		Amount:           amount,
		NewSourceBalance: debit.AccountBalance,
		Debit:            debit,
		Credit:           credit,
	}, nil
}

// applyLeg writes one leg, retrying on transaction-id conflicts: concurrent
// writers can race for the same per-account number, so each attempt re-reads
// the latest number before building the id.
func (l *Ledger) applyLeg(ctx context.Context, acct *domain.Account, debit, credit float64, details string) (*domain.Transaction, error) {
	const op = "Ledger.applyLeg"

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		latest, err := l.txns.LatestTransactionNumber(ctx, acct.Number)
		if err != nil {
			return nil, domain.WrapOp(op, err)
		}
		n := latest + 1

		rec, err := l.txns.ApplyLeg(ctx, domain.LedgerLeg{
			Record: domain.Transaction{
				ID:            fmt.Sprintf("%s-%d", acct.Number, n),
				AccountNumber: acct.Number,
				Number:        n,
				TenantID:      acct.TenantID,
				AccountID:     acct.ID,
				DebitAmount:   debit,
				CreditAmount:  credit,
				Details:       details,
				DateTime:      l.now().UTC(),
			},
			Delta: credit - debit,
		})
		if errors.Is(err, domain.ErrWriteConflict) {
			l.logger.Debug("transaction id conflict, retrying",
				"account", acct.Number, "seq", n, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, domain.NewDomainError(op, domain.ErrWriteConflict,
		fmt.Sprintf("account %s: %d attempts exhausted", acct.Number, maxWriteAttempts))
}

// compensate reverses a committed debit after the credit leg failed.
// On success the transfer reports the credit leg's failure with funds
// restored; if the reversal itself fails the error is ErrPartialTransfer
// and manual intervention is required.
func (l *Ledger) compensate(ctx context.Context, src *domain.Account, debit *domain.Transaction, cause error) error {
	const op = "Ledger.Transfer"

	l.logger.Warn("credit leg failed, reversing debit",
		"debit_id", debit.ID, "error", cause)

	reversal, err := l.applyLeg(ctx, src, 0, debit.DebitAmount,
		fmt.Sprintf("Reversal of %s", debit.ID))
	if err != nil {
		l.logger.Error("compensation failed, debit not reversed",
			"debit_id", debit.ID, "error", err)
		return domain.NewDomainError(op, domain.ErrPartialTransfer,
			fmt.Sprintf("debit %s committed, credit failed (%v), reversal failed (%v)", debit.ID, cause, err))
	}

	l.logger.Info("debit reversed", "debit_id", debit.ID, "reversal_id", reversal.ID)
	return domain.NewDomainError(op, cause,
		fmt.Sprintf("credit leg failed, debit %s reversed by %s", debit.ID, reversal.ID))
}

// Balance returns the account for a user-facing account number.
func (l *Ledger) Balance(ctx context.Context, tenantID, userID, number string) (*domain.Account, error) {
	return l.accounts.AccountByNumber(ctx, number, tenantID, userID)
}

// History lists the account's transactions within [from, to], oldest first.
func (l *Ledger) History(ctx context.Context, tenantID, userID, number string, from, to time.Time) ([]domain.Transaction, error) {
	acct, err := l.accounts.AccountByNumber(ctx, number, tenantID, userID)
	if err != nil {
		return nil, domain.NewDomainError("Ledger.History", err, number)
	}
	return l.txns.TransactionsByDateRange(ctx, acct.ID, from, to)
}

// CreateAccount opens a new account with an opening balance, assigning the
// next account number.
func (l *Ledger) CreateAccount(ctx context.Context, tenantID, userID, holder string, balance float64) (*domain.Account, error) {
	const op = "Ledger.CreateAccount"

	if holder == "" {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "account holder is required")
	}
	if balance < 0 {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "opening balance must be >= 0")
	}

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		latest, err := l.accounts.LatestAccountNumber(ctx)
		if err != nil {
			return nil, domain.WrapOp(op, err)
		}
		n := latest + 1
		acct := &domain.Account{
			ID:       fmt.Sprintf("A%d", n),
			Number:   fmt.Sprintf("Acc%03d", n),
			TenantID: tenantID,
			UserID:   userID,
			Holder:   holder,
			Balance:  balance,
			Created:  l.now().UTC(),
		}
		err = l.accounts.CreateAccount(ctx, acct)
		if errors.Is(err, domain.ErrWriteConflict) {
			l.logger.Debug("account id conflict, retrying", "id", acct.ID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, domain.WrapOp(op, err)
		}
		return acct, nil
	}
	return nil, domain.NewDomainError(op, domain.ErrWriteConflict,
		fmt.Sprintf("%d attempts exhausted", maxWriteAttempts))
}
