package domain

import (
	"context"
	"time"
)

// Account is a bank account owned by a (tenant, user) pair.
// Balance is mutated only through the ledger.
type Account struct {
	ID       string  `json:"accountId"` // e.g. "A12"
	Number   string  `json:"id"`        // user-facing account number, e.g. "Acc001"
	TenantID string  `json:"tenantId"`
	UserID   string  `json:"userId"`
	Holder   string  `json:"accountName"`
	Balance  float64 `json:"balance"`
	Created  time.Time
}

// Transaction is one immutable ledger record. Exactly one of DebitAmount
// and CreditAmount is nonzero. AccountBalance is the balance snapshot
// immediately after the mutation.
type Transaction struct {
	ID             string    `json:"id"` // "<accountNumber>-<n>", n monotonic per account
	AccountNumber  string    `json:"-"`  // id prefix, kept for per-account numbering
	Number         int       `json:"-"`  // id suffix
	TenantID       string    `json:"tenantId"`
	AccountID      string    `json:"accountId"`
	DebitAmount    float64   `json:"debitAmount"`
	CreditAmount   float64   `json:"creditAmount"`
	AccountBalance float64   `json:"accountBalance"`
	Details        string    `json:"details"`
	DateTime       time.Time `json:"transactionDateTime"` // UTC
}

// LedgerLeg is one half of a transfer: a transaction record plus the
// signed balance delta it applies to the account. Record.AccountBalance
// is filled in by the store at commit time so the snapshot always matches
// the balance immediately after the mutation.
type LedgerLeg struct {
	Record Transaction
	Delta  float64 // negative for debits
}

// ServiceRequest is a persisted customer-service ticket.
type ServiceRequest struct {
	ID             string    `json:"id"` // ULID
	TenantID       string    `json:"tenantId"`
	UserID         string    `json:"userId"`
	AccountID      string    `json:"accountId"`
	RecipientPhone string    `json:"recipientPhone"`
	RecipientEmail string    `json:"recipientEmail"`
	Annotations    []string  `json:"requestAnnotations"`
	RequestedOn    time.Time `json:"requestedOn"`
	Complete       bool      `json:"isComplete"`
}

// Offer is a marketing product record served by the sales agent.
type Offer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Text        string `json:"text"`
	AccountType string `json:"accountType"` // e.g. "credit_card", "loan", "savings"
}

// AccountStore persists account records.
type AccountStore interface {
	// AccountByNumber returns the account with the given user-facing number,
	// scoped to (tenantID, userID). Returns ErrAccountNotFound when missing.
	AccountByNumber(ctx context.Context, number, tenantID, userID string) (*Account, error)
	// CreateAccount inserts a new account record.
	CreateAccount(ctx context.Context, a *Account) error
	// LatestAccountNumber returns the highest assigned account number,
	// or 0 when no accounts exist.
	LatestAccountNumber(ctx context.Context) (int, error)
}

// TransactionStore persists the append-only ledger.
type TransactionStore interface {
	// LatestTransactionNumber returns the highest transaction number
	// recorded for the account, or 0 when it has none.
	LatestTransactionNumber(ctx context.Context, accountNumber string) (int, error)
	// ApplyLeg atomically inserts the leg's transaction record and applies
	// its balance delta to the account identified by Record.AccountID,
	// returning the completed record. A duplicate record id yields
	// ErrWriteConflict and no mutation. A debit that would take the balance
	// below zero yields ErrInsufficientFunds and no mutation.
	ApplyLeg(ctx context.Context, leg LedgerLeg) (*Transaction, error)
	// TransactionsByDateRange lists transactions for an account id within
	// [from, to], oldest first.
	TransactionsByDateRange(ctx context.Context, accountID string, from, to time.Time) ([]Transaction, error)
}

// ServiceRequestStore persists service requests.
type ServiceRequestStore interface {
	CreateServiceRequest(ctx context.Context, r *ServiceRequest) error
}

// OfferStore serves product offers for the sales agent.
type OfferStore interface {
	// SearchOffers returns offers matching the prompt, optionally filtered
	// by account type, best match first.
	SearchOffers(ctx context.Context, prompt, accountType string, limit int) ([]Offer, error)
}
