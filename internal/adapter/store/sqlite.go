package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"teller/internal/domain"
)

// SQLiteStore backs every persisted record (accounts, transactions,
// threads, service requests, offers) with a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at dbPath and runs the
// schema migration. Use ":memory:" for an ephemeral store in tests.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// WAL mode for better concurrent reads; busy timeout so concurrent
	// writers queue instead of failing immediately.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	// One connection: SQLite permits a single writer, and the pool would
	// otherwise surface SQLITE_BUSY on transaction upgrades.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id         TEXT PRIMARY KEY,
			number     TEXT NOT NULL,
			tenant_id  TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			holder     TEXT NOT NULL DEFAULT '',
			balance    REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			UNIQUE(number, tenant_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			account_number TEXT NOT NULL,
			seq            INTEGER NOT NULL,
			tenant_id      TEXT NOT NULL,
			account_id     TEXT NOT NULL,
			debit          REAL NOT NULL DEFAULT 0,
			credit         REAL NOT NULL DEFAULT 0,
			balance        REAL NOT NULL,
			details        TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_account
			ON transactions(account_id, created_at);
		CREATE TABLE IF NOT EXISTS threads (
			id           TEXT NOT NULL,
			tenant_id    TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			active_agent TEXT NOT NULL DEFAULT 'unknown',
			messages     TEXT NOT NULL DEFAULT '[]',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,
			PRIMARY KEY(tenant_id, user_id, id)
		);
		CREATE TABLE IF NOT EXISTS service_requests (
			id           TEXT PRIMARY KEY,
			tenant_id    TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			account_id   TEXT NOT NULL DEFAULT '',
			phone        TEXT NOT NULL,
			email        TEXT NOT NULL,
			annotations  TEXT NOT NULL DEFAULT '[]',
			requested_on TEXT NOT NULL,
			complete     INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS offers (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			text         TEXT NOT NULL,
			account_type TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- AccountStore ---

func (s *SQLiteStore) AccountByNumber(ctx context.Context, number, tenantID, userID string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, number, tenant_id, user_id, holder, balance, created_at FROM accounts WHERE number = ? AND tenant_id = ? AND user_id = ?",
		number, tenantID, userID,
	)
	var a domain.Account
	var createdStr string
	if err := row.Scan(&a.ID, &a.Number, &a.TenantID, &a.UserID, &a.Holder, &a.Balance, &createdStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	a.Created, _ = time.Parse(time.RFC3339Nano, createdStr)
	return &a, nil
}

func (s *SQLiteStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	if a.Created.IsZero() {
		a.Created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO accounts (id, number, tenant_id, user_id, holder, balance, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.Number, a.TenantID, a.UserID, a.Holder, a.Balance,
		a.Created.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return domain.NewDomainError("SQLiteStore.CreateAccount", domain.ErrWriteConflict, a.ID)
	}
	return err
}

func (s *SQLiteStore) LatestAccountNumber(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(substr(id, 2) AS INTEGER)), 0) FROM accounts",
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// --- TransactionStore ---

func (s *SQLiteStore) LatestTransactionNumber(ctx context.Context, accountNumber string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) FROM transactions WHERE account_number = ?", accountNumber,
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ApplyLeg inserts the leg's transaction record and applies its balance
// delta in one database transaction. The balance snapshot on the record is
// computed from the balance read inside that transaction, so the two can
// never disagree.
func (s *SQLiteStore) ApplyLeg(ctx context.Context, leg domain.LedgerLeg) (*domain.Transaction, error) {
	const op = "SQLiteStore.ApplyLeg"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	defer tx.Rollback()

	var balance float64
	row := tx.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = ?", leg.Record.AccountID)
	if err := row.Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.NewDomainError(op, domain.ErrAccountNotFound, leg.Record.AccountID)
		}
		return nil, domain.WrapOp(op, err)
	}

	newBalance := balance + leg.Delta
	if newBalance < 0 {
		return nil, domain.NewDomainError(op, domain.ErrInsufficientFunds,
			fmt.Sprintf("account %s balance %.2f", leg.Record.AccountID, balance))
	}

	rec := leg.Record
	rec.AccountBalance = newBalance
	if rec.DateTime.IsZero() {
		rec.DateTime = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO transactions (id, account_number, seq, tenant_id, account_id, debit, credit, balance, details, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.AccountNumber, rec.Number, rec.TenantID, rec.AccountID,
		rec.DebitAmount, rec.CreditAmount, rec.AccountBalance, rec.Details,
		rec.DateTime.Format(time.RFC3339Nano),
	)
	if isUniqueViolation(err) {
		return nil, domain.NewDomainError(op, domain.ErrWriteConflict, rec.ID)
	}
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE accounts SET balance = ? WHERE id = ?", newBalance, rec.AccountID,
	); err != nil {
		return nil, domain.WrapOp(op, err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewDomainError(op, domain.ErrWriteConflict, rec.ID)
		}
		return nil, domain.WrapOp(op, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) TransactionsByDateRange(ctx context.Context, accountID string, from, to time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, account_number, seq, tenant_id, account_id, debit, credit, balance, details, created_at FROM transactions WHERE account_id = ? AND created_at >= ? AND created_at <= ? ORDER BY created_at",
		accountID, from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var createdStr string
		if err := rows.Scan(&t.ID, &t.AccountNumber, &t.Number, &t.TenantID, &t.AccountID,
			&t.DebitAmount, &t.CreditAmount, &t.AccountBalance, &t.Details, &createdStr); err != nil {
			return nil, err
		}
		t.DateTime, _ = time.Parse(time.RFC3339Nano, createdStr)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// --- ThreadStore ---

func (s *SQLiteStore) ActiveAgent(ctx context.Context, tenantID, userID, threadID string) (domain.AgentName, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT active_agent FROM threads WHERE tenant_id = ? AND user_id = ? AND id = ?",
		tenantID, userID, threadID,
	)
	var agent string
	if err := row.Scan(&agent); err != nil {
		if err == sql.ErrNoRows {
			return domain.AgentUnknown, domain.ErrThreadNotFound
		}
		return domain.AgentUnknown, err
	}
	return domain.AgentName(agent), nil
}

func (s *SQLiteStore) SetActiveAgent(ctx context.Context, tenantID, userID, threadID string, agent domain.AgentName) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO threads (id, tenant_id, user_id, active_agent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, user_id, id)
		DO UPDATE SET active_agent = excluded.active_agent, updated_at = excluded.updated_at`,
		threadID, tenantID, userID, string(agent), now, now,
	)
	return err
}

func (s *SQLiteStore) Thread(ctx context.Context, tenantID, userID, threadID string) (*domain.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, tenant_id, user_id, active_agent, messages, created_at, updated_at FROM threads WHERE tenant_id = ? AND user_id = ? AND id = ?",
		tenantID, userID, threadID,
	)
	var t domain.Thread
	var agent, msgsStr, createdStr, updatedStr string
	if err := row.Scan(&t.ID, &t.TenantID, &t.UserID, &agent, &msgsStr, &createdStr, &updatedStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrThreadNotFound
		}
		return nil, err
	}
	t.ActiveAgent = domain.AgentName(agent)
	if err := json.Unmarshal([]byte(msgsStr), &t.Messages); err != nil {
		return nil, fmt.Errorf("unmarshal thread messages: %w", err)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedStr)
	return &t, nil
}

func (s *SQLiteStore) PutThread(ctx context.Context, t *domain.Thread) error {
	msgs, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("marshal thread messages: %w", err)
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.ActiveAgent == "" {
		t.ActiveAgent = domain.AgentUnknown
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (id, tenant_id, user_id, active_agent, messages, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, user_id, id)
		DO UPDATE SET active_agent = excluded.active_agent,
		              messages = excluded.messages,
		              updated_at = excluded.updated_at`,
		t.ID, t.TenantID, t.UserID, string(t.ActiveAgent), string(msgs),
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) AppendMessages(ctx context.Context, tenantID, userID, threadID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existing string
	row := tx.QueryRowContext(ctx,
		"SELECT messages FROM threads WHERE tenant_id = ? AND user_id = ? AND id = ?",
		tenantID, userID, threadID,
	)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	switch err := row.Scan(&existing); err {
	case nil:
		var all []domain.Message
		if err := json.Unmarshal([]byte(existing), &all); err != nil {
			return fmt.Errorf("unmarshal thread messages: %w", err)
		}
		all = append(all, msgs...)
		merged, err := json.Marshal(all)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE threads SET messages = ?, updated_at = ? WHERE tenant_id = ? AND user_id = ? AND id = ?",
			string(merged), now, tenantID, userID, threadID,
		); err != nil {
			return err
		}
	case sql.ErrNoRows:
		data, err := json.Marshal(msgs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO threads (id, tenant_id, user_id, active_agent, messages, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			threadID, tenantID, userID, string(domain.AgentUnknown), string(data), now, now,
		); err != nil {
			return err
		}
	default:
		return err
	}
	return tx.Commit()
}

// --- ServiceRequestStore ---

func (s *SQLiteStore) CreateServiceRequest(ctx context.Context, r *domain.ServiceRequest) error {
	annotations, err := json.Marshal(r.Annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}
	if r.RequestedOn.IsZero() {
		r.RequestedOn = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO service_requests (id, tenant_id, user_id, account_id, phone, email, annotations, requested_on, complete) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.TenantID, r.UserID, r.AccountID, r.RecipientPhone, r.RecipientEmail,
		string(annotations), r.RequestedOn.Format(time.RFC3339Nano), boolToInt(r.Complete),
	)
	return err
}

// --- OfferStore ---

// SearchOffers ranks offers by shared lowercase terms with the prompt.
// This is a deliberate stand-in for the vector search the hosted system
// uses; no embedding provider is in scope here.
func (s *SQLiteStore) SearchOffers(ctx context.Context, prompt, accountType string, limit int) ([]domain.Offer, error) {
	query := "SELECT id, name, text, account_type FROM offers"
	args := []any{}
	if accountType != "" {
		query += " WHERE account_type = ?"
		args = append(args, accountType)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(&o.ID, &o.Name, &o.Text, &o.AccountType); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ranked := rankOffers(offers, prompt)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func rankOffers(offers []domain.Offer, prompt string) []domain.Offer {
	terms := strings.Fields(strings.ToLower(prompt))
	type scored struct {
		offer domain.Offer
		score int
	}
	out := make([]scored, 0, len(offers))
	for _, o := range offers {
		text := strings.ToLower(o.Name + " " + o.Text)
		n := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				n++
			}
		}
		out = append(out, scored{o, n})
	}
	// Stable selection sort by descending score; offer lists are small.
	for i := 0; i < len(out); i++ {
		best := i
		for j := i + 1; j < len(out); j++ {
			if out[j].score > out[best].score {
				best = j
			}
		}
		out[i], out[best] = out[best], out[i]
	}
	ranked := make([]domain.Offer, len(out))
	for i, s := range out {
		ranked[i] = s.offer
	}
	return ranked
}

// AddOffer inserts an offer record (used by seeding and tests).
func (s *SQLiteStore) AddOffer(ctx context.Context, o domain.Offer) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO offers (id, name, text, account_type) VALUES (?, ?, ?, ?)",
		o.ID, o.Name, o.Text, o.AccountType,
	)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
