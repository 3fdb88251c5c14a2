// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"better-call/internal/models"

	"github.com/mattn/go-sqlite3"
)

// SQLite is the single-file backend used for local deployments and tests.
// A mutex serializes writes; the credit invariant is still carried by the
// conditional UPDATE predicate, not the lock.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			credits INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS call_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			phone_to TEXT NOT NULL,
			prompt TEXT NOT NULL,
			user_id INTEGER,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_email TEXT NOT NULL DEFAULT '',
			stripe_payment_link_id TEXT,
			amount INTEGER NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			description TEXT NOT NULL DEFAULT '',
			success_url TEXT NOT NULL DEFAULT '',
			cancel_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	// Additive-only migration for databases created by earlier versions:
	// call_requests predates user_id and status.
	rows, err := s.db.Query(`PRAGMA table_info(call_requests)`)
	if err != nil {
		return fmt.Errorf("failed to inspect call_requests schema: %w", err)
	}
	defer rows.Close()
	existing := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return fmt.Errorf("failed to inspect call_requests schema: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect call_requests schema: %w", err)
	}
	if !existing["user_id"] {
		_, _ = s.db.Exec(`ALTER TABLE call_requests ADD COLUMN user_id INTEGER`)
	}
	if !existing["status"] {
		_, _ = s.db.Exec(`ALTER TABLE call_requests ADD COLUMN status TEXT NOT NULL DEFAULT 'pending'`)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateUser(ctx context.Context, email, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, credits) VALUES (?, ?, 0)`,
		email, passwordHash,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return 0, ErrDuplicateEmail
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLite) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, credits, created_at FROM users WHERE email = ?`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Credits, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

func (s *SQLite) GetCredits(ctx context.Context, email string) (int, error) {
	var credits int
	err := s.db.QueryRowContext(ctx,
		`SELECT credits FROM users WHERE email = ?`, email,
	).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to fetch credits: %w", err)
	}
	return credits, nil
}

func (s *SQLite) IncrementCredits(ctx context.Context, email string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET credits = credits + ? WHERE email = ?`,
		amount, email,
	)
	if err != nil {
		return fmt.Errorf("failed to increment credits: %w", err)
	}
	return nil
}

func (s *SQLite) DecrementCredit(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET credits = credits - 1 WHERE email = ? AND credits > 0`,
		email,
	)
	if err != nil {
		return false, fmt.Errorf("failed to decrement credits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to decrement credits: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) InsertCallRequest(ctx context.Context, rec *models.CallRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := rec.Status
	if status == "" {
		status = models.CallStatusPending
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO call_requests (email, phone_to, prompt, user_id, status) VALUES (?, ?, ?, ?, ?)`,
		rec.Email, rec.PhoneTo, rec.Prompt, rec.UserID, status,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert call request: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLite) LastCallByEmail(ctx context.Context, email string) (*models.CallRequest, error) {
	var rec models.CallRequest
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, phone_to, prompt, user_id, status, created_at
		   FROM call_requests WHERE email = ? ORDER BY id DESC LIMIT 1`,
		email,
	).Scan(&rec.ID, &rec.Email, &rec.PhoneTo, &rec.Prompt, &rec.UserID, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last call request: %w", err)
	}
	return &rec, nil
}

func (s *SQLite) MarkCallFulfilled(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE call_requests SET status = ? WHERE id = ?`,
		models.CallStatusFulfilled, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark call request fulfilled: %w", err)
	}
	return nil
}

func (s *SQLite) ListCallRequests(ctx context.Context, limit, offset int) ([]models.CallRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, phone_to, prompt, user_id, status, created_at
		   FROM call_requests ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list call requests: %w", err)
	}
	defer rows.Close()

	var recs []models.CallRequest
	for rows.Next() {
		var rec models.CallRequest
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.PhoneTo, &rec.Prompt, &rec.UserID, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan call request: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLite) CreatePayment(ctx context.Context, p *models.Payment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := p.Status
	if status == "" {
		status = models.PaymentStatusPending
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (customer_email, stripe_payment_link_id, amount, currency, status, description, success_url, cancel_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.CustomerEmail, nullable(p.StripePaymentLinkID), p.Amount, p.Currency, status, p.Description, p.SuccessURL, p.CancelURL,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create payment: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLite) SetPaymentLinkID(ctx context.Context, id int64, linkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET stripe_payment_link_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		linkID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set payment link id: %w", err)
	}
	return nil
}

func (s *SQLite) MarkPaymentPaid(ctx context.Context, linkID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = CURRENT_TIMESTAMP
		  WHERE stripe_payment_link_id = ? AND status != ?`,
		models.PaymentStatusPaid, linkID, models.PaymentStatusPaid,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) PaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	return s.scanPayment(s.db.QueryRowContext(ctx,
		`SELECT id, customer_email, stripe_payment_link_id, amount, currency, status, description, success_url, cancel_url, created_at, updated_at
		   FROM payments WHERE id = ?`, id))
}

func (s *SQLite) PaymentByLinkID(ctx context.Context, linkID string) (*models.Payment, error) {
	return s.scanPayment(s.db.QueryRowContext(ctx,
		`SELECT id, customer_email, stripe_payment_link_id, amount, currency, status, description, success_url, cancel_url, created_at, updated_at
		   FROM payments WHERE stripe_payment_link_id = ?`, linkID))
}

func (s *SQLite) scanPayment(row *sql.Row) (*models.Payment, error) {
	var p models.Payment
	var linkID sql.NullString
	err := row.Scan(&p.ID, &p.CustomerEmail, &linkID, &p.Amount, &p.Currency, &p.Status,
		&p.Description, &p.SuccessURL, &p.CancelURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	p.StripePaymentLinkID = linkID.String
	return &p, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
