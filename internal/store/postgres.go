// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"better-call/internal/models"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresConfig mirrors the DB section of the application config.
type PostgresConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// Postgres is the pooled backend for real deployments.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode, cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnLifetime
	poolConfig.MaxConnIdleTime = 15 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			credits INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS call_requests (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL,
			phone_to TEXT NOT NULL,
			prompt TEXT NOT NULL,
			user_id BIGINT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			customer_email TEXT NOT NULL DEFAULT '',
			stripe_payment_link_id TEXT,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			description TEXT NOT NULL DEFAULT '',
			success_url TEXT NOT NULL DEFAULT '',
			cancel_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Additive only; the schema is shared across service versions.
		`ALTER TABLE call_requests ADD COLUMN IF NOT EXISTS user_id BIGINT`,
		`ALTER TABLE call_requests ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'pending'`,
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, email, passwordHash string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, credits) VALUES ($1, $2, 0) RETURNING id`,
		email, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateEmail
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

func (p *Postgres) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, credits, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Credits, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) GetCredits(ctx context.Context, email string) (int, error) {
	var credits int
	err := p.pool.QueryRow(ctx,
		`SELECT credits FROM users WHERE email = $1`, email,
	).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to fetch credits: %w", err)
	}
	return credits, nil
}

func (p *Postgres) IncrementCredits(ctx context.Context, email string, amount int) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE users SET credits = credits + $1 WHERE email = $2`,
		amount, email,
	)
	if err != nil {
		return fmt.Errorf("failed to increment credits: %w", err)
	}
	return nil
}

func (p *Postgres) DecrementCredit(ctx context.Context, email string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE users SET credits = credits - 1 WHERE email = $1 AND credits > 0`,
		email,
	)
	if err != nil {
		return false, fmt.Errorf("failed to decrement credits: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) InsertCallRequest(ctx context.Context, rec *models.CallRequest) (int64, error) {
	status := rec.Status
	if status == "" {
		status = models.CallStatusPending
	}
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO call_requests (email, phone_to, prompt, user_id, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		rec.Email, rec.PhoneTo, rec.Prompt, rec.UserID, status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert call request: %w", err)
	}
	return id, nil
}

func (p *Postgres) LastCallByEmail(ctx context.Context, email string) (*models.CallRequest, error) {
	var rec models.CallRequest
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, phone_to, prompt, user_id, status, created_at
		   FROM call_requests WHERE email = $1 ORDER BY id DESC LIMIT 1`,
		email,
	).Scan(&rec.ID, &rec.Email, &rec.PhoneTo, &rec.Prompt, &rec.UserID, &rec.Status, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last call request: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) MarkCallFulfilled(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE call_requests SET status = $1 WHERE id = $2`,
		models.CallStatusFulfilled, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark call request fulfilled: %w", err)
	}
	return nil
}

func (p *Postgres) ListCallRequests(ctx context.Context, limit, offset int) ([]models.CallRequest, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, email, phone_to, prompt, user_id, status, created_at
		   FROM call_requests ORDER BY id DESC LIMIT $1 OFFSET $2`,
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

func (p *Postgres) CreatePayment(ctx context.Context, pay *models.Payment) (int64, error) {
	status := pay.Status
	if status == "" {
		status = models.PaymentStatusPending
	}
	var linkID any
	if pay.StripePaymentLinkID != "" {
		linkID = pay.StripePaymentLinkID
	}
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO payments (customer_email, stripe_payment_link_id, amount, currency, status, description, success_url, cancel_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		pay.CustomerEmail, linkID, pay.Amount, pay.Currency, status, pay.Description, pay.SuccessURL, pay.CancelURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create payment: %w", err)
	}
	return id, nil
}

func (p *Postgres) SetPaymentLinkID(ctx context.Context, id int64, linkID string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE payments SET stripe_payment_link_id = $1, updated_at = NOW() WHERE id = $2`,
		linkID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set payment link id: %w", err)
	}
	return nil
}

func (p *Postgres) MarkPaymentPaid(ctx context.Context, linkID string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE payments SET status = $1, updated_at = NOW()
		  WHERE stripe_payment_link_id = $2 AND status != $1`,
		models.PaymentStatusPaid, linkID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark payment paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) PaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	return p.scanPayment(p.pool.QueryRow(ctx,
		`SELECT id, customer_email, stripe_payment_link_id, amount, currency, status, description, success_url, cancel_url, created_at, updated_at
		   FROM payments WHERE id = $1`, id))
}

func (p *Postgres) PaymentByLinkID(ctx context.Context, linkID string) (*models.Payment, error) {
	return p.scanPayment(p.pool.QueryRow(ctx,
		`SELECT id, customer_email, stripe_payment_link_id, amount, currency, status, description, success_url, cancel_url, created_at, updated_at
		   FROM payments WHERE stripe_payment_link_id = $1`, linkID))
}

func (p *Postgres) scanPayment(row pgx.Row) (*models.Payment, error) {
	var pay models.Payment
	var linkID *string
	err := row.Scan(&pay.ID, &pay.CustomerEmail, &linkID, &pay.Amount, &pay.Currency, &pay.Status,
		&pay.Description, &pay.SuccessURL, &pay.CancelURL, &pay.CreatedAt, &pay.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	if linkID != nil {
		pay.StripePaymentLinkID = *linkID
	}
	return &pay, nil
}
