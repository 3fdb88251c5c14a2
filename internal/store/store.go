// internal/store/store.go
package store

import (
	"context"
	"errors"

	"better-call/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEmail is returned when registering an email that already exists.
	ErrDuplicateEmail = errors.New("user already exists")
)

// UserStore persists user records and owns the credit ledger. The ledger
// invariant (credits never negative) lives here: DecrementCredit is a single
// conditional UPDATE, never a read-then-write pair.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash string) (int64, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetCredits returns 0 for unknown users.
	GetCredits(ctx context.Context, email string) (int, error)
	IncrementCredits(ctx context.Context, email string, amount int) error
	// DecrementCredit subtracts exactly one credit iff the balance is
	// positive, reporting whether it succeeded.
	DecrementCredit(ctx context.Context, email string) (bool, error)
}

// CallStore persists call requests for later replay after payment.
type CallStore interface {
	InsertCallRequest(ctx context.Context, rec *models.CallRequest) (int64, error)
	LastCallByEmail(ctx context.Context, email string) (*models.CallRequest, error)
	MarkCallFulfilled(ctx context.Context, id int64) error
	ListCallRequests(ctx context.Context, limit, offset int) ([]models.CallRequest, error)
}

// PaymentStore persists checkout payments resolved by webhook.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *models.Payment) (int64, error)
	SetPaymentLinkID(ctx context.Context, id int64, linkID string) error
	// MarkPaymentPaid flips the payment matching the Stripe link id to paid,
	// reporting whether a pending row actually transitioned. Repeat
	// deliveries of the same event return false without error.
	MarkPaymentPaid(ctx context.Context, linkID string) (bool, error)
	PaymentByID(ctx context.Context, id int64) (*models.Payment, error)
	PaymentByLinkID(ctx context.Context, linkID string) (*models.Payment, error)
}

// Store is the full persistence surface backed by a single database.
type Store interface {
	UserStore
	CallStore
	PaymentStore
	Close() error
}
