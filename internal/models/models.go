// internal/models/models.go
package models

import (
	"time"
)

// Call request lifecycle statuses. A record stays pending until the call it
// describes is placed, directly or through the payment-replay path.
const (
	CallStatusPending   = "pending"
	CallStatusFulfilled = "fulfilled"
)

// Payment lifecycle statuses. The paid transition happens exactly once,
// driven by the Stripe webhook.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Credits      int       `json:"credits"`
	CreatedAt    time.Time `json:"created_at"`
}

type CallRequest struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	PhoneTo   string    `json:"phone_to"`
	Prompt    string    `json:"prompt"`
	UserID    *int64    `json:"user_id,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Payment struct {
	ID                  int64     `json:"id"`
	CustomerEmail       string    `json:"customer_email"`
	StripePaymentLinkID string    `json:"stripe_payment_link_id"`
	Amount              int64     `json:"amount"`
	Currency            string    `json:"currency"`
	Status              string    `json:"status"`
	Description         string    `json:"description"`
	SuccessURL          string    `json:"success_url"`
	CancelURL           string    `json:"cancel_url"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
