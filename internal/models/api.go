// internal/models/api.go
package models

// API request and response shapes.

type CallSubmission struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email"`
	Destination string `json:"destination" binding:"required"`
	Prompt      string `json:"prompt"`
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type CreditsResponse struct {
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

type CallResponse struct {
	OK      bool           `json:"ok"`
	CallSID string         `json:"call_sid,omitempty"`
	To      string         `json:"to,omitempty"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type PaymentCreateRequest struct {
	Description string `json:"description"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
}

type PaymentResponse struct {
	OK                  bool   `json:"ok"`
	PaymentID           string `json:"payment_id,omitempty"`
	StripePaymentLinkID string `json:"stripe_payment_link_id,omitempty"`
	PaymentURL          string `json:"payment_url,omitempty"`
	Amount              int64  `json:"amount,omitempty"`
	Currency            string `json:"currency,omitempty"`
	Status              string `json:"status,omitempty"`
	Error               string `json:"error,omitempty"`
}
