// internal/payment/service.go
package payment

import (
	"context"
	"fmt"
	"strconv"

	"better-call/internal/models"
	"better-call/internal/store"
	"better-call/pkg/logger"
)

// Service owns the payment lifecycle: a pending row is created first, the
// hosted checkout link second, and the link id written back, so a checkout
// page always has a payment record behind it.
type Service struct {
	payments store.PaymentStore
	links    Links
	cfg      Config
	logger   *logger.Logger
}

func NewService(payments store.PaymentStore, links Links, cfg Config, l *logger.Logger) *Service {
	return &Service{payments: payments, links: links, cfg: cfg, logger: l}
}

// CreateCheckout creates a pending payment for one call credit and returns
// the hosted checkout details.
func (s *Service) CreateCheckout(ctx context.Context, email, description, successURL, cancelURL string) (*models.PaymentResponse, error) {
	if description == "" {
		description = "Better Call credit"
	}
	// The redirect URLs feed straight into the hosted checkout; empty ones
	// would produce relative redirects Stripe rejects.
	if successURL == "" {
		successURL = s.cfg.BaseURL + "/payments/confirmation"
	}
	if cancelURL == "" {
		cancelURL = s.cfg.BaseURL + "/"
	}

	p := &models.Payment{
		CustomerEmail: email,
		Amount:        s.cfg.CreditAmountCents,
		Currency:      s.cfg.Currency,
		Status:        models.PaymentStatusPending,
		Description:   description,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	}

	id, err := s.payments.CreatePayment(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment record: %w", err)
	}
	p.ID = id

	linkID, url, err := s.links.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := s.payments.SetPaymentLinkID(ctx, id, linkID); err != nil {
		// The checkout page exists but the row lost its link id; the webhook
		// would not be able to resolve this payment.
		return nil, fmt.Errorf("failed to store payment link id: %w", err)
	}

	return &models.PaymentResponse{
		OK:                  true,
		PaymentID:           strconv.FormatInt(id, 10),
		StripePaymentLinkID: linkID,
		PaymentURL:          url,
		Amount:              p.Amount,
		Currency:            p.Currency,
		Status:              p.Status,
	}, nil
}

// MarkPaid flips the payment for a completed checkout. The first delivery
// of an event transitions the row and returns it; replays return (nil, nil).
func (s *Service) MarkPaid(ctx context.Context, linkID string) (*models.Payment, error) {
	transitioned, err := s.payments.MarkPaymentPaid(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return nil, nil
	}
	p, err := s.payments.PaymentByLinkID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("payment marked paid", "payment_id", p.ID, "link_id", linkID)
	return p, nil
}

// Status resolves a payment by internal id or provider link id.
func (s *Service) Status(ctx context.Context, paymentID, linkID string) (*models.Payment, error) {
	if paymentID != "" {
		id, err := strconv.ParseInt(paymentID, 10, 64)
		if err != nil {
			return nil, store.ErrNotFound
		}
		return s.payments.PaymentByID(ctx, id)
	}
	if linkID != "" {
		return s.payments.PaymentByLinkID(ctx, linkID)
	}
	return nil, store.ErrNotFound
}
