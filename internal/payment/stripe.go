// internal/payment/stripe.go
package payment

import (
	"context"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentlink"
	"github.com/stripe/stripe-go/v72/webhook"

	"better-call/internal/models"
)

type Config struct {
	SecretKey         string
	WebhookKey        string
	PriceID           string
	CreditAmountCents int64
	Currency          string
	BaseURL           string
}

// Links creates hosted checkout pages for a payment record. Split out so
// tests can stand in for Stripe.
type Links interface {
	Create(ctx context.Context, p *models.Payment) (linkID, url string, err error)
}

// StripeLinks creates real Stripe payment links. The internal payment id
// rides along in the link metadata and the success URL, so the checkout can
// be correlated with the webhook and the confirmation page.
type StripeLinks struct {
	priceID string
}

func NewStripeLinks(cfg Config) *StripeLinks {
	stripe.Key = cfg.SecretKey
	return &StripeLinks{priceID: cfg.PriceID}
}

func (s *StripeLinks) Create(ctx context.Context, p *models.Payment) (string, string, error) {
	successURL := fmt.Sprintf("%s?payment_id=%d", p.SuccessURL, p.ID)

	params := &stripe.PaymentLinkParams{
		LineItems: []*stripe.PaymentLinkLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		AfterCompletion: &stripe.PaymentLinkAfterCompletionParams{
			Type: stripe.String("redirect"),
			Redirect: &stripe.PaymentLinkAfterCompletionRedirectParams{
				URL: stripe.String(successURL),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("payment_id", strconv.FormatInt(p.ID, 10))
	params.AddMetadata("customer_email", p.CustomerEmail)

	link, err := paymentlink.New(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create payment link: %w", err)
	}
	return link.ID, link.URL, nil
}

// VerifyWebhookSignature checks the provider signature before the payload
// is trusted.
func VerifyWebhookSignature(payload []byte, sig, webhookSecret string) (stripe.Event, error) {
	if webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("webhook secret is not configured")
	}
	return webhook.ConstructEvent(payload, sig, webhookSecret)
}
