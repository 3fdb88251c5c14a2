// internal/server/webhook.go
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v72"

	"better-call/internal/payment"
)

// stripeWebhook is an at-least-once, idempotent sink: the signature is
// verified before anything is trusted, recognized events drive the paid
// transition, everything else is acknowledged and ignored.
func (h *handlers) stripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Failed to read request body"})
		return
	}

	signature := c.GetHeader("stripe-signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Missing signature"})
		return
	}

	event, err := payment.VerifyWebhookSignature(body, signature, h.deps.WebhookSecret)
	if err != nil {
		h.logger.Errorw("webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid signature"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			h.logger.Errorw("failed to parse checkout session", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Failed to parse event data"})
			return
		}
		if session.PaymentLink == nil || session.PaymentLink.ID == "" {
			h.logger.Warnw("checkout session carries no payment link", "session_id", session.ID)
			break
		}
		h.handleCheckoutCompleted(c, session.PaymentLink.ID)

	default:
		h.logger.Infow("ignoring webhook event", "type", event.Type)
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// handleCheckoutCompleted marks the payment paid, credits the customer and
// replays their pending call server-side. Only the first delivery of an
// event performs the transition, so replays cannot double-credit.
func (h *handlers) handleCheckoutCompleted(c *gin.Context, linkID string) {
	ctx := c.Request.Context()

	paid, err := h.deps.Payments.MarkPaid(ctx, linkID)
	if err != nil {
		h.logger.Errorw("failed to mark payment paid", "link_id", linkID, "error", err)
		return
	}
	if paid == nil {
		// Duplicate delivery; the status is already paid.
		return
	}

	if err := h.deps.Store.IncrementCredits(ctx, paid.CustomerEmail, 1); err != nil {
		h.logger.Errorw("failed to credit paid user", "email", paid.CustomerEmail, "payment_id", paid.ID, "error", err)
		return
	}

	resp, err := h.deps.Calls.ReplayLastPending(ctx, paid.CustomerEmail)
	if err != nil {
		h.logger.Errorw("failed to replay pending call after payment", "email", paid.CustomerEmail, "error", err)
		return
	}
	if resp != nil {
		h.logger.Infow("replayed pending call after payment", "email", paid.CustomerEmail, "call_sid", resp.CallSID)
	}
}
