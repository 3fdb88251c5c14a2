// internal/server/handlers.go
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"better-call/internal/auth"
	"better-call/internal/call"
	"better-call/internal/models"
	"better-call/internal/store"
	"better-call/pkg/logger"
)

type handlers struct {
	deps   Deps
	logger *logger.Logger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *handlers) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request body"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to register"})
		return
	}

	// Users always start at zero credits; any client-supplied balance is
	// ignored by design.
	if _, err := h.deps.Store.CreateUser(c.Request.Context(), req.Email, hash); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "User already exists"})
			return
		}
		h.logger.Errorw("failed to create user", "email", req.Email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to register"})
		return
	}

	h.issueToken(c, req.Email)
}

func (h *handlers) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request body"})
		return
	}

	user, err := h.deps.Store.UserByEmail(c.Request.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Invalid credentials"})
		return
	}

	h.issueToken(c, req.Email)
}

func (h *handlers) issueToken(c *gin.Context, email string) {
	token, err := h.deps.Auth.CreateAccessToken(email)
	if err != nil {
		h.logger.Errorw("failed to sign token", "email", email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, models.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *handlers) credits(c *gin.Context) {
	email := auth.EmailFromContext(c)
	credits, err := h.deps.Store.GetCredits(c.Request.Context(), email)
	if err != nil {
		h.logger.Errorw("failed to fetch credits", "email", email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to fetch credits"})
		return
	}
	c.JSON(http.StatusOK, models.CreditsResponse{Email: email, Credits: credits})
}

func (h *handlers) submitCall(c *gin.Context) {
	email := auth.EmailFromContext(c)

	var req models.CallSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request body"})
		return
	}

	resp, err := h.deps.Calls.SubmitCall(c.Request.Context(), email, req)
	if err != nil {
		h.renderWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) lastCall(c *gin.Context) {
	email := auth.EmailFromContext(c)

	rec, err := h.deps.Store.LastCallByEmail(c.Request.Context(), email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "No call requests found"})
		return
	}
	if err != nil {
		h.logger.Errorw("failed to fetch last call", "email", email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to fetch call record"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "record": rec})
}

func (h *handlers) createPayment(c *gin.Context) {
	email := auth.EmailFromContext(c)

	// Body is optional; every field has a server-side default.
	var req models.PaymentCreateRequest
	_ = c.ShouldBindJSON(&req)

	resp, err := h.deps.Payments.CreateCheckout(c.Request.Context(), email, req.Description, req.SuccessURL, req.CancelURL)
	if err != nil {
		h.logger.Errorw("failed to create payment", "email", email, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to create payment"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) paymentStatus(c *gin.Context) {
	p, err := h.deps.Payments.Status(c.Request.Context(), c.Query("payment_id"), c.Query("stripe_payment_link_id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Payment not found"})
		return
	}
	if err != nil {
		h.logger.Errorw("failed to fetch payment status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to fetch payment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                     true,
		"payment_id":             p.ID,
		"stripe_payment_link_id": p.StripePaymentLinkID,
		"amount":                 p.Amount,
		"currency":               p.Currency,
		"status":                 p.Status,
		"customer_email":         p.CustomerEmail,
		"created_at":             p.CreatedAt,
		"updated_at":             p.UpdatedAt,
	})
}

func (h *handlers) simulateCall(c *gin.Context) {
	var req models.CallSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request body"})
		return
	}

	resp, err := h.deps.Relay.Simulate(c.Request.Context(), req)
	if err != nil {
		h.logger.Errorw("failed to simulate call", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Failed to simulate call"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) renderWorkflowError(c *gin.Context, err error) {
	var wErr *call.WorkflowError
	if !errors.As(err, &wErr) {
		h.logger.Errorw("unclassified workflow failure", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Internal error"})
		return
	}
	if wErr.Kind == call.KindStorage || wErr.Kind == call.KindConfiguration {
		h.logger.Errorw("workflow failed", "kind", wErr.Kind, "error", wErr.Unwrap())
	}
	resp := models.CallResponse{OK: false, Error: wErr.Message, Details: wErr.Details}
	c.JSON(wErr.HTTPStatus(), resp)
}
