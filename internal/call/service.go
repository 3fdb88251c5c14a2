// internal/call/service.go
package call

import (
	"context"
	"errors"
	"regexp"

	"better-call/internal/models"
	"better-call/internal/store"
	"better-call/internal/voice"
	"better-call/pkg/logger"
)

var destinationRe = regexp.MustCompile(`^\+\d{8,15}$`)

// Enricher rewrites a raw prompt for the voice agent. Best-effort: the
// workflow falls back to the raw prompt when it fails.
type Enricher interface {
	EnrichPrompt(ctx context.Context, name, rawPrompt string) (string, error)
}

// Dialer places the outbound call and returns the provider call SID.
type Dialer interface {
	Dial(ctx context.Context, destination string) (string, error)
}

// CheckoutCreator produces a hosted checkout for topping up credits.
type CheckoutCreator interface {
	CreateCheckout(ctx context.Context, email, description, successURL, cancelURL string) (*models.PaymentResponse, error)
}

// Service coordinates the credit-gated call workflow. It holds no state of
// its own; every request runs decrement -> enrich -> persist -> dial, with a
// compensating refund on any failure after the decrement.
type Service struct {
	users    store.UserStore
	calls    store.CallStore
	enricher Enricher
	dialer   Dialer
	checkout CheckoutCreator
	baseURL  string
	logger   *logger.Logger
}

func NewService(users store.UserStore, calls store.CallStore, enricher Enricher, dialer Dialer, checkout CheckoutCreator, baseURL string, l *logger.Logger) *Service {
	return &Service{
		users:    users,
		calls:    calls,
		enricher: enricher,
		dialer:   dialer,
		checkout: checkout,
		baseURL:  baseURL,
		logger:   l,
	}
}

// SubmitCall runs the full workflow for an authenticated request. The
// returned error is always a *WorkflowError. Two identical submissions each
// consume a credit and place a call; retries are the caller's business.
func (s *Service) SubmitCall(ctx context.Context, identity string, req models.CallSubmission) (*models.CallResponse, error) {
	return s.submit(ctx, identity, req, 0)
}

// submit runs the workflow. A non-zero recordID reuses an existing pending
// record (the replay path) instead of inserting a fresh one.
func (s *Service) submit(ctx context.Context, identity string, req models.CallSubmission, recordID int64) (*models.CallResponse, error) {
	if identity == "" {
		return nil, newError(KindUnauthorized, "Unauthorized", nil, nil)
	}

	// Shape checks happen before any side effect.
	if req.Name == "" {
		return nil, newError(KindValidation, "Name is required", nil, nil)
	}
	if !destinationRe.MatchString(req.Destination) {
		return nil, newError(KindValidation, "Destination must be an international phone number", map[string]any{
			"destination": req.Destination,
		}, nil)
	}

	ok, err := s.users.DecrementCredit(ctx, identity)
	if err != nil {
		// Ledger failures are never swallowed: doing so risks a free call
		// or a lost credit.
		return nil, newError(KindStorage, "Credit ledger unavailable", nil, err)
	}
	if !ok {
		return nil, s.insufficientCredits(ctx, identity, req, recordID)
	}

	prompt := req.Prompt
	if enriched, err := s.enricher.EnrichPrompt(ctx, req.Name, req.Prompt); err != nil {
		s.logger.Warnw("prompt enrichment failed, using raw prompt", "email", identity, "error", err)
	} else {
		prompt = enriched
	}

	// Best-effort record of the attempt; a failure here must not block the
	// call the user just paid a credit for.
	if recordID == 0 {
		id, err := s.calls.InsertCallRequest(ctx, &models.CallRequest{
			Email:   identity,
			PhoneTo: req.Destination,
			Prompt:  prompt,
			Status:  models.CallStatusPending,
		})
		if err != nil {
			s.logger.Errorw("failed to persist call request", "email", identity, "error", err)
		}
		recordID = id
	}

	sid, err := s.dialer.Dial(ctx, req.Destination)
	if err != nil {
		s.refund(ctx, identity, recordID)
		if errors.Is(err, voice.ErrNotConfigured) {
			return nil, newError(KindConfiguration, "Voice provider is not configured", nil, err)
		}
		s.logger.Errorw("call placement failed", "email", identity, "destination", req.Destination, "error", err)
		return nil, newError(KindCallPlacement, "Failed to place call", map[string]any{
			"destination": req.Destination,
		}, err)
	}

	// Close the record out so a later payment webhook cannot replay a call
	// that already went through.
	if recordID != 0 {
		if err := s.calls.MarkCallFulfilled(ctx, recordID); err != nil {
			s.logger.Errorw("failed to mark call request fulfilled", "record_id", recordID, "error", err)
		}
	}

	s.logger.Infow("call placed", "email", identity, "destination", req.Destination, "call_sid", sid)
	return &models.CallResponse{OK: true, CallSID: sid, To: req.Destination}, nil
}

// ReplayLastPending places the caller's most recent pending call request.
// Driven by the payment webhook after a top-up; the record is marked
// fulfilled once the call goes out.
func (s *Service) ReplayLastPending(ctx context.Context, email string) (*models.CallResponse, error) {
	rec, err := s.calls.LastCallByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, newError(KindStorage, "Call record unavailable", nil, err)
	}
	if rec.Status != models.CallStatusPending {
		return nil, nil
	}

	// The pending record itself rides through the workflow, so the replay
	// fulfills it instead of logging a duplicate.
	return s.submit(ctx, email, models.CallSubmission{
		Name:        email,
		Email:       email,
		Destination: rec.PhoneTo,
		Prompt:      rec.Prompt,
	}, rec.ID)
}

// insufficientCredits persists the request for replay, creates a checkout
// link and packages both into the 402 failure. A replay that finds the
// balance empty again keeps its existing pending record.
func (s *Service) insufficientCredits(ctx context.Context, identity string, req models.CallSubmission, recordID int64) *WorkflowError {
	if recordID == 0 {
		if _, err := s.calls.InsertCallRequest(ctx, &models.CallRequest{
			Email:   identity,
			PhoneTo: req.Destination,
			Prompt:  req.Prompt,
			Status:  models.CallStatusPending,
		}); err != nil {
			s.logger.Errorw("failed to persist pending call request", "email", identity, "error", err)
		}
	}

	credits, err := s.users.GetCredits(ctx, identity)
	if err != nil {
		credits = 0
	}
	details := map[string]any{"credits": credits}

	checkout, err := s.checkout.CreateCheckout(ctx, identity, "Better Call credit", s.baseURL+"/payments/confirmation", s.baseURL+"/")
	if err != nil {
		s.logger.Errorw("failed to create checkout for top-up", "email", identity, "error", err)
	} else {
		details["payment_url"] = checkout.PaymentURL
		details["payment_id"] = checkout.PaymentID
	}

	return newError(KindInsufficientCredits, "Insufficient credits", details, nil)
}

// refund is the compensating action after a failed placement. A refund that
// itself fails is a real accounting defect; it is surfaced in the log as a
// reconciliation-needed event, while the original failure stays the one
// reported.
func (s *Service) refund(ctx context.Context, email string, recordID int64) {
	if err := s.users.IncrementCredits(ctx, email, 1); err != nil {
		s.logger.Errorw("credit_refund_failed: user charged without a call, refund failed",
			"email", email, "record_id", recordID, "error", err)
	}
}
