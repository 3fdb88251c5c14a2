package call

import (
	"context"
	"errors"
	"testing"

	"better-call/internal/models"
	"better-call/internal/voice"
	"better-call/pkg/logger"
)

func newTestService(users *fakeUsers, calls *fakeCalls, enricher Enricher, dialer Dialer, checkout CheckoutCreator) *Service {
	if enricher == nil {
		enricher = &fakeEnricher{result: "enriched"}
	}
	if dialer == nil {
		dialer = &fakeDialer{sid: "CA123"}
	}
	if checkout == nil {
		checkout = &fakeCheckout{resp: &models.PaymentResponse{
			OK:         true,
			PaymentID:  "7",
			PaymentURL: "https://pay.example/plink",
		}}
	}
	return NewService(users, calls, enricher, dialer, checkout, "http://127.0.0.1:9001", logger.NewNop())
}

func submission() models.CallSubmission {
	return models.CallSubmission{
		Name:        "Ana",
		Email:       "a@x.com",
		Destination: "+15555550123",
		Prompt:      "call my friend",
	}
}

func workflowErr(t *testing.T, err error) *WorkflowError {
	t.Helper()
	var wErr *WorkflowError
	if !errors.As(err, &wErr) {
		t.Fatalf("expected *WorkflowError, got %T: %v", err, err)
	}
	return wErr
}

func TestSubmitCallUnauthorized(t *testing.T) {
	svc := newTestService(newFakeUsers(nil), &fakeCalls{}, nil, nil, nil)

	_, err := svc.SubmitCall(context.Background(), "", submission())
	if wErr := workflowErr(t, err); wErr.Kind != KindUnauthorized {
		t.Fatalf("expected unauthorized, got %s", wErr.Kind)
	}
}

func TestSubmitCallMalformedDestinationTouchesNothing(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 2})
	calls := &fakeCalls{}
	dialer := &fakeDialer{sid: "CA123"}
	svc := newTestService(users, calls, nil, dialer, nil)

	req := submission()
	req.Destination = "notaphone"

	_, err := svc.SubmitCall(context.Background(), "a@x.com", req)
	if wErr := workflowErr(t, err); wErr.Kind != KindValidation {
		t.Fatalf("expected validation error, got %s", wErr.Kind)
	}

	if c, _ := users.GetCredits(context.Background(), "a@x.com"); c != 2 {
		t.Fatalf("expected balance untouched at 2, got %d", c)
	}
	if len(calls.recs) != 0 {
		t.Fatal("expected no call record for a rejected request")
	}
	if dialer.dials != 0 {
		t.Fatal("expected no dial attempt for a rejected request")
	}
}

func TestSubmitCallMissingName(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 1})
	svc := newTestService(users, &fakeCalls{}, nil, nil, nil)

	req := submission()
	req.Name = ""

	_, err := svc.SubmitCall(context.Background(), "a@x.com", req)
	if wErr := workflowErr(t, err); wErr.Kind != KindValidation {
		t.Fatalf("expected validation error, got %s", wErr.Kind)
	}
	if c, _ := users.GetCredits(context.Background(), "a@x.com"); c != 1 {
		t.Fatalf("expected balance untouched, got %d", c)
	}
}

func TestSubmitCallSuccess(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 1})
	calls := &fakeCalls{}
	svc := newTestService(users, calls, &fakeEnricher{result: "ENRICHED PROMPT"}, &fakeDialer{sid: "CA999"}, nil)

	resp, err := svc.SubmitCall(context.Background(), "a@x.com", submission())
	if err != nil {
		t.Fatalf("SubmitCall failed: %v", err)
	}
	if !resp.OK || resp.CallSID != "CA999" || resp.To != "+15555550123" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if c, _ := users.GetCredits(context.Background(), "a@x.com"); c != 0 {
		t.Fatalf("expected credit consumed, balance %d", c)
	}
	if len(calls.recs) != 1 || calls.recs[0].Prompt != "ENRICHED PROMPT" {
		t.Fatalf("expected one record with the enriched prompt, got %+v", calls.recs)
	}
	if calls.recs[0].Status != models.CallStatusFulfilled {
		t.Fatalf("expected the record closed out after the call, got %q", calls.recs[0].Status)
	}
}

func TestSubmitCallInsufficientCredits(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 0})
	calls := &fakeCalls{}
	dialer := &fakeDialer{sid: "CA123"}
	svc := newTestService(users, calls, nil, dialer, nil)

	_, err := svc.SubmitCall(context.Background(), "a@x.com", submission())
	wErr := workflowErr(t, err)
	if wErr.Kind != KindInsufficientCredits {
		t.Fatalf("expected insufficient credits, got %s", wErr.Kind)
	}
	if wErr.Details["payment_url"] != "https://pay.example/plink" {
		t.Fatalf("expected checkout URL in details, got %+v", wErr.Details)
	}
	if wErr.Details["payment_id"] != "7" {
		t.Fatalf("expected payment id in details, got %+v", wErr.Details)
	}
	if wErr.Details["credits"] != 0 {
		t.Fatalf("expected credits in details, got %+v", wErr.Details)
	}

	// The request is persisted pending for replay after payment.
	if len(calls.recs) != 1 || calls.recs[0].Status != models.CallStatusPending {
		t.Fatalf("expected one pending record, got %+v", calls.recs)
	}
	if calls.recs[0].Prompt != "call my friend" {
		t.Fatalf("expected raw prompt in pending record, got %q", calls.recs[0].Prompt)
	}
	if dialer.dials != 0 {
		t.Fatal("expected no dial attempt without credit")
	}
}

func TestSubmitCallCompensatesOnDialFailure(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 3})
	svc := newTestService(users, &fakeCalls{}, nil, &fakeDialer{err: errors.New("busy")}, nil)

	_, err := svc.SubmitCall(context.Background(), "a@x.com", submission())
	if wErr := workflowErr(t, err); wErr.Kind != KindCallPlacement {
		t.Fatalf("expected call placement error, got %s", wErr.Kind)
	}

	// Net zero: the reserved credit came back.
	if c, _ := users.GetCredits(context.Background(), "a@x.com"); c != 3 {
		t.Fatalf("expected balance restored to 3, got %d", c)
	}
}

func TestSubmitCallRefundFailureKeepsOriginalError(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 1})
	users.incrementErr = errors.New("ledger down")
	svc := newTestService(users, &fakeCalls{}, nil, &fakeDialer{err: errors.New("busy")}, nil)

	_, err := svc.SubmitCall(context.Background(), "a@x.com", submission())
	if wErr := workflowErr(t, err); wErr.Kind != KindCallPlacement {
		t.Fatalf("expected the placement failure reported, got %s", wErr.Kind)
	}
	if len(users.incrementLog) != 0 {
		t.Fatalf("expected no credit applied, got %+v", users.incrementLog)
	}
}

func TestSubmitCallConfigurationError(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 1})
	svc := newTestService(users, &fakeCalls{}, nil, &fakeDialer{err: voice.ErrNotConfigured}, nil)

	_, err := svc.SubmitCall(context.Background(), "a@x.com", submission())
	if wErr := workflowErr(t, err); wErr.Kind != KindConfiguration {
		t.Fatalf("expected configuration error, got %s", wErr.Kind)
	}
	if c, _ := users.GetCredits(context.Background(), "a@x.com"); c != 1 {
		t.Fatalf("expected balance restored to 1, got %d", c)
	}
}

func TestSubmitCallEnrichmentFallback(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 1})
	calls := &fakeCalls{}
	svc := newTestService(users, calls, &fakeEnricher{err: errors.New("model down")}, &fakeDialer{sid: "CA123"}, nil)

	resp, err := svc.SubmitCall(context.Background(), "a@x.com", submission())
	if err != nil {
		t.Fatalf("expected call to proceed despite enrichment failure: %v", err)
	}
	if resp.CallSID != "CA123" {
		t.Fatalf("unexpected sid %q", resp.CallSID)
	}

	// The raw prompt is used verbatim.
	if len(calls.recs) != 1 || calls.recs[0].Prompt != "call my friend" {
		t.Fatalf("expected raw prompt fallback, got %+v", calls.recs)
	}
}

func TestSubmitCallLedgerFailurePropagates(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 1})
	users.decrementErr = errors.New("disk full")
	dialer := &fakeDialer{sid: "CA123"}
	svc := newTestService(users, &fakeCalls{}, nil, dialer, nil)

	_, err := svc.SubmitCall(context.Background(), "a@x.com", submission())
	if wErr := workflowErr(t, err); wErr.Kind != KindStorage {
		t.Fatalf("expected storage error, got %s", wErr.Kind)
	}
	if dialer.dials != 0 {
		t.Fatal("expected no dial after ledger failure")
	}
}

func TestSubmitCallRecordInsertFailureIsSwallowed(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 1})
	calls := &fakeCalls{insertErr: errors.New("disk full")}
	svc := newTestService(users, calls, nil, &fakeDialer{sid: "CA123"}, nil)

	resp, err := svc.SubmitCall(context.Background(), "a@x.com", submission())
	if err != nil {
		t.Fatalf("expected call to proceed despite record failure: %v", err)
	}
	if resp.CallSID != "CA123" {
		t.Fatalf("unexpected sid %q", resp.CallSID)
	}
}

func TestReplayLastPending(t *testing.T) {
	users := newFakeUsers(map[string]int{"a@x.com": 1})
	calls := &fakeCalls{}
	if _, err := calls.InsertCallRequest(context.Background(), &models.CallRequest{
		Email:   "a@x.com",
		PhoneTo: "+15555550123",
		Prompt:  "call my friend",
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	svc := newTestService(users, calls, nil, &fakeDialer{sid: "CA777"}, nil)

	resp, err := svc.ReplayLastPending(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("ReplayLastPending failed: %v", err)
	}
	if resp == nil || resp.CallSID != "CA777" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The pending record is reused, not duplicated.
	if len(calls.recs) != 1 {
		t.Fatalf("expected the replay to reuse the pending record, got %d records", len(calls.recs))
	}
	if calls.recs[0].Status != models.CallStatusFulfilled {
		t.Fatalf("expected the replayed record fulfilled, got %q", calls.recs[0].Status)
	}
	if c, _ := users.GetCredits(context.Background(), "a@x.com"); c != 0 {
		t.Fatalf("expected replay to consume the credit, balance %d", c)
	}
}

func TestReplayLastPendingNoRecord(t *testing.T) {
	svc := newTestService(newFakeUsers(nil), &fakeCalls{}, nil, nil, nil)

	resp, err := svc.ReplayLastPending(context.Background(), "ghost@x.com")
	if err != nil {
		t.Fatalf("ReplayLastPending failed: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil response without a record, got %+v", resp)
	}
}
