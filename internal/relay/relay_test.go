package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"better-call/internal/models"
	"better-call/pkg/logger"
)

type stubEnricher struct{}

func (stubEnricher) EnrichPrompt(ctx context.Context, name, rawPrompt string) (string, error) {
	return rawPrompt, nil
}

func newTestSimulator() *Simulator {
	return NewSimulator(stubEnricher{}, "sk-test", "gpt-realtime", logger.NewNop())
}

func TestSimulateRegistersSession(t *testing.T) {
	s := newTestSimulator()

	resp, err := s.Simulate(context.Background(), models.CallSubmission{
		Name:        "Ana",
		Destination: "+15555550123",
		Prompt:      "say hi",
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if !resp.OK || resp.CallSID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if _, ok := s.sessions[resp.CallSID]; !ok {
		t.Fatal("expected the session registered under the call id")
	}
}

func TestSimulateSweepsExpiredSessions(t *testing.T) {
	s := newTestSimulator()

	s.sessions["stale"] = &session{
		Instructions: "old",
		Model:        s.model,
		CreatedAt:    time.Now().Add(-2 * sessionTTL),
	}

	resp, err := s.Simulate(context.Background(), models.CallSubmission{
		Name:        "Ana",
		Destination: "+15555550123",
		Prompt:      "say hi",
	})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if _, ok := s.sessions["stale"]; ok {
		t.Fatal("expected the expired session swept")
	}
	if _, ok := s.sessions[resp.CallSID]; !ok {
		t.Fatal("expected the fresh session kept")
	}
}

func TestHandleWebSocketRejectsExpiredSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newTestSimulator()

	s.sessions["stale"] = &session{
		Instructions: "old",
		Model:        s.model,
		CreatedAt:    time.Now().Add(-2 * sessionTTL),
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/local-call/ws/stale", nil)
	c.Params = gin.Params{{Key: "call_id", Value: "stale"}}

	s.HandleWebSocket(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an expired session, got %d", w.Code)
	}
	if _, ok := s.sessions["stale"]; ok {
		t.Fatal("expected the expired session deleted")
	}
}
