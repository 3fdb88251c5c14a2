// internal/relay/relay.go
package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"better-call/internal/call"
	"better-call/internal/models"
	"better-call/pkg/logger"
)

const realtimeURL = "wss://api.openai.com/v1/realtime"

// sessionTTL bounds how long a registered session waits for its websocket;
// clients that never connect would otherwise leak map entries.
const sessionTTL = 5 * time.Minute

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type session struct {
	Instructions string
	Model        string
	Destination  string
	CreatedAt    time.Time
}

// Simulator is the local test harness: instead of dialing Twilio it hands
// the browser a websocket that is piped straight into the OpenAI realtime
// API. No credits are charged on this path.
type Simulator struct {
	enricher call.Enricher
	apiKey   string
	model    string
	logger   *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSimulator(enricher call.Enricher, apiKey, model string, l *logger.Logger) *Simulator {
	return &Simulator{
		enricher: enricher,
		apiKey:   apiKey,
		model:    model,
		logger:   l,
		sessions: make(map[string]*session),
	}
}

// Simulate registers a session for the request and returns the local
// websocket URL to connect to.
func (s *Simulator) Simulate(ctx context.Context, req models.CallSubmission) (*models.CallResponse, error) {
	prompt := req.Prompt
	if enriched, err := s.enricher.EnrichPrompt(ctx, req.Name, req.Prompt); err != nil {
		s.logger.Warnw("prompt enrichment failed for simulation, using raw prompt", "error", err)
	} else {
		prompt = enriched
	}

	callID := uuid.NewString()

	s.mu.Lock()
	s.sweepExpiredLocked()
	s.sessions[callID] = &session{
		Instructions: prompt,
		Model:        s.model,
		Destination:  req.Destination,
		CreatedAt:    time.Now(),
	}
	s.mu.Unlock()

	return &models.CallResponse{
		OK:      true,
		CallSID: callID,
		To:      req.Destination,
		Details: map[string]any{
			"simulated":     true,
			"websocket_url": fmt.Sprintf("/api/local-call/ws/%s", callID),
		},
	}, nil
}

// HandleWebSocket upgrades the client connection, dials the realtime API
// and relays frames in both directions until either side closes.
func (s *Simulator) HandleWebSocket(c *gin.Context) {
	callID := c.Param("call_id")

	s.mu.Lock()
	sess, ok := s.sessions[callID]
	if ok && time.Since(sess.CreatedAt) > sessionTTL {
		delete(s.sessions, callID)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Call session not found"})
		return
	}

	clientConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer clientConn.Close()

	upstream, err := s.dialRealtime(sess)
	if err != nil {
		s.logger.Errorw("failed to connect to realtime API", "call_id", callID, "error", err)
		_ = clientConn.WriteJSON(gin.H{"type": "error", "error": "Failed to connect to realtime API"})
		return
	}
	defer upstream.Close()

	_ = clientConn.WriteJSON(gin.H{"type": "call_started", "call_id": callID})

	// Two independent forwarding directions with no ordering guarantee
	// between them; the first error on either side shuts down both.
	errc := make(chan error, 2)
	go forward(upstream, clientConn, errc)
	go forward(clientConn, upstream, errc)
	<-errc

	s.mu.Lock()
	delete(s.sessions, callID)
	s.mu.Unlock()
}

// sweepExpiredLocked drops sessions past their TTL. Callers hold s.mu.
func (s *Simulator) sweepExpiredLocked() {
	for id, sess := range s.sessions {
		if time.Since(sess.CreatedAt) > sessionTTL {
			delete(s.sessions, id)
		}
	}
}

func (s *Simulator) dialRealtime(sess *session) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s?model=%s", realtimeURL, sess.Model), header)
	if err != nil {
		return nil, err
	}

	update := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"instructions": sess.Instructions,
			"modalities":   []string{"text", "audio"},
		},
	}
	if err := conn.WriteJSON(update); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func forward(dst, src *websocket.Conn, errc chan<- error) {
	for {
		msgType, msg, err := src.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if err := dst.WriteMessage(msgType, msg); err != nil {
			errc <- err
			return
		}
	}
}
