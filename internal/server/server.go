// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"better-call/internal/auth"
	"better-call/internal/call"
	"better-call/internal/payment"
	"better-call/internal/relay"
	"better-call/internal/store"
	"better-call/pkg/logger"
)

// Deps collects everything the HTTP surface needs. All of it is constructed
// once at startup and injected; handlers hold no ambient state.
type Deps struct {
	Auth          *auth.Auth
	Store         store.Store
	Calls         *call.Service
	Payments      *payment.Service
	Relay         *relay.Simulator
	WebhookSecret string
}

type Server struct {
	server *http.Server
	logger *logger.Logger
}

func New(port string, deps Deps, l *logger.Logger) *Server {
	router := NewRouter(deps, l)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server: httpServer,
		logger: l,
	}
}

// NewRouter builds the gin engine; split from New so tests can drive it
// through httptest.
func NewRouter(deps Deps, l *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	h := &handlers{deps: deps, logger: l}

	router.GET("/api/health", h.health)

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.GET("/credits", auth.Middleware(deps.Auth), h.credits)
	}

	callGroup := router.Group("/api", auth.Middleware(deps.Auth))
	{
		callGroup.POST("/call", h.submitCall)
		callGroup.GET("/call/last", h.lastCall)
	}

	payGroup := router.Group("/payments")
	{
		payGroup.POST("/create", auth.Middleware(deps.Auth), h.createPayment)
		payGroup.POST("/webhook", h.stripeWebhook)
		payGroup.GET("/status", h.paymentStatus)
	}

	if deps.Relay != nil {
		router.POST("/api/local-call/simulate", h.simulateCall)
		router.GET("/api/local-call/ws/:call_id", deps.Relay.HandleWebSocket)
	}

	return router
}

func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
