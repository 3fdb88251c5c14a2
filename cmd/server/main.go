// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"better-call/config"
	"better-call/internal/auth"
	"better-call/internal/call"
	"better-call/internal/enrich"
	"better-call/internal/payment"
	"better-call/internal/relay"
	"better-call/internal/server"
	"better-call/internal/store"
	"better-call/internal/voice"
	"better-call/pkg/logger"
)

func main() {
	l := logger.New()
	l.Info("Starting Better Call...")

	cfg, err := config.Load()
	if err != nil {
		l.Fatal("Failed to load config", err)
	}

	// Validate critical configuration
	if cfg.JWT.Secret == "" {
		l.Fatal("JWT secret is not configured")
	}
	if cfg.Stripe.SecretKey == "" || cfg.Stripe.WebhookKey == "" || cfg.Stripe.PriceID == "" {
		l.Fatal("Stripe configuration is incomplete")
	}
	if cfg.OpenAI.APIKey == "" {
		l.Fatal("OpenAI API key is not configured")
	}
	// Twilio stays optional: a missing configuration surfaces per request
	// as a configuration error with the credit refunded.
	if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
		l.Warn("Twilio credentials are not configured; call placement will fail")
	}

	// Initialize the store with retry
	var db store.Store
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		db, err = store.Open(store.DBConfig{
			Driver: cfg.DB.Driver,
			Path:   cfg.DB.Path,
			Postgres: store.PostgresConfig{
				Host:         cfg.DB.Host,
				Port:         cfg.DB.Port,
				User:         cfg.DB.User,
				Password:     cfg.DB.Password,
				DBName:       cfg.DB.DBName,
				SSLMode:      cfg.DB.SSLMode,
				MaxOpenConns: cfg.DB.MaxOpenConns,
				MaxIdleConns: cfg.DB.MaxIdleConns,
				ConnLifetime: cfg.DB.ConnLifetime,
			},
		})
		if err == nil {
			break
		}
		l.Error("Failed to open store, retrying...", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if err != nil {
		l.Fatal("Failed to open store after multiple attempts", err)
	}
	defer db.Close()

	authSvc := auth.New(cfg.JWT.Secret, cfg.JWT.TokenTTL)

	enricher := enrich.NewClient(cfg.OpenAI.APIKey).WithModel(cfg.OpenAI.Model)

	dialer := voice.NewClient(voice.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
		TwiMLURL:   cfg.Twilio.TwiMLURL,
	})

	payCfg := payment.Config{
		SecretKey:         cfg.Stripe.SecretKey,
		WebhookKey:        cfg.Stripe.WebhookKey,
		PriceID:           cfg.Stripe.PriceID,
		CreditAmountCents: cfg.Stripe.CreditAmountCents,
		Currency:          cfg.Stripe.Currency,
		BaseURL:           cfg.Server.BaseURL,
	}
	payments := payment.NewService(db, payment.NewStripeLinks(payCfg), payCfg, l.Named("payments"))

	calls := call.NewService(db, db, enricher, dialer, payments, cfg.Server.BaseURL, l.Named("calls"))

	simulator := relay.NewSimulator(enricher, cfg.OpenAI.APIKey, cfg.OpenAI.RealtimeModel, l.Named("relay"))

	httpServer := server.New(cfg.Server.Port, server.Deps{
		Auth:          authSvc,
		Store:         db,
		Calls:         calls,
		Payments:      payments,
		Relay:         simulator,
		WebhookSecret: cfg.Stripe.WebhookKey,
	}, l)

	go func() {
		l.Info("Starting HTTP server...")
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Failed to start HTTP server", err)
		}
	}()

	// Wait for termination signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		l.Error("Error during HTTP server shutdown", err)
	}

	l.Info("Server stopped successfully")
}
