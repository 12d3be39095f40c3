package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stocklaabh/verify-api/internal/application/verification"
	"github.com/stocklaabh/verify-api/internal/config"
	"github.com/stocklaabh/verify-api/internal/domain"
	"github.com/stocklaabh/verify-api/internal/infrastructure/bulksms"
	"github.com/stocklaabh/verify-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/stocklaabh/verify-api/internal/infrastructure/jwt"
	"github.com/stocklaabh/verify-api/internal/infrastructure/memstore"
	"github.com/stocklaabh/verify-api/internal/infrastructure/postgres"
	"github.com/stocklaabh/verify-api/internal/infrastructure/smtp"
	snsinfra "github.com/stocklaabh/verify-api/internal/infrastructure/sns"
	"github.com/stocklaabh/verify-api/internal/infrastructure/webhook"
	"github.com/stocklaabh/verify-api/internal/metrics"
	transporthttp "github.com/stocklaabh/verify-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// OTP store backend.
	var store verification.CodeStore
	switch cfg.OTPStore {
	case "dynamo":
		client := dynamo.NewClient(cfg)
		dynamo.Bootstrap(context.Background(), client, cfg.DynamoTableCodes)
		store = dynamo.NewStore(client, cfg.DynamoTableCodes)
	case "postgres":
		if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()
		store = postgres.NewStore(db)
	default:
		store = memstore.New()
	}

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SMS provider.
	var smsSender verification.SMSSender
	if cfg.SMSProvider == "sns" {
		sender, err := snsinfra.NewSender(cfg)
		if err != nil {
			log.Fatalf("sns sender: %v", err)
		}
		smsSender = sender
	} else {
		smsSender = bulksms.NewSender(cfg)
	}

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available, verification routes are open: %v", err)
	}

	// Completion webhook (optional).
	var onComplete func(*domain.VerificationSession)
	if cfg.CompletionWebhookURL != "" {
		onComplete = webhook.NewNotifier(cfg.CompletionWebhookURL).SessionCompleted
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	verifySvc := verification.NewService(
		verification.Deps{
			Store:   store,
			Mailer:  mailer,
			SMS:     smsSender,
			Metrics: collector,
		},
		verification.Options{
			CodeTTL:        cfg.OTPTTL,
			ResendCooldown: cfg.ResendCooldown,
			SessionIdleTTL: cfg.SessionIdleTTL,
			OnComplete:     onComplete,
		},
	)
	defer verifySvc.Close()

	deps := &transporthttp.Deps{
		Verification: verifySvc,
		JWTProvider:  jwtProvider,
	}

	router := transporthttp.NewRouter(cfg, deps, registry)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s, sms=%s)",
			cfg.AppPort, cfg.AppEnv, cfg.OTPStore, cfg.SMSProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
