// Braintree Donations Service
//
// This is the main entry point for the donation processing service.
// It wires up all dependencies and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/givestack/braintree-donations/config"
	"github.com/givestack/braintree-donations/internal/adapters/braintree"
	"github.com/givestack/braintree-donations/internal/adapters/host"
	"github.com/givestack/braintree-donations/internal/adapters/postgres"
	"github.com/givestack/braintree-donations/internal/adapters/redis"
	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/ports"
	"github.com/givestack/braintree-donations/internal/core/service"
	"github.com/givestack/braintree-donations/internal/handlers"
	"github.com/givestack/braintree-donations/internal/platform/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.Server.LogLevel, cfg.Server.GinMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting Braintree Donations Service",
		zap.String("port", cfg.Server.Port),
		zap.String("site", cfg.Site.URL))

	// Validate required configuration
	if err := validateConfig(cfg, log); err != nil {
		log.Fatal("Configuration error", zap.Error(err))
	}

	// Wire up dependencies (manual dependency injection)
	//
	// Infrastructure Layer
	db, err := postgres.Open(cfg.Database.URL, log)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.AutoMigrate(db, log); err != nil {
			log.Fatal("Database migration failed", zap.Error(err))
		}
	}
	store := postgres.NewStore(db)
	settings := postgres.NewSettingsStore(db)

	var (
		customerCache ports.CustomerCache
		ledger        ports.EventLedger
	)
	if cfg.Redis.URL != "" {
		client, err := redis.Connect(cfg.Redis.URL, log)
		if err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		defer client.Close()
		customerCache = redis.NewCustomerCache(client, cfg.Redis.CustomerCacheTTL)
		ledger = redis.NewEventLedger(client)
	} else {
		log.Warn("REDIS_URL not set: customer cache and webhook deduplication disabled")
	}

	var listener ports.EventListener
	if cfg.Host.CallbackURL != "" {
		listener = host.NewClient(cfg.Host.CallbackURL, cfg.Host.CallbackSecret)
	}

	factory := braintree.NewFactory(cfg.Braintree.HTTPTimeout, log)
	site := domain.SiteInfo{Name: cfg.Site.Name, Host: cfg.Site.Host()}

	// Service Layer
	resolver := service.NewCredentialResolver(settings, factory, log)
	plans := service.NewPlanResolver(store, settings)
	provisioner := service.NewProvisioner(store, customerCache, log)

	donationService := service.NewDonationService(
		resolver,
		provisioner,
		plans,
		settings,
		store, // implements ports.DonationStore
		store, // implements ports.DonorStore
		store, // implements ports.SubscriptionStore
		site,
		log,
	)
	webhookService := service.NewWebhookService(
		resolver,
		plans,
		settings,
		store,
		store,
		ledger,
		listener,
		cfg.Redis.WebhookEventTTL,
		log,
	)
	clientConfigService := service.NewClientConfigService(resolver, settings, cfg.Site.Currency, log)
	adminService := service.NewAdminService(resolver, settings, store, store, log)

	// API Layer
	router := handlers.SetupRouter(handlers.Handlers{
		Donations: handlers.NewDonationHandler(donationService, clientConfigService),
		Webhooks:  handlers.NewWebhookHandler(webhookService, log),
		Admin:     handlers.NewAdminHandler(adminService),
	}, cfg.Server.GinMode, cfg.Security.ServiceAPIKey, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// validateConfig checks that required configuration values are set.
func validateConfig(cfg *config.Config, log *zap.Logger) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Security.ServiceAPIKey == "" {
		log.Warn("SERVICE_API_KEY not set: host endpoints will reject every request")
	}
	if cfg.Site.Name == "" {
		log.Warn("SITE_NAME not set: statement descriptors fall back to the site host")
	}
	return nil
}
