// btctl is the operator CLI for the Braintree donations service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/givestack/braintree-donations/config"
	"github.com/givestack/braintree-donations/internal/adapters/braintree"
	"github.com/givestack/braintree-donations/internal/adapters/postgres"
	"github.com/givestack/braintree-donations/internal/core/domain"
	"github.com/givestack/braintree-donations/internal/core/service"
	"github.com/givestack/braintree-donations/internal/platform/logger"
)

var Version = "dev"

var (
	envFlag  string
	jsonFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "btctl",
		Short:         "btctl - operate the Braintree donation gateway",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "", "Braintree environment (test, live); defaults to the site's test mode")
	rootCmd.PersistentFlags().BoolVarP(&jsonFlag, "json", "j", false, "Output as JSON")

	// Add subcommands
	rootCmd.AddCommand(plansCmd())
	rootCmd.AddCommand(merchantAccountCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(refundCmd())
	rootCmd.AddCommand(subscriptionCmd())
	rootCmd.AddCommand(linksCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the dependencies a command needs.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	db       *gorm.DB
	store    *postgres.Store
	settings *postgres.SettingsStore
	resolver *service.CredentialResolver
	admin    *service.AdminService
}

func newApp() (*app, error) {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	log, err := logger.New(cfg.Server.LogLevel, "release")
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	db, err := postgres.Open(cfg.Database.URL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := postgres.NewStore(db)
	settings := postgres.NewSettingsStore(db)
	resolver := service.NewCredentialResolver(settings, braintree.NewFactory(cfg.Braintree.HTTPTimeout, log), log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		store:    store,
		settings: settings,
		resolver: resolver,
		admin:    service.NewAdminService(resolver, settings, store, store, log),
	}, nil
}

// environment returns the --env flag, or the site's active environment.
func (a *app) environment(cmd *cobra.Command) (domain.Environment, error) {
	switch domain.Environment(envFlag) {
	case domain.EnvironmentTest, domain.EnvironmentLive:
		return domain.Environment(envFlag), nil
	case "":
		return service.ActiveEnvironment(cmd.Context(), a.settings)
	}
	return "", fmt.Errorf("unknown environment %q (want test or live)", envFlag)
}
