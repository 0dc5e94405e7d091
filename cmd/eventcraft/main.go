// Package main is the entry point for the EventCraft image service. The
// serve command runs the HTTP API; the other commands administer the
// database, providers, users and credits.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"eventcraft/internal/config"
	"eventcraft/internal/database"
	"eventcraft/internal/providers"
)

// rootCmd is the base command; it only groups the subcommands.
var rootCmd = &cobra.Command{
	Use:   "eventcraft",
	Short: "AI event image generation service",
	Long: `EventCraft turns a structured event brief into a finished image or
carousel using third-party text-to-image providers, stores the result in
object storage and charges the user's credits.`,
	SilenceUsage: true,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(creditsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and installs the structured logger: JSON in
// production, text in development.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose || cfg.IsDev() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if !cfg.IsDev() {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	return cfg, nil
}

// openDB connects to PostgreSQL and applies pending migrations.
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newManager builds the provider registry from the catalog and wraps it
// with circuit breakers. observer may be nil.
func newManager(cfg *config.Config, observer providers.Observer) (*providers.Manager, error) {
	catalog, err := providers.LoadCatalog(cfg.ProvidersFile)
	if err != nil {
		return nil, err
	}
	reg := providers.NewRegistry(cfg.DefaultProvider, catalog, providers.Credentials{
		IdeogramKey:        cfg.IdeogramKey,
		IdeogramBaseURL:    cfg.IdeogramBaseURL,
		FalKey:             cfg.FalKey,
		FalBaseURL:         cfg.FalBaseURL,
		HuggingFaceToken:   cfg.HuggingFaceToken,
		HuggingFaceBaseURL: cfg.HuggingFaceBaseURL,
	}, cfg.ProviderRPS)

	slog.Info("image providers initialized",
		"default", reg.DefaultName(),
		"available", reg.Available(),
	)

	return providers.NewManager(reg, providers.BreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.ProviderCooldown,
	}, observer), nil
}

// commandContext returns the command's context, or Background when the
// command was invoked without one (as in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
