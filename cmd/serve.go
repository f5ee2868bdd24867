package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/azamon/support-chat/api"
	"github.com/azamon/support-chat/db"
	"github.com/azamon/support-chat/internal/chat"
	"github.com/azamon/support-chat/internal/config"
	"github.com/azamon/support-chat/internal/conversation"
	"github.com/azamon/support-chat/internal/llm"
	"github.com/azamon/support-chat/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe loads configuration, migrates the database, wires the service
// graph, and serves HTTP until SIGINT or SIGTERM.
func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{
		Level: slog.LevelInfo,
		JSON:  cfg.IsProduction(),
	})
	slog.SetDefault(logger)

	logger.Info("starting support-chat server",
		"version", AppVersion,
		"environment", cfg.Environment,
		"model", cfg.ModelName)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	store := conversation.New(conversation.NewPGQuerier(pool), cfg.MaxMessageLength, logger)

	generator, err := llm.NewGenerator(ctx, cfg.GeminiAPIKey, cfg.ModelName, llm.Options{
		Timeout:       cfg.LLMTimeout(),
		HistoryWindow: cfg.MaxHistoryMessages,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating reply generator: %w", err)
	}

	service := chat.NewService(store, generator, 0, logger)

	server := api.NewServer(service, store, pool, logger, api.Options{
		ExposeDetails: !cfg.IsProduction(),
	})

	return server.Run(ctx, fmt.Sprintf(":%d", cfg.Port))
}
