package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"newsdesk/app"
	"newsdesk/config"
	"newsdesk/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "newsdesk",
	Short: "Per-client news ingestion, enrichment and delivery",
	Long: `newsdesk fetches news for every client in the registry on the client's own
schedule, optionally labels topic sentences with sentiment, and delivers the
day's articles to the client's queue, bucket or topic.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml)")
	rootCmd.AddCommand(serveCmd, runCmd, scheduleCmd)
}

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadContainer reads configuration and builds the dependency container
func loadContainer() (*app.Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	return app.New(cfg, log), nil
}
