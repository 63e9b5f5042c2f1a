package admin

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/lessonlens/internal/config"
)

// WorkerCmd returns the worker command
func WorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the pipeline worker without the HTTP API",
		Long:  "Claim and process queued embedding and concept jobs until interrupted",
		RunE:  runWorker,
	}

	cmd.Flags().IntP("concurrency", "c", 0, "Number of concurrent job loops (defaults to LESSONLENS_WORKER_CONCURRENCY)")

	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c, _ := cmd.Flags().GetInt("concurrency"); c > 0 {
		cfg.WorkerConcurrency = c
	}

	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	shutdownTelemetry := setupTelemetry(cfg, log)
	defer shutdownTelemetry()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	a.newWorker().Start(ctx)

	log.Info("worker exited")
	return nil
}
