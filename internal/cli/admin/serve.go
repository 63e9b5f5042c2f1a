package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/lessonlens/internal/config"
	"github.com/cloo-solutions/lessonlens/internal/database"
	"github.com/cloo-solutions/lessonlens/internal/jobs"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and pipeline worker",
		Long:  "Start the lessonlens HTTP API on the specified port together with the job worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Serve HTTP only; run workers separately")
	cmd.Flags().String("migrations-dir", defaultMigrationsDir, "Directory holding the SQL migrations")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	shutdownTelemetry := setupTelemetry(cfg, log)
	defer shutdownTelemetry()

	if portFlag, _ := cmd.Flags().GetString("port"); cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}

	if noMigrate, _ := cmd.Flags().GetBool("no-migrate"); !noMigrate {
		dir, _ := cmd.Flags().GetString("migrations-dir")
		if err := database.Migrate(cfg.DatabaseURL, dir, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	noWorker, _ := cmd.Flags().GetBool("no-worker")
	if noWorker {
		cfg.WorkerConcurrency = 0
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var worker *jobs.Worker
	if !noWorker {
		worker = a.newWorker()
		go worker.Start(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		log.Error("server failed", "error", err)
	}
	log.Info("shutting down...")

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}
