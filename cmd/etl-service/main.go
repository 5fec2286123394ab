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

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/config"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/kafka"
	"github.com/synaptica-ai/warehouse-etl/pkg/common/logger"
	"github.com/synaptica-ai/warehouse-etl/pkg/observability/metrics"
	"github.com/synaptica-ai/warehouse-etl/pkg/pipeline"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "etl-service",
		Short:         "Hospital warehouse ETL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init()
		},
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Log.WithError(err).Error("etl-service failed")
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one ETL run and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, config.Load(), dryRun)
			if err != nil {
				return err
			}
			defer a.Close()
			a.ensureRunHistory()

			run, err := a.runner.Run(ctx, pipeline.TriggerCLI)
			if err != nil {
				return err
			}
			totals := run.Totals()
			fmt.Printf("run %s %s: extracted %d rows, inserted %d, conflicts %d, failed %d\n",
				run.ID, run.Status, run.TotalExtracted(), totals.Inserted, totals.Conflicts, totals.Failed)
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "Transform without writing to the warehouse")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the run history table in the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(context.Background(), config.Load(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.runs == nil {
				return errors.New("run history requires the postgres warehouse backend")
			}
			if err := a.runs.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate etl_runs: %w", err)
			}
			logger.Log.Info("Run history table ready")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API and listen for triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(config.Load())
		},
	}
}

func serve(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.runs != nil {
		if err := a.runs.AutoMigrate(); err != nil {
			return fmt.Errorf("migrate etl_runs: %w", err)
		}
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", a.readyCheck).Methods(http.MethodGet)
	router.HandleFunc("/metrics", metrics.Handler).Methods(http.MethodGet)
	pipeline.NewHandler(a.runner, a.runStore()).Register(router.PathPrefix("/api/v1").Subrouter())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("ETL Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	if len(cfg.KafkaBrokers) > 0 && cfg.TriggerTopic != "" {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.TriggerTopic, cfg.KafkaGroupID)
		defer consumer.Close()
		go func() {
			if err := consumer.Consume(ctx, pipeline.TriggerHandler(a.runner)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("Trigger consumer stopped")
			}
		}()
	}

	if cfg.ScheduleInterval > 0 {
		go schedule(ctx, a.runner, cfg.ScheduleInterval)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down ETL Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	a.runner.Wait()

	logger.Log.Info("ETL Service stopped")
	return nil
}

func schedule(ctx context.Context, runner *pipeline.Runner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", interval.String()).Info("Scheduled runs enabled")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := runner.Enqueue(ctx, pipeline.TriggerSchedule); err != nil {
				logger.Log.WithError(err).Warn("Scheduled run not started")
			}
		}
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}
