package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"sjsage522/couponwatcher/config"
	"sjsage522/couponwatcher/helpers"
	"sjsage522/couponwatcher/internal/metrics"
	"sjsage522/couponwatcher/internal/store"
	"sjsage522/couponwatcher/internal/workflow"
	"sjsage522/couponwatcher/logger"
	werrors "sjsage522/couponwatcher/pkg/errors"
	"sjsage522/couponwatcher/services/worker"
)

// CommandUpdate is the chat command that triggers an update run
const CommandUpdate = "sl-update"

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "couponwatcher",
		Short:         "Report the latest game update post and its coupon code",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.LoadConfig()
			if err := cfg.Validate(); err != nil {
				logger.Default.Error().Err(err).Msg("Invalid configuration")
				return werrors.NewConfiguration("invalid configuration", err)
			}
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   CommandUpdate,
			Short: "Fetch the latest update post once and look for a coupon code",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runUpdate(cmd.Context(), cfg, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "watch",
			Short: "Run the update check on a fixed interval",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWatch(cmd.Context(), cfg, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the stored latest post record",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStatus(cfg, cmd.OutOrStdout())
			},
		},
	)

	return root
}

// runUpdate handles one sl-update trigger
func runUpdate(ctx context.Context, cfg *config.Config, out io.Writer) error {
	deps, err := initializeServices(ctx, cfg, CommandUpdate, out)
	if err != nil {
		logger.Default.Error().Err(err).Msg("Failed to initialize services")
		return err
	}
	defer deps.Cleanup()

	res := newWorkflow(cfg, deps).Handle(ctx, deps.Emitter)
	return res.Err
}

// runWatch repeats the update run until ctx is canceled
func runWatch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	log := logger.Default

	deps, err := initializeServices(ctx, cfg, CommandUpdate, out)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		return err
	}
	defer deps.Cleanup()

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
	} else if cfg.IsProduction() {
		log.Warn().Msg("METRICS_ADDR is not set, metrics are not exported")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("interval", cfg.WatchInterval).
		Msg("Starting update watcher")

	w := worker.NewWorker(
		ctx,
		newWorkflow(cfg, deps, workflow.WithObserver(recorder)),
		deps.Emitter,
		deps.Publisher,
		helpers.NewLogger(cfg.ErrorLogFile),
		cfg.WatchInterval,
	)
	err = w.Start()

	log.Info().Msg("Shutting down gracefully...")
	return err
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// runStatus prints the stored record as JSON
func runStatus(cfg *config.Config, out io.Writer) error {
	rec, err := store.NewFileStore(cfg.RecordFile).LoadRecord()
	if errors.Is(err, store.ErrNoRecord) {
		fmt.Fprintln(out, "No update has been recorded yet")
		return nil
	}
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}
