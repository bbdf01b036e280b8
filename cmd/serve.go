package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/retain-cli/internal/api"
	"github.com/sells-group/retain-cli/internal/monitoring"
	"github.com/sells-group/retain-cli/internal/thresholds"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for risk scoring",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		recal := api.RecalibrateFunc(func(ctx context.Context, dataset string) error {
			return env.Calibrator.Recalibrate(ctx, env.Store, dataset, thresholds.RecalibrateOptions{
				Method:           thresholds.Method(cfg.Thresholds.OptimalMethod),
				CostRatio:        cfg.Thresholds.CostRatio,
				HighPercentile:   cfg.Thresholds.HighPercentile,
				MediumPercentile: cfg.Thresholds.MediumPercentile,
			})
		})

		collector := monitoring.NewCollector(env.Store)

		handler := api.New(env.Store, env.Aggregator, recal, api.Options{
			MaxParallel: cfg.Batch.MaxParallel,
			Metrics:     collector,
		})

		monCfg := cfg.Monitoring
		if len(monCfg.Datasets) == 0 {
			monCfg.Datasets = []string{cfg.Import.DefaultDataset}
		}
		checker := monitoring.NewChecker(collector, monitoring.NewAlerter(monCfg), monCfg)
		go checker.Run(ctx)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})
		handler.Routes(r)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
