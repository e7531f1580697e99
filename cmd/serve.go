package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/solvmetria/internal/dataset"
	"github.com/sells-group/solvmetria/internal/monitoring"
	"github.com/sells-group/solvmetria/internal/server"
	"github.com/sells-group/solvmetria/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		defaults, err := scoringParams("")
		if err != nil {
			return err
		}

		cache := dataset.NewCache(dataset.NewLoader(cfg.Dataset, nil))
		if _, err := cache.Get(ctx); err != nil {
			// Keep serving: views report "no data" and the next request retries.
			zap.L().Warn("dataset unavailable at startup", zap.Error(err))
		}

		idle := time.Duration(cfg.Server.SessionIdleMinutes) * time.Minute
		sessions := session.NewManager(defaults, idle)
		if idle > 0 {
			go sessions.RunPruner(ctx, idle/4)
		}

		metrics := monitoring.NewMetrics()
		var checker *monitoring.Checker
		if cfg.Monitoring.Enabled {
			checker = monitoring.NewChecker(
				monitoring.NewCollector(cache, defaults, cfg.Monitoring.Concurrency),
				monitoring.NewAlerter(cfg.Monitoring),
				metrics,
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		api := server.New(cfg.Server, server.Deps{
			Datasets: cache,
			Sessions: sessions,
			Metrics:  metrics,
			Checker:  checker,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("dataset", cache.Source()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
