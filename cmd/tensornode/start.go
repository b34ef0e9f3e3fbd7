package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/fxnlabs/tensor-node/internal/backend"
	"github.com/fxnlabs/tensor-node/internal/config"
	"github.com/fxnlabs/tensor-node/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func startCommand(log **zap.Logger, cfg **config.Config) *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "Start the node: build execution contexts and serve metrics",
		Action: func(c *cli.Context) error {
			rootLogger := (*log).Named("start")

			banner := figure.NewFigure("tensor node", "", true)
			banner.Print()

			mgr, err := backend.NewManager(*cfg, *log)
			if err != nil {
				rootLogger.Fatal("failed to build backend", zap.Error(err))
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.Handle("/healthz", metrics.Instrument("/healthz", healthzHandler()))
			mux.Handle("/devices", metrics.Instrument("/devices", devicesHandler(mgr, rootLogger)))

			srv := &http.Server{
				Addr:    (*cfg).Metrics.ListenAddress,
				Handler: mux,
			}
			go func() {
				rootLogger.Info("serving metrics", zap.String("address", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					rootLogger.Fatal("metrics server failed", zap.Error(err))
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			sig := <-stop
			rootLogger.Info("shutting down", zap.String("signal", sig.String()))

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				rootLogger.Warn("metrics server shutdown", zap.Error(err))
			}
			if err := mgr.Close(); err != nil {
				rootLogger.Error("backend teardown", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func healthzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// devicesHandler reports the managed devices as JSON for schedulers and
// monitoring.
func devicesHandler(mgr *backend.Manager, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		infos := make([]backend.DeviceInfo, 0, len(mgr.Ordinals()))
		for _, ordinal := range mgr.Ordinals() {
			info, err := mgr.DeviceInfo(ordinal)
			if err != nil {
				log.Error("device info query failed", zap.Int("ordinal", ordinal), zap.Error(err))
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			infos = append(infos, info)
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(infos); err != nil {
			log.Error("failed to encode device info", zap.Error(err))
		}
	})
}
