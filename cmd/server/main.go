package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/andy6609/chattalk-server/internal/chat"
	"github.com/andy6609/chattalk-server/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.FromEnv()

	cmd := &cobra.Command{
		Use:          "chattalk-server",
		Short:        "Multi-client PlainTalk chat relay over TCP and Unix sockets",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.TCPAddr, "addr", cfg.TCPAddr, "TCP listen address (empty disables)")
	f.StringVar(&cfg.UnixPath, "socket", cfg.UnixPath, "Unix socket path, removed before bind (empty disables)")
	f.StringVar(&cfg.WebSocketAddr, "ws-addr", cfg.WebSocketAddr, "WebSocket listen address serving /chat (empty disables)")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (empty disables)")
	f.IntVar(&cfg.MaxFieldSize, "max-field-size", cfg.MaxFieldSize, "Largest protocol field accepted, in bytes")
	f.IntVar(&cfg.HubBuffer, "hub-buffer", cfg.HubBuffer, "Hub event channel capacity")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")

	return cmd
}

func run(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	srv := chat.NewServer(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		return err
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal", "signal", sig.String())

	if metricsSrv != nil {
		_ = metricsSrv.Close()
	}
	srv.Stop()
	return nil
}
