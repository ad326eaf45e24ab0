package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goliatone/go-leads/httpapi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func serveCmd(loader EnvLoader) *cobra.Command {
	var (
		addr    string
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted. On shutdown the server stops
accepting requests and waits for in-flight notification fan-outs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, loader, addr, migrate)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides LEADS_HTTP__ADDR)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

func runServe(ctx context.Context, loader EnvLoader, addr string, migrate bool) error {
	rt, err := newRuntime(ctx, loader, runtimeOptions{migrate: migrate})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger := rt.logs.GetLogger("leads.http")
	if addr == "" {
		addr = rt.config.HTTP.Addr
	}
	if rt.config.HTTP.JWTSecret == "" {
		logger.Warn("http.jwt_secret is empty; authenticated routes will reject every request")
	}

	router := httpapi.NewRouter(rt.service, httpapi.Options{
		JWTSecret: rt.config.HTTP.JWTSecret,
		Logger:    logger,
		Mount: func(r chi.Router) {
			r.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
		},
	})
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("leads: http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("leads: http shutdown: %w", err)
	}
	if err := rt.service.WaitForDispatches(shutdownCtx); err != nil {
		logger.Warn("pending fan-outs did not finish", "error", err)
	}
	return nil
}
