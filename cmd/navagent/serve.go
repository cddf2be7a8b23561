package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"navagent/internal/assistant"
	"navagent/internal/httpapi"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr, corsOrigins string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant daemon with its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if corsOrigins != "" {
				cfg.HTTP.CORSOrigins = splitCSV(corsOrigins)
			}
			log, err := opts.logger(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if opts.trace {
				shutdown, err := setupTracing(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer func() { _ = shutdown(context.Background()) }()
			}

			svc, err := newService(cfg, log)
			if err != nil {
				return err
			}
			ctrl := assistant.New(svc, controllerConfig(cfg, log, httpapi.MetricsPublisher{}))
			defer func() {
				if err := ctrl.Close(); err != nil {
					log.Error().Err(err).Msg("close backend")
				}
			}()

			httpapi.SetLogger(log)
			httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
			httpapi.SetCORSOrigins(cfg.HTTP.CORSOrigins)
			httpapi.SetBaseContext(ctx)
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpapi.NewMux(ctrl, svc),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctrl.Start(ctx)

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Str("backend", cfg.Backend).Msg("navagent listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return err
				}
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", os.Getenv("NAVAGENT_ADDR"), "HTTP listen address, e.g. :8080 (overrides config)")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated CORS origins (overrides config)")
	return cmd
}
