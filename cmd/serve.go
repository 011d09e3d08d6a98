package cmd

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

	"github.com/abhisek/vitalq/internal/analysis"
	"github.com/abhisek/vitalq/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assessment HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}
		interval, _ := cmd.Flags().GetDuration("handoff-retry")

		var opts depsOptions
		if path, _ := cmd.Flags().GetString("handoff-file"); path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open handoff file: %w", err)
			}
			defer f.Close()
			opts.handoff = analysis.NewJSONGenerator(f)
		}

		d, err := openDeps(ctx, cfg, opts)
		if err != nil {
			return err
		}
		defer d.Close()

		go d.dispatcher.Run(ctx, interval)

		srv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: server.NewHandler(d.engine,
				server.WithHealth(d.store),
				server.WithMetricsHandler(d.metrics.Handler()),
				server.WithLogger(d.log)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			d.log.Info("listening", "addr", srv.Addr, "questions", d.catalog.Len())
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		d.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.log.Warn("graceful shutdown did not complete", "err", err)
			return srv.Close()
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides VITALQ_HTTP_ADDR)")
	serveCmd.Flags().String("handoff-file", "", "Append completed assessments as JSON lines to this file")
	serveCmd.Flags().Duration("handoff-retry", time.Minute, "Interval for retrying undelivered hand-offs")
}
