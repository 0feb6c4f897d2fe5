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

	"github.com/parsamap/raahgir/internal/raah"
	"github.com/parsamap/raahgir/internal/revproxy"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reverse-geocoding proxy",
		Long: `Start the HTTP front that proxies reverse-geocoding lookups to the
upstream service, passing its status codes through.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides RAAHGIR_LISTEN_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = a.cfg.ListenAddr
	}

	upstream := a.cfg.ReverseBaseURL
	if upstream == "" {
		upstream = raah.DefaultReverseBaseURL
	}

	handler, err := revproxy.New(revproxy.Config{
		UpstreamBaseURL: upstream,
		Timeout:         a.cfg.ReverseTimeout,
		Logger:          a.log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("proxy listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
