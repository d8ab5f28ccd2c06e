package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/toolaudit/internal/adapters/http/api"
	"github.com/okian/toolaudit/internal/adapters/repository"
	"github.com/okian/toolaudit/internal/config"
	"github.com/okian/toolaudit/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve <sqlite-db>",
		Short: "Serve stored audit runs over HTTP",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx, configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if err := logger.SetLevelString(cfg.LogLevel); err != nil {
				return err
			}

			st, err := repository.Open(ctx, args[0])
			if err != nil {
				return err
			}
			defer st.Close()

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Addr, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving %s on %s\n", st.Path(), ln.Addr())
			return serve(ctx, newHTTPServer(ctx, st), ln)
		},
	}
	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file (default $TOOLAUDIT_CONFIG)")
	f.StringVar(&addr, "addr", "", "listen address (default from config, :9080)")
	return cmd
}

// newHTTPServer builds the results API server over deps.
func newHTTPServer(ctx context.Context, deps api.Dependencies) *http.Server {
	mux := http.NewServeMux()
	api.NewServer(deps).Register(ctx, mux)
	return &http.Server{
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// serve runs srv on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	log := logger.Named("http")
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info(ctx, "server stopped")
	return nil
}
