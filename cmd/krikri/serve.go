package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/jlicht/krikri/internal/mcp"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the MCP server over HTTP (streamable, at /mcp) or stdio.

Enqueueing agents requires Redis; activity lookups only need the store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if mode, _ := cmd.Flags().GetString("transport"); mode != "" {
				cfg.Transport.Mode = mode
			}

			// Keep stdout clean for JSON-RPC in stdio mode.
			logOut := io.Writer(os.Stdout)
			if cfg.Transport.Mode == "stdio" {
				logOut = os.Stderr
			}
			a, err := newApp(cfg, logOut)
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := a.openQueue()
			if err != nil {
				return err
			}
			if cfg.Tracing.Enabled {
				shutdown := installTracing(a)
				defer shutdown()
			}

			server := mcp.NewServer(mcp.Config{
				Services: mcp.Services{
					Dispatcher: a.dispatcher(q),
					Agents:     a.registry,
					Activities: a.activities,
				},
				Harvest:       harvestConfig(cfg.Harvest),
				TransportMode: cfg.Transport.Mode,
				Logger:        a.logger,
			})

			if cfg.Transport.Mode == "stdio" {
				return runStdioMode(a.logger, server.MCP())
			}
			return runHTTPMode(a.logger, server.HTTPHandler(), cfg.Server.Host, cfg.Server.Port)
		},
	}
	cmd.Flags().String("transport", "", "Transport mode: http or stdio (overrides config)")
	return cmd
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) error {
	logger.Info("starting stdio transport")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or the context is canceled.
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}
	return nil
}

func runHTTPMode(logger *slog.Logger, handler http.Handler, host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return waitForShutdown(logger, httpServer, errCh)
}

func waitForShutdown(logger *slog.Logger, server *http.Server, errCh <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
