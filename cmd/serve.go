package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-orchestrator/internal/mcpserver"
	"github.com/sells-group/geo-orchestrator/internal/model"
	"github.com/sells-group/geo-orchestrator/internal/ratelimit"
)

// serveCmd exposes the orchestrator as an MCP tool server over stdio,
// grounded on NERVsystems-osmmcp's pkg/server.Server.Run
// (mcpserver.ServeStdio blocking until stdin closes or the process is
// signalled).
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose geocode_batch as an MCP tool server over stdio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv, metricsReg := mcpserver.NewServer(mcpserver.Credentials{
			GoogleAPIKey: cfg.Providers.GoogleAPIKey,
			HEREAPIKey:   cfg.Providers.HEREAPIKey,
			OSMEmail:     cfg.Providers.OSMEmail,
			CountryBias:  cfg.Providers.CountryBias,
		}, cfg.ProviderOrder(), ratelimit.Limits{
			model.ProviderHERE:   cfg.RateLimits.HERE,
			model.ProviderGoogle: cfg.RateLimits.Google,
			model.ProviderOSM:    cfg.RateLimits.OSM,
		})

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: mux}

		zap.L().Info("starting geo-orchestrator MCP server",
			zap.String("name", mcpserver.ServerName),
			zap.String("version", mcpserver.ServerVersion),
			zap.Int("metrics_port", cfg.Server.Port),
		)

		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zap.L().Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()

		errCh := make(chan error, 1)
		go func() {
			errCh <- mcpgo.ServeStdio(srv)
		}()

		select {
		case <-ctx.Done():
			zap.L().Info("shutting down MCP server")
			return nil
		case err := <-errCh:
			if err != nil && err != io.EOF {
				return eris.Wrap(err, "serve: mcp server error")
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
