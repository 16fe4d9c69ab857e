package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/habiliai/memoryd/api"
	"github.com/habiliai/memoryd/config"
	"github.com/habiliai/memoryd/internal/mylog"
	"github.com/habiliai/memoryd/memory"
	"github.com/habiliai/memoryd/store"
	"github.com/jcooky/go-din"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const reconcileBatch = 100

func newCmd() *cobra.Command {
	params := &struct {
		Host string
		Port int
	}{}

	cmd := &cobra.Command{
		Use:          "memoryd",
		Short:        "Serve the memory API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := din.NewContainer(cmd.Context(), din.EnvProd)
			defer c.Close()

			cfg := din.MustGetT[*config.ServerConfig](c)
			logger := din.MustGet[*slog.Logger](c, mylog.Key)
			svc := din.MustGetT[*memory.Service](c)
			adapter := din.MustGetT[*store.Adapter](c)

			if cmd.Flags().Changed("host") {
				cfg.Host = params.Host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = params.Port
			}
			logger.Debug("start memoryd", "config", cfg)

			if adapter.GraphEnabled() && cfg.ReconcileInterval > 0 {
				go runReconciler(c, adapter, logger, cfg.ReconcileInterval)
			}

			server := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
				Handler:           api.NewHandler(svc, logger, cfg.CORSOrigins),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext: func(net.Listener) context.Context {
					return c
				},
			}

			go func() {
				<-c.Done()
				if err := server.Shutdown(context.WithoutCancel(c)); err != nil {
					logger.Error("failed to shutdown server", "err", err)
				}
			}()

			logger.Info("server started", "host", cfg.Host, "port", cfg.Port)
			defer logger.Info("server stopped")

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(err, "failed to listen on %s", server.Addr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Host, "host", "", "Host to listen on (overrides HOST)")
	cmd.Flags().IntVarP(&params.Port, "port", "p", 0, "Port to listen on (overrides PORT)")

	cmd.AddCommand(newReconcileCmd())

	return cmd
}

// runReconciler replays the graph outbox until ctx is done.
func runReconciler(ctx context.Context, adapter *store.Adapter, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := adapter.Reconcile(ctx, reconcileBatch)
			if err != nil {
				logger.Warn("failed to reconcile graph outbox", "err", err)
				continue
			}
			if report.Processed > 0 {
				logger.Info("graph outbox reconciled", "processed", report.Processed, "succeeded", report.Succeeded, "failed", report.Failed)
			}
		}
	}
}
