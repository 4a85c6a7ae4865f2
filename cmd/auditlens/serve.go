package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hazyhaar/auditlens/pkg/api"
	"github.com/hazyhaar/auditlens/pkg/chassis"
	"github.com/hazyhaar/auditlens/pkg/session"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		addr   string
		useTLS bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit API over HTTP (and HTTP/3 + MCP with --tls)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			cfg, err := loadConfig(globals.configPath, logger)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if useTLS {
				cfg.TLS.Enabled = true
			}
			rulesPath := globals.rulesPath
			if rulesPath == "" {
				rulesPath = cfg.RulesFile
			}
			c, err := loadRules(rulesPath)
			if err != nil {
				return err
			}

			var hist *session.History
			if cfg.HistoryDB != "" {
				if hist, err = session.OpenHistory(cfg.HistoryDB); err != nil {
					return err
				}
				defer hist.Close()
			}

			store := session.NewStore(c, hist, logger)
			router := api.NewRouter(store, api.Options{
				MaxUploadBytes: cfg.MaxUploadMB << 20,
				Logger:         logger,
			})
			logger.Info("rules loaded", "categories", len(c.Categories), "catalogs", len(c.Rules.Catalogs))

			ctx := cmd.Context()
			if cfg.TLS.Enabled {
				return serveChassis(ctx, cfg, router, store)
			}
			return servePlain(ctx, cfg.Addr, router)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&useTLS, "tls", false, "serve TLS, HTTP/3 and MCP over QUIC")
	return cmd
}

func servePlain(ctx context.Context, addr string, handler http.Handler) error {
	logger := newLogger()
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("auditlens listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func serveChassis(ctx context.Context, cfg config, handler http.Handler, store *session.Store) error {
	logger := newLogger()
	var mcpSrv *server.MCPServer
	if cfg.MCP {
		mcpSrv = server.NewMCPServer("auditlens", version, server.WithToolCapabilities(false))
		api.RegisterMCPTools(mcpSrv, store, logger)
	}

	srv, err := chassis.New(chassis.Config{
		Addr:      cfg.Addr,
		CertFile:  cfg.TLS.CertFile,
		KeyFile:   cfg.TLS.KeyFile,
		Handler:   handler,
		MCPServer: mcpSrv,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	err = srv.Start(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return errors.Join(err, srv.Stop(shutdownCtx))
}
