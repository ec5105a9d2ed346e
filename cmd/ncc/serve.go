package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nfc-command/ncc/internal/api"
	"github.com/nfc-command/ncc/internal/audit"
	"github.com/nfc-command/ncc/internal/auth"
	"github.com/nfc-command/ncc/internal/command"
	"github.com/nfc-command/ncc/internal/config"
	"github.com/nfc-command/ncc/internal/logging"
	"github.com/nfc-command/ncc/internal/session"
	"github.com/nfc-command/ncc/internal/telegram"
	"github.com/nfc-command/ncc/internal/telemetry"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.Log, flags.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger, nil)
		},
	}
}

// runServe wires the components and blocks until ctx is cancelled or one of
// them fails. bot replaces the live Telegram connection when non-nil.
func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger, bot telegram.BotAPI) error {
	logger.Info("Starting ncc", zap.String("version", version))

	sessions := session.NewManager(cfg.Session.TTL(), cfg.Session.SweepInterval())
	hub := telemetry.NewHub(cfg.Telemetry)

	orch := command.NewOrchestrator(sessions, logger.Named("conversation"))
	orch.SetEventPublisher(hub)
	sessions.OnExpire(orch.SessionExpired)

	var auditLogger *audit.Logger
	if cfg.Audit.Enabled {
		var err error
		auditLogger, err = audit.NewLogger(cfg.Audit)
		if err != nil {
			return err
		}
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logger.Warn("Failed to close audit log", zap.Error(err))
			}
		}()
		orch.SetAuditLogger(auditLogger)
		logger.Info("Audit log opened", zap.String("path", auditLogger.GetFilePath()))
	}

	var server *api.Server
	if cfg.API.Enabled {
		server = api.NewServer(orch, sessions, hub, cfg.API, logger.Named("api"))
		server.SetVersion(version)
		if auditLogger != nil {
			server.SetAuditLogger(auditLogger)
		}
		if cfg.Auth.Enabled {
			verifier, err := auth.NewVerifier(cfg.Auth)
			if err != nil {
				return fmt.Errorf("failed to create token verifier: %w", err)
			}
			server.SetAuthMiddleware(auth.NewMiddleware(verifier))
		}
	}

	if cfg.Telegram.Enabled && bot == nil {
		live, err := telegram.Connect(cfg.Telegram, logger.Named("telegram"))
		if err != nil {
			return err
		}
		bot = live
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sessions.Run(gctx)
		return nil
	})

	if cfg.Telegram.Enabled {
		poller := telegram.NewPoller(bot, orch, cfg.Telegram, logger.Named("telegram"))
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}

	if server != nil {
		g.Go(server.Start)
	}

	// Streams have to close before the HTTP server can drain.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		hub.Stop()
		if server != nil {
			return server.Stop(context.Background())
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
