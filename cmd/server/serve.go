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
	"go.uber.org/zap"

	"github.com/mamadbah2/relaybot/internal/access"
	"github.com/mamadbah2/relaybot/internal/config"
	"github.com/mamadbah2/relaybot/internal/repository/mongodb"
	"github.com/mamadbah2/relaybot/internal/repository/sheets"
	"github.com/mamadbah2/relaybot/internal/scheduler"
	"github.com/mamadbah2/relaybot/internal/server/handlers"
	"github.com/mamadbah2/relaybot/internal/server/router"
	"github.com/mamadbah2/relaybot/internal/service/conversation"
	"github.com/mamadbah2/relaybot/internal/service/journal"
	"github.com/mamadbah2/relaybot/internal/service/relay"
	reportingsvc "github.com/mamadbah2/relaybot/internal/service/reporting"
	telegramsvc "github.com/mamadbah2/relaybot/internal/service/telegram"
	"github.com/mamadbah2/relaybot/internal/targets"
	telegramclient "github.com/mamadbah2/relaybot/pkg/clients/telegram"
	"github.com/mamadbah2/relaybot/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and its HTTP surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, baseLogger, err := opts.bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = baseLogger.Sync() }()
			zap.ReplaceGlobals(baseLogger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, baseLogger)
		},
	}
}

// healthInfo reports live counters to the health endpoint.
type healthInfo struct {
	store    *conversation.SessionStore
	registry *targets.Registry
}

func (h healthInfo) Sessions() int { return h.store.Len() }
func (h healthInfo) Targets() int  { return h.registry.Len() }

func serve(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) error {
	location, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		return err
	}

	registry := targets.Load(cfg.Bot.TargetsFile, logger.Named(baseLogger, "targets"))
	initial, err := access.Load(cfg.Bot.AllowListFile, cfg.Bot.AllowListFailClosed, logger.Named(baseLogger, "access"))
	if err != nil {
		return err
	}
	allowList := access.NewHolder(cfg.Bot.AllowListFile, initial, logger.Named(baseLogger, "access"))

	var sinks []journal.Sink
	var reportSource reportingsvc.Source

	if cfg.MongoDB.URI != "" {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			return err
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		sinks = append(sinks, mongoRepo)
		reportSource = mongoRepo
		baseLogger.Info("mongodb activation journal enabled", zap.String("db", cfg.MongoDB.DBName))
	}

	if cfg.Sheets.SpreadsheetID != "" {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			return err
		}
		sheetJournal := sheets.NewActivationJournal(sheetsRepo, logger.Named(baseLogger, "repo.sheets"))
		sinks = append(sinks, sheetJournal)
		if reportSource == nil {
			reportSource = sheetJournal
		}
		baseLogger.Info("google sheets activation journal enabled")
	}

	var recorder conversation.ActivationRecorder
	if fanout := journal.NewFanout(sinks...); fanout.Len() > 0 {
		recorder = fanout
	} else {
		baseLogger.Warn("no activation journal configured")
	}

	store := conversation.NewSessionStore()
	dispatcher := relay.NewHTTPDispatcher(cfg.Relay, logger.Named(baseLogger, "relay"))
	phrases := conversation.NewPhrasebook(cfg.Bot.Language, cfg.Bot.TargetKind)
	controller := conversation.NewController(store, allowList, registry, dispatcher, recorder, phrases, logger.Named(baseLogger, "conversation"))

	client := telegramclient.NewClient(cfg.Telegram)
	if me, err := client.GetMe(ctx); err != nil {
		baseLogger.Warn("telegram getMe failed", zap.Error(err))
	} else {
		baseLogger.Info("telegram bot identified", zap.String("username", me.Username))
	}

	botSvc := telegramsvc.NewBotService(cfg.Telegram, client, controller, logger.Named(baseLogger, "svc.telegram"))
	defer botSvc.Close()

	var jobs scheduler.Jobs
	if reportSource != nil {
		jobs.ReportSchedule = cfg.Reporting.CronSchedule
		jobs.AdminChatID = cfg.Reporting.AdminChatID
		jobs.Reporter = reportingsvc.NewService(reportSource, location, logger.Named(baseLogger, "svc.reporting"))
		jobs.Notifier = botSvc
	}
	jobs.AllowListSchedule = cfg.Bot.AllowListReloadSchedule
	jobs.AllowList = allowList

	sched := scheduler.NewScheduler(jobs, location, logger.Named(baseLogger, "scheduler"))
	if _, err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	webhookHandler := handlers.NewWebhookHandler(botSvc, healthInfo{store: store, registry: registry}, logger.Named(baseLogger, "handlers.telegram"))
	engine := router.New(webhookHandler, logger.Named(baseLogger, "router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	pollerDone := make(chan struct{})
	switch cfg.Telegram.Mode {
	case config.ModeWebhook:
		close(pollerDone)
		if err := client.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			return err
		}
		baseLogger.Info("telegram webhook registered", zap.String("url", cfg.Telegram.WebhookURL))
	default:
		poller := telegramsvc.NewPoller(client, botSvc, cfg.Telegram.PollTimeout, logger.Named(baseLogger, "poller"))
		go func() {
			defer close(pollerDone)
			if err := poller.Run(ctx); err != nil {
				baseLogger.Error("poller stopped", zap.Error(err))
			}
		}()
	}

	select {
	case <-ctx.Done():
		baseLogger.Info("shutdown signal received")
	case err := <-serverErr:
		baseLogger.Error("http server crashed", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}

	select {
	case <-pollerDone:
	case <-shutdownCtx.Done():
		baseLogger.Warn("poller did not stop before the shutdown deadline")
	}

	return nil
}
