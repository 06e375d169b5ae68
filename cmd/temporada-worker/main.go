package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"temporada/internal/amqp"
	"temporada/internal/cli"
	"temporada/internal/config"
	applog "temporada/internal/log"
	"temporada/internal/report"
	"temporada/internal/sheets"
	gsheet "temporada/internal/sheets/google"
	mem "temporada/internal/sheets/memory"
	"temporada/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(config.Load(), applog.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting temporada-worker")

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	var mirror sheets.Mirror
	var dryRun *mem.Store
	if cfg.SheetsEnabled() {
		c, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:     cfg.GoogleSpreadsheetID,
			ReportSheet:       cfg.GoogleReportSheet,
			ReservationsSheet: cfg.GoogleReservationsSheet,
			CredentialsJSON:   cfg.GoogleServiceAccountJSON,
			CredentialsFile:   cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		mirror = c
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		dryRun = mem.New()
		mirror = dryRun
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided; mirroring in memory")
	}

	attribution, err := report.ParseAttribution(cfg.ReportAttribution)
	if err != nil {
		logger.Error("Invalid report attribution", applog.FieldError, err)
		os.Exit(1)
	}
	w := worker.NewMirrorWorker(repo, mirror, report.Policy{
		IncludeCancelled: cfg.ReportIncludeCancelled,
		Attribution:      attribution,
	}, logger)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - relying on periodic sync", "interval", cfg.SyncInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx, cfg.SyncInterval)
	})
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.Consume(gctx, w.HandleEvent)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if dryRun != nil {
		logger.Info("In-memory mirror state",
			"report_rows", len(dryRun.Report()),
			"reservation_rows", len(dryRun.Reservations()),
			"writes", dryRun.Writes())
	}
	logger.Info("Worker stopped gracefully", "syncs", w.Syncs())
}
