package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"temporada/internal/amqp"
	"temporada/internal/auth"
	"temporada/internal/cli"
	"temporada/internal/config"
	apphttp "temporada/internal/http"
	applog "temporada/internal/log"
	"temporada/internal/message"
	"temporada/internal/notify"
	"temporada/internal/notify/device"
	"temporada/internal/receipt"
	"temporada/internal/report"
	"temporada/internal/services"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "hash-password:", err)
			os.Exit(1)
		}
		return
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(config.Load(), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg)
	defer repo.Close()

	ctx := context.Background()

	var sender notify.Sender
	var deviceClient *device.Client
	switch cfg.WhatsAppDriver {
	case "device":
		c, err := device.Open(ctx, cfg.WhatsAppDeviceDir, cli.DeviceLogger(cfg))
		if err != nil {
			logger.Error("Failed to open WhatsApp device session", applog.FieldError, err)
			os.Exit(1)
		}
		if !c.Paired() {
			logger.Warn("WhatsApp device not paired: run whatsapp-link; sends will fail until then")
		}
		deviceClient, sender = c, c
	default:
		sender = notify.NewSender(cfg, logger)
	}
	dispatcher := notify.NewDispatcher(sender, cfg.WhatsAppTimeout, logger)
	logger.Info("WhatsApp notifier ready", applog.FieldMode, dispatcher.Mode())

	// The publisher stays a nil interface when AMQP is off.
	var events services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, reservation events disabled", applog.FieldError, err)
		} else {
			amqpClient, events = c, c
		}
	}

	attribution, err := report.ParseAttribution(cfg.ReportAttribution)
	if err != nil {
		logger.Error("Invalid report attribution", applog.FieldError, err)
		os.Exit(1)
	}
	policy := report.Policy{IncludeCancelled: cfg.ReportIncludeCancelled, Attribution: attribution}

	unknown := message.PassThrough
	if cfg.TemplateStrict {
		unknown = message.Reject
	}
	engine := message.NewEngine(unknown)

	reports := services.NewReportService(repo, policy, cfg.ReportCacheTTL, logger)
	reservations := services.NewReservationService(services.ReservationDeps{
		Store:     repo,
		Log:       repo,
		Templates: repo,
		Engine:    engine,
		Notifier:  dispatcher,
		Events:    events,
		Reports:   reports,
		Logger:    logger,
	})
	guests := services.NewGuestService(repo, events, reports, logger)
	templates := services.NewTemplateService(repo, engine, logger)

	receipts, err := receipt.NewRenderer(cfg.PropertyName,
		receipt.RodPrinter{Bin: cfg.ChromeBin, NoSandbox: cfg.Hosted},
		cfg.ReceiptTimeout, logger)
	if err != nil {
		logger.Warn("Receipts disabled", applog.FieldError, err)
		receipts = nil
	}

	authenticator, err := auth.New(auth.Config{
		Username:     cfg.AdminUsername,
		Password:     cfg.AdminPassword,
		PasswordHash: cfg.AdminPasswordHash,
		Secret:       cfg.SecretKey,
		TTL:          cfg.SessionTTL,
		SecureCookie: cfg.CookieSecure,
	})
	if err != nil {
		logger.Error("Failed to configure authentication", applog.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Config:       cfg,
		Auth:         authenticator,
		Store:        repo,
		Reservations: reservations,
		Guests:       guests,
		Reports:      reports,
		Templates:    templates,
		Receipts:     receipts,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.LogError(ctx, "Server shutdown error", err, applog.OpShutdown)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if deviceClient != nil {
			deviceClient.Close()
		}
	})

	logger.Info("Starting temporada server",
		"port", cfg.Port,
		"property", cfg.PropertyName,
		applog.FieldMode, dispatcher.Mode(),
		"amqp", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// hashPassword prints a bcrypt hash for ADMIN_PASSWORD_HASH. The password
// comes from the first argument or a line on stdin.
func hashPassword(args []string) error {
	var password string
	if len(args) > 0 {
		password = args[0]
	} else {
		fmt.Fprint(os.Stderr, "Senha: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return err
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("empty password")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
