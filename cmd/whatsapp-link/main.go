// Command whatsapp-link pairs the WhatsApp linked-device session used by
// WHATSAPP_DRIVER=device. Scan the printed QR code from the phone.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"temporada/internal/cli"
	"temporada/internal/config"
	applog "temporada/internal/log"
	"temporada/internal/notify/device"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, applog.ComponentNotify)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	c, err := device.Open(ctx, cfg.WhatsAppDeviceDir, cli.DeviceLogger(cfg))
	if err != nil {
		logger.Error("Failed to open device session", applog.FieldError, err, "dir", cfg.WhatsAppDeviceDir)
		os.Exit(1)
	}
	defer c.Close()

	if c.Paired() {
		logger.Info("Device already paired", "dir", cfg.WhatsAppDeviceDir)
		return
	}
	if err := c.Pair(ctx, os.Stdout); err != nil {
		logger.Error("Pairing failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Device paired", "dir", cfg.WhatsAppDeviceDir)
}
