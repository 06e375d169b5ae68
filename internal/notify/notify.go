// Package notify delivers reservation messages over WhatsApp.
//
// A Sender performs one delivery. The Cloud API client talks to Meta's Graph
// API, the Simulator only logs, and the linked-device driver lives in
// notify/device. The Dispatcher bounds every send with a timeout and maps
// failures onto core.ExternalServiceError.
package notify

import (
	"context"
	"strings"
	"time"

	"temporada/internal/core"
	applog "temporada/internal/log"
)

// Delivery modes, recorded in the notification log.
const (
	ModeCloud     = "cloud"
	ModeDevice    = "device"
	ModeSimulated = "simulated"
)

// Result describes a delivery accepted by a Sender.
type Result struct {
	Mode      string
	MessageID string
	Simulated bool
	SentAt    time.Time
}

// Sender delivers a text message to a digits-only phone number.
type Sender interface {
	Send(ctx context.Context, phone, body string) (Result, error)
	Mode() string
}

// Simulator accepts every message without any network call.
type Simulator struct {
	logger *applog.Logger
	now    func() time.Time
}

func NewSimulator(logger *applog.Logger) *Simulator {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Simulator{logger: logger.WithComponent(applog.ComponentNotify), now: time.Now}
}

func (s *Simulator) Mode() string { return ModeSimulated }

func (s *Simulator) Send(ctx context.Context, phone, body string) (Result, error) {
	s.logger.InfoContext(ctx, "WhatsApp message simulated",
		applog.FieldPhone, phone,
		applog.FieldMode, ModeSimulated,
		"body", body)
	return Result{Mode: ModeSimulated, Simulated: true, SentAt: s.now()}, nil
}

// Dispatcher wraps a Sender with input checks, a timeout and error mapping.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *applog.Logger
}

func NewDispatcher(sender Sender, timeout time.Duration, logger *applog.Logger) *Dispatcher {
	if logger == nil {
		logger = applog.Discard()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sender: sender, timeout: timeout, logger: logger.WithComponent(applog.ComponentNotify)}
}

// Mode reports the delivery mode of the underlying sender.
func (d *Dispatcher) Mode() string { return d.sender.Mode() }

// Simulated reports whether messages are only logged.
func (d *Dispatcher) Simulated() bool { return d.sender.Mode() == ModeSimulated }

// Dispatch sends body to phone. Provider failures and timeouts are returned
// as *core.ExternalServiceError.
func (d *Dispatcher) Dispatch(ctx context.Context, phone, body string) (Result, error) {
	phone = core.Digits(phone)
	if phone == "" {
		return Result{}, &core.ValidationError{Field: "phone", Message: "telefone de destino vazio"}
	}
	if strings.TrimSpace(body) == "" {
		return Result{}, &core.ValidationError{Field: "body", Message: "mensagem vazia"}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res, err := d.sender.Send(ctx, phone, body)
	if err != nil {
		d.logger.LogError(ctx, "WhatsApp send failed", err, applog.OpNotify,
			applog.FieldPhone, phone,
			applog.FieldMode, d.sender.Mode(),
			applog.FieldDuration, time.Since(start).Milliseconds())
		return Result{}, &core.ExternalServiceError{Service: "whatsapp", Err: err}
	}
	if res.Mode == "" {
		res.Mode = d.sender.Mode()
	}
	if res.SentAt.IsZero() {
		res.SentAt = time.Now()
	}

	d.logger.InfoContext(ctx, "WhatsApp message dispatched",
		applog.FieldPhone, phone,
		applog.FieldMode, res.Mode,
		applog.FieldMessageID, res.MessageID,
		applog.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}
