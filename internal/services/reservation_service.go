package services

import (
	"context"
	"fmt"
	"time"

	"temporada/internal/amqp"
	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/message"
	"temporada/internal/storage"
)

// Outcome is a committed mutation plus the non-fatal problems of its side
// effects, shown to the operator as warnings.
type Outcome struct {
	Reservation  core.Reservation
	Notification *core.Notification
	Warnings     []string
}

func (o *Outcome) warn(msg string) {
	o.Warnings = append(o.Warnings, msg)
}

// CreateInput carries a new reservation. NewGuest, when set, is looked up by
// phone or created in the same transaction and takes precedence over
// Reservation.GuestID.
type CreateInput struct {
	Reservation core.Reservation
	NewGuest    *core.Guest
	Notify      bool
}

type ReservationService struct {
	store    ReservationStore
	log      NotificationLog
	tmpl     TemplateStore
	engine   *message.Engine
	notifier Notifier
	events   EventPublisher
	reports  Invalidator
	logger   *applog.Logger
}

type ReservationDeps struct {
	Store     ReservationStore
	Log       NotificationLog
	Templates TemplateStore
	Engine    *message.Engine
	Notifier  Notifier
	// Events and Reports are optional.
	Events  EventPublisher
	Reports Invalidator
	Logger  *applog.Logger
}

func NewReservationService(d ReservationDeps) *ReservationService {
	if d.Logger == nil {
		d.Logger = applog.Discard()
	}
	if d.Engine == nil {
		d.Engine = message.NewEngine(message.PassThrough)
	}
	return &ReservationService{
		store:    d.Store,
		log:      d.Log,
		tmpl:     d.Templates,
		engine:   d.Engine,
		notifier: d.Notifier,
		events:   d.Events,
		reports:  d.Reports,
		logger:   d.Logger.WithComponent(applog.ComponentService),
	}
}

func (s *ReservationService) Get(ctx context.Context, id int64) (core.Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

func (s *ReservationService) List(ctx context.Context, f storage.ReservationFilter) ([]core.Reservation, error) {
	return s.store.ListReservations(ctx, f)
}

// Upcoming lists active reservations checking out on or after today.
func (s *ReservationService) Upcoming(ctx context.Context, today core.Date, limit int) ([]core.Reservation, error) {
	rs, err := s.store.ListReservations(ctx, storage.ReservationFilter{From: today, To: today.AddDays(3650)})
	if err != nil {
		return nil, err
	}
	out := make([]core.Reservation, 0, len(rs))
	for _, r := range rs {
		if !r.Active() {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *ReservationService) Create(ctx context.Context, in CreateInput) (Outcome, error) {
	r, err := s.store.CreateReservation(ctx, in.Reservation, in.NewGuest)
	if err != nil {
		return Outcome{}, fmt.Errorf("create reservation: %w", err)
	}
	out := Outcome{Reservation: r}
	s.afterMutation(ctx, amqp.EventReservationCreated, r)
	if in.Notify {
		s.send(ctx, &out)
	}
	return out, nil
}

func (s *ReservationService) Update(ctx context.Context, r core.Reservation, notify bool) (Outcome, error) {
	r, err := s.store.UpdateReservation(ctx, r)
	if err != nil {
		return Outcome{}, fmt.Errorf("update reservation: %w", err)
	}
	out := Outcome{Reservation: r}
	s.afterMutation(ctx, amqp.EventReservationUpdated, r)
	if notify {
		s.send(ctx, &out)
	}
	return out, nil
}

func (s *ReservationService) SetStatus(ctx context.Context, id int64, status core.ReservationStatus, notify bool) (Outcome, error) {
	r, err := s.store.SetReservationStatus(ctx, id, status)
	if err != nil {
		return Outcome{}, fmt.Errorf("set reservation status: %w", err)
	}
	out := Outcome{Reservation: r}
	s.afterMutation(ctx, amqp.EventReservationUpdated, r)
	if notify {
		s.send(ctx, &out)
	}
	return out, nil
}

func (s *ReservationService) Delete(ctx context.Context, id int64) (core.Reservation, error) {
	r, err := s.store.DeleteReservation(ctx, id)
	if err != nil {
		return core.Reservation{}, fmt.Errorf("delete reservation: %w", err)
	}
	s.afterMutation(ctx, amqp.EventReservationDeleted, r)
	return r, nil
}

// Notify sends the current template for reservation id. A delivery failure
// is reported as a warning on the outcome, not as an error.
func (s *ReservationService) Notify(ctx context.Context, id int64) (Outcome, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Reservation: r}
	s.send(ctx, &out)
	return out, nil
}

// PreviewMessage renders the current template for reservation id.
func (s *ReservationService) PreviewMessage(ctx context.Context, id int64) (string, error) {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return "", err
	}
	t, err := s.tmpl.GetTemplate(ctx)
	if err != nil {
		return "", fmt.Errorf("load template: %w", err)
	}
	return s.engine.Render(t.Body, r)
}

func (s *ReservationService) Notifications(ctx context.Context, id int64) ([]core.Notification, error) {
	return s.log.ListNotifications(ctx, id, 20)
}

// NotifierMode reports how messages are delivered.
func (s *ReservationService) NotifierMode() string {
	if s.notifier == nil {
		return ""
	}
	return s.notifier.Mode()
}

func (s *ReservationService) send(ctx context.Context, out *Outcome) {
	r := out.Reservation
	if s.notifier == nil {
		out.warn("WhatsApp não configurado")
		return
	}

	t, err := s.tmpl.GetTemplate(ctx)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load message template", err, applog.OpNotify,
			applog.FieldReservationID, r.ID)
		out.warn("Não foi possível carregar o modelo de mensagem")
		return
	}
	body, err := s.engine.Render(t.Body, r)
	if err != nil {
		out.warn("Modelo de mensagem inválido: " + err.Error())
		return
	}

	res, sendErr := s.notifier.Dispatch(ctx, r.Guest.Phone, body)
	n := core.Notification{
		ReservationID: r.ID,
		Phone:         r.Guest.Phone,
		Body:          body,
		Mode:          s.notifier.Mode(),
		MessageID:     res.MessageID,
		CreatedAt:     time.Now(),
	}
	if res.Mode != "" {
		n.Mode = res.Mode
	}
	if sendErr != nil {
		n.Error = sendErr.Error()
		s.logger.LogError(ctx, "WhatsApp notification failed", sendErr, applog.OpNotify,
			applog.FieldReservationID, r.ID)
		out.warn("Reserva salva, mas o WhatsApp não foi enviado: " + sendErr.Error())
	}

	if s.log != nil {
		recorded, err := s.log.RecordNotification(ctx, n)
		if err != nil {
			s.logger.LogError(ctx, "Failed to record notification", err, applog.OpNotify,
				applog.FieldReservationID, r.ID)
		} else {
			n = recorded
		}
	}
	out.Notification = &n
}

func (s *ReservationService) afterMutation(ctx context.Context, eventType string, r core.Reservation) {
	if s.reports != nil {
		s.reports.Invalidate()
	}
	publish(ctx, s.events, s.logger, amqp.NewReservationEvent(eventType, r.ID, r.GuestID))
}

// publish is best-effort: failures are logged and dropped.
func publish(ctx context.Context, events EventPublisher, logger *applog.Logger, evt *amqp.ReservationEvent) {
	if events == nil {
		logger.DebugContext(ctx, "AMQP disabled, skipping event", applog.FieldEvent, evt.Type)
		return
	}
	if err := events.Publish(ctx, evt); err != nil {
		logger.WarnContext(ctx, "Failed to publish reservation event",
			applog.FieldEvent, evt.Type,
			applog.FieldReservationID, evt.ReservationID,
			applog.FieldError, err)
	}
}
