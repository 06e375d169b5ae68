package services

import (
	"context"
	"fmt"
	"time"

	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/message"
)

// SampleReservation is rendered by the template editor preview.
func SampleReservation(today core.Date) core.Reservation {
	return core.Reservation{
		ID:       1,
		CheckIn:  today.AddDays(7),
		CheckOut: today.AddDays(10),
		Status:   core.StatusConfirmed,
		Value:    core.Money{Cents: 150000},
		Guest:    core.Guest{Name: "Maria Silva", Phone: "5511987654321"},
	}
}

type TemplateService struct {
	store  TemplateStore
	engine *message.Engine
	logger *applog.Logger
	now    func() time.Time
}

func NewTemplateService(store TemplateStore, engine *message.Engine, logger *applog.Logger) *TemplateService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &TemplateService{
		store:  store,
		engine: engine,
		logger: logger.WithComponent(applog.ComponentTemplate),
		now:    time.Now,
	}
}

func (s *TemplateService) Get(ctx context.Context) (core.MessageTemplate, error) {
	return s.store.GetTemplate(ctx)
}

// Update validates body with the engine's rules before storing it.
func (s *TemplateService) Update(ctx context.Context, body string) (core.MessageTemplate, error) {
	if err := s.engine.Validate(body); err != nil {
		return core.MessageTemplate{}, err
	}
	t, err := s.store.UpdateTemplate(ctx, body)
	if err != nil {
		return core.MessageTemplate{}, fmt.Errorf("update template: %w", err)
	}
	s.logger.InfoContext(ctx, "Message template updated", applog.FieldOperation, applog.OpUpdate)
	return t, nil
}

// Preview renders body against the sample reservation.
func (s *TemplateService) Preview(body string) (string, error) {
	return s.engine.Render(body, SampleReservation(core.DateOf(s.now())))
}

// Strict reports whether unknown placeholders are rejected.
func (s *TemplateService) Strict() bool {
	return s.engine.Policy() == message.Reject
}
