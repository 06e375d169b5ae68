package services

import (
	"context"
	"fmt"
	"strings"

	"temporada/internal/amqp"
	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/storage"
)

// GuestSummary is a guest with the number of reservations referencing it.
type GuestSummary struct {
	core.Guest
	Reservations int
}

type GuestService struct {
	store   GuestStore
	events  EventPublisher
	reports Invalidator
	logger  *applog.Logger
}

// NewGuestService builds the service. events and reports may be nil.
func NewGuestService(store GuestStore, events EventPublisher, reports Invalidator, logger *applog.Logger) *GuestService {
	if logger == nil {
		logger = applog.Discard()
	}
	return &GuestService{
		store:   store,
		events:  events,
		reports: reports,
		logger:  logger.WithComponent(applog.ComponentService),
	}
}

func (s *GuestService) Create(ctx context.Context, g core.Guest) (core.Guest, error) {
	g, err := s.store.CreateGuest(ctx, g)
	if err != nil {
		return core.Guest{}, fmt.Errorf("create guest: %w", err)
	}
	return g, nil
}

func (s *GuestService) Get(ctx context.Context, id int64) (core.Guest, error) {
	return s.store.GetGuest(ctx, id)
}

func (s *GuestService) Update(ctx context.Context, g core.Guest) (core.Guest, error) {
	g, err := s.store.UpdateGuest(ctx, g)
	if err != nil {
		return core.Guest{}, fmt.Errorf("update guest: %w", err)
	}
	return g, nil
}

// Delete removes the guest. Without cascade a referenced guest is a
// *core.ConflictError; with cascade its reservations go too and their ids
// are returned.
func (s *GuestService) Delete(ctx context.Context, id int64, cascade bool) ([]int64, error) {
	removed, err := s.store.DeleteGuest(ctx, id, cascade)
	if err != nil {
		return nil, fmt.Errorf("delete guest: %w", err)
	}
	if len(removed) > 0 && s.reports != nil {
		s.reports.Invalidate()
	}
	s.logger.InfoContext(ctx, "Guest deleted",
		applog.FieldGuestID, id,
		"reservations_removed", len(removed))
	publish(ctx, s.events, s.logger, amqp.NewReservationEvent(amqp.EventGuestDeleted, 0, id))
	return removed, nil
}

// List returns every guest, or the matches of query when it is not blank.
func (s *GuestService) List(ctx context.Context, query string) ([]GuestSummary, error) {
	var (
		guests []core.Guest
		err    error
	)
	if q := strings.TrimSpace(query); q != "" {
		guests, err = s.store.SearchGuests(ctx, q)
	} else {
		guests, err = s.store.ListGuests(ctx)
	}
	if err != nil {
		return nil, err
	}
	counts, err := s.store.ReservationCounts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GuestSummary, len(guests))
	for i, g := range guests {
		out[i] = GuestSummary{Guest: g, Reservations: counts[g.ID]}
	}
	return out, nil
}

// Search returns guests matching query, for the reservation form picker.
func (s *GuestService) Search(ctx context.Context, query string) ([]core.Guest, error) {
	return s.store.SearchGuests(ctx, query)
}

// Reservations lists the guest's reservations, newest first.
func (s *GuestService) Reservations(ctx context.Context, id int64) ([]core.Reservation, error) {
	return s.store.ListReservations(ctx, storage.ReservationFilter{GuestID: id, Newest: true})
}
