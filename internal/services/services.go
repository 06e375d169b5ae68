// Package services orchestrates store mutations with their side effects:
// report cache invalidation, WhatsApp notifications and reservation events.
// The store commits each mutation in its own transaction before any side
// effect runs, and side-effect failures never undo a committed mutation.
package services

import (
	"context"

	"temporada/internal/amqp"
	"temporada/internal/core"
	"temporada/internal/notify"
	"temporada/internal/storage"
)

// Ports implemented by *storage.SQLiteRepository, *amqp.Client and
// *notify.Dispatcher.
type (
	ReservationStore interface {
		CreateReservation(ctx context.Context, r core.Reservation, newGuest *core.Guest) (core.Reservation, error)
		UpdateReservation(ctx context.Context, r core.Reservation) (core.Reservation, error)
		SetReservationStatus(ctx context.Context, id int64, status core.ReservationStatus) (core.Reservation, error)
		DeleteReservation(ctx context.Context, id int64) (core.Reservation, error)
		GetReservation(ctx context.Context, id int64) (core.Reservation, error)
		ListReservations(ctx context.Context, f storage.ReservationFilter) ([]core.Reservation, error)
	}

	GuestStore interface {
		CreateGuest(ctx context.Context, g core.Guest) (core.Guest, error)
		GetGuest(ctx context.Context, id int64) (core.Guest, error)
		UpdateGuest(ctx context.Context, g core.Guest) (core.Guest, error)
		DeleteGuest(ctx context.Context, id int64, cascade bool) ([]int64, error)
		ListGuests(ctx context.Context) ([]core.Guest, error)
		SearchGuests(ctx context.Context, query string) ([]core.Guest, error)
		ReservationCounts(ctx context.Context) (map[int64]int, error)
		ListReservations(ctx context.Context, f storage.ReservationFilter) ([]core.Reservation, error)
	}

	TemplateStore interface {
		GetTemplate(ctx context.Context) (core.MessageTemplate, error)
		UpdateTemplate(ctx context.Context, body string) (core.MessageTemplate, error)
	}

	NotificationLog interface {
		RecordNotification(ctx context.Context, n core.Notification) (core.Notification, error)
		ListNotifications(ctx context.Context, reservationID int64, limit int) ([]core.Notification, error)
	}

	EventPublisher interface {
		Publish(ctx context.Context, evt *amqp.ReservationEvent) error
	}

	Notifier interface {
		Dispatch(ctx context.Context, phone, body string) (notify.Result, error)
		Mode() string
	}

	// Invalidator drops derived data after a reservation mutation.
	Invalidator interface {
		Invalidate()
	}
)

var (
	_ ReservationStore = (*storage.SQLiteRepository)(nil)
	_ GuestStore       = (*storage.SQLiteRepository)(nil)
	_ TemplateStore    = (*storage.SQLiteRepository)(nil)
	_ NotificationLog  = (*storage.SQLiteRepository)(nil)
	_ EventPublisher   = (*amqp.Client)(nil)
	_ Notifier         = (*notify.Dispatcher)(nil)
)
