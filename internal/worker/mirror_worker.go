package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"temporada/internal/amqp"
	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/report"
	"temporada/internal/sheets"
	"temporada/internal/storage"
)

// ReservationSource is the read side of the store used by the mirror.
type ReservationSource interface {
	ListReservations(ctx context.Context, f storage.ReservationFilter) ([]core.Reservation, error)
}

// MirrorWorker rewrites the report and reservation sheets from the store.
// Every sync is a full replacement, so events only trigger it.
type MirrorWorker struct {
	source ReservationSource
	mirror sheets.Mirror
	policy report.Policy
	logger *applog.Logger
	now    func() time.Time

	mu       sync.Mutex
	lastSync time.Time
	syncs    int
}

func NewMirrorWorker(source ReservationSource, mirror sheets.Mirror, policy report.Policy, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &MirrorWorker{
		source: source,
		mirror: mirror,
		policy: policy,
		logger: logger.WithComponent(applog.ComponentWorker),
		now:    time.Now,
	}
}

// HandleEvent syncs unless a sync starting after the event already ran.
func (w *MirrorWorker) HandleEvent(ctx context.Context, evt *amqp.ReservationEvent) error {
	w.mu.Lock()
	stale := !evt.Timestamp.IsZero() && evt.Timestamp.Before(w.lastSync)
	w.mu.Unlock()
	if stale {
		w.logger.DebugContext(ctx, "Event already reflected by a later sync",
			applog.FieldEvent, evt.Type,
			applog.FieldReservationID, evt.ReservationID)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing reservation event",
		applog.FieldEvent, evt.Type,
		applog.FieldReservationID, evt.ReservationID,
		applog.FieldGuestID, evt.GuestID)
	return w.Sync(ctx)
}

// Sync writes both sheets. Syncs are serialised.
func (w *MirrorWorker) Sync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := w.now()
	reservations, err := w.source.ListReservations(ctx, storage.ReservationFilter{})
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}
	rep := report.Monthly(reservations, started, w.policy)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.mirror.WriteReport(gctx, rep); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := w.mirror.WriteReservations(gctx, reservations); err != nil {
			return fmt.Errorf("write reservations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	w.lastSync = started
	w.syncs++
	w.logger.InfoContext(ctx, "Sheets mirror updated",
		"reservations", len(reservations),
		"total_nights", rep.TotalNights,
		applog.FieldDuration, time.Since(started).Milliseconds(),
		applog.FieldOperation, applog.OpSync)
	return nil
}

// Syncs reports how many syncs completed.
func (w *MirrorWorker) Syncs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncs
}

// Run syncs once, then every interval until ctx ends. The periodic pass
// covers events lost while the worker was down.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.Sync(ctx); err != nil {
		w.logger.LogError(ctx, "Startup sync failed", err, applog.OpSync)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sync(ctx); err != nil {
				w.logger.LogError(ctx, "Periodic sync failed", err, applog.OpSync)
			}
		}
	}
}
