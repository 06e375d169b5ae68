package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"temporada/internal/amqp"
	"temporada/internal/core"
	"temporada/internal/report"
	"temporada/internal/sheets/memory"
	"temporada/internal/storage"
)

type fakeSource struct {
	rs    []core.Reservation
	err   error
	calls int
}

func (f *fakeSource) ListReservations(ctx context.Context, _ storage.ReservationFilter) ([]core.Reservation, error) {
	f.calls++
	return f.rs, f.err
}

type failingMirror struct{ *memory.Store }

func (failingMirror) WriteReport(ctx context.Context, rep report.Report) error {
	return errors.New("quota exceeded")
}

func sampleReservations() []core.Reservation {
	return []core.Reservation{{
		ID:       1,
		CheckIn:  core.NewDate(2024, 3, 15),
		CheckOut: core.NewDate(2024, 3, 18),
		Status:   core.StatusConfirmed,
		Value:    core.Money{Cents: 50000},
		Guest:    core.Guest{Name: "Maria", Phone: "5511987654321"},
	}}
}

func TestMirrorWorkerSync(t *testing.T) {
	src := &fakeSource{rs: sampleReservations()}
	mirror := memory.New()
	w := NewMirrorWorker(src, mirror, report.DefaultPolicy(), nil)
	w.now = func() time.Time { return time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC) }

	if err := w.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if mirror.Writes() != 2 {
		t.Fatalf("writes = %d, want 2", mirror.Writes())
	}
	if got := len(mirror.Reservations()); got != 2 {
		t.Fatalf("reservation rows = %d, want 2", got)
	}
	total := mirror.Report()[report.Months+1]
	if total[1] != 3 {
		t.Fatalf("total nights = %v", total[1])
	}
}

func TestMirrorWorkerSkipsStaleEvents(t *testing.T) {
	src := &fakeSource{rs: sampleReservations()}
	w := NewMirrorWorker(src, memory.New(), report.DefaultPolicy(), nil)

	evt := amqp.NewReservationEvent(amqp.EventReservationCreated, 1, 1)
	if err := w.HandleEvent(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleEvent(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	if w.Syncs() != 1 {
		t.Fatalf("syncs = %d, want 1 (second event predates the last sync)", w.Syncs())
	}

	newer := amqp.NewReservationEvent(amqp.EventReservationDeleted, 1, 1)
	newer.Timestamp = time.Now().Add(time.Minute)
	if err := w.HandleEvent(context.Background(), newer); err != nil {
		t.Fatal(err)
	}
	if w.Syncs() != 2 {
		t.Fatalf("syncs = %d, want 2", w.Syncs())
	}
}

func TestMirrorWorkerErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("db locked")}
	w := NewMirrorWorker(src, memory.New(), report.DefaultPolicy(), nil)
	if err := w.Sync(context.Background()); err == nil {
		t.Fatal("expected source error")
	}

	src = &fakeSource{rs: sampleReservations()}
	w = NewMirrorWorker(src, failingMirror{memory.New()}, report.DefaultPolicy(), nil)
	if err := w.Sync(context.Background()); err == nil {
		t.Fatal("expected mirror error")
	}
	if w.Syncs() != 0 {
		t.Fatal("failed sync counted")
	}
}

func TestMirrorWorkerRunStopsWithContext(t *testing.T) {
	src := &fakeSource{rs: sampleReservations()}
	w := NewMirrorWorker(src, memory.New(), report.DefaultPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, time.Hour) }()

	deadline := time.After(2 * time.Second)
	for w.Syncs() == 0 {
		select {
		case <-deadline:
			t.Fatal("startup sync did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}
