package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"temporada/internal/core"
)

func newTestRepo(t *testing.T, opts Options) *SQLiteRepository {
	t.Helper()
	if opts.CountryCode == "" {
		opts.CountryCode = "55"
	}
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), opts)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustGuest(t *testing.T, repo *SQLiteRepository, name, phone string) core.Guest {
	t.Helper()
	g, err := repo.CreateGuest(context.Background(), core.Guest{Name: name, Phone: phone})
	if err != nil {
		t.Fatalf("CreateGuest: %v", err)
	}
	return g
}

func stay(guestID int64, in, out core.Date) core.Reservation {
	return core.Reservation{GuestID: guestID, CheckIn: in, CheckOut: out, Status: core.StatusConfirmed, Value: core.Money{Cents: 50000}}
}

func TestCreateGuestNormalisesPhone(t *testing.T) {
	repo := newTestRepo(t, Options{})
	g := mustGuest(t, repo, "  Maria   Silva ", "(11) 98765-4321")

	if g.ID == 0 {
		t.Fatal("expected an id")
	}
	if g.Name != "Maria Silva" {
		t.Errorf("name = %q", g.Name)
	}
	if g.Phone != "5511987654321" {
		t.Errorf("phone = %q", g.Phone)
	}
	if g.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	_, err := repo.CreateGuest(context.Background(), core.Guest{Name: "", Phone: "11987654321"})
	if !core.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestReservationRejectsInvalidDates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, Options{})
	g := mustGuest(t, repo, "Maria", "11987654321")

	day := core.NewDate(2024, 3, 15)
	for _, out := range []core.Date{day, day.AddDays(-2)} {
		_, err := repo.CreateReservation(ctx, stay(g.ID, day, out), nil)
		if !core.IsValidation(err) {
			t.Fatalf("check-out %s: expected ValidationError, got %v", out, err)
		}
	}

	// inline guest must not be written when the reservation is invalid
	_, err := repo.CreateReservation(ctx, stay(0, day, day), &core.Guest{Name: "João", Phone: "21912345678"})
	if !core.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, found, _ := repo.FindGuestByPhone(ctx, "21912345678"); found {
		t.Fatal("guest written despite failed reservation")
	}

	all, err := repo.ListReservations(ctx, ReservationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no reservations, got %d", len(all))
	}
}

func TestCreateReservationUnknownGuest(t *testing.T) {
	repo := newTestRepo(t, Options{})
	_, err := repo.CreateReservation(context.Background(),
		stay(999, core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 3)), nil)
	if !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCreateReservationWithInlineGuest(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, Options{})
	existing := mustGuest(t, repo, "Maria", "11987654321")

	r, err := repo.CreateReservation(ctx,
		stay(0, core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 3)),
		&core.Guest{Name: "Maria S.", Phone: "+55 (11) 98765-4321"})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if r.GuestID != existing.ID {
		t.Fatalf("expected existing guest %d to be reused, got %d", existing.ID, r.GuestID)
	}
	if r.Guest.Name != "Maria" {
		t.Fatalf("joined guest name = %q", r.Guest.Name)
	}

	r2, err := repo.CreateReservation(ctx,
		stay(0, core.NewDate(2024, 4, 1), core.NewDate(2024, 4, 3)),
		&core.Guest{Name: "João", Phone: "21912345678"})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if r2.GuestID == existing.ID || r2.Guest.Phone != "5521912345678" {
		t.Fatalf("expected a new guest, got %+v", r2.Guest)
	}
}

func TestReservationOverlap(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, Options{})
	g := mustGuest(t, repo, "Maria", "11987654321")

	first, err := repo.CreateReservation(ctx, stay(g.ID, core.NewDate(2024, 5, 1), core.NewDate(2024, 5, 5)), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = repo.CreateReservation(ctx, stay(g.ID, core.NewDate(2024, 5, 4), core.NewDate(2024, 5, 7)), nil)
	if !core.IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// back-to-back stays share no night
	if _, err := repo.CreateReservation(ctx, stay(g.ID, core.NewDate(2024, 5, 5), core.NewDate(2024, 5, 7)), nil); err != nil {
		t.Fatalf("back-to-back: %v", err)
	}

	// a cancelled stay neither blocks nor is blocked
	if _, err := repo.SetReservationStatus(ctx, first.ID, core.StatusCancelled); err != nil {
		t.Fatal(err)
	}
	overlapping, err := repo.CreateReservation(ctx, stay(g.ID, core.NewDate(2024, 5, 2), core.NewDate(2024, 5, 4)), nil)
	if err != nil {
		t.Fatalf("after cancellation: %v", err)
	}

	// reactivating the cancelled stay now conflicts
	if _, err := repo.SetReservationStatus(ctx, first.ID, core.StatusConfirmed); !core.IsConflict(err) {
		t.Fatalf("expected ConflictError on reactivation, got %v", err)
	}

	// updating a stay onto itself is not an overlap
	overlapping.Notes = "late arrival"
	if _, err := repo.UpdateReservation(ctx, overlapping); err != nil {
		t.Fatalf("self update: %v", err)
	}
}

func TestReservationOverlapAllowed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, Options{AllowOverlap: true})
	g := mustGuest(t, repo, "Maria", "11987654321")

	for i := 0; i < 2; i++ {
		if _, err := repo.CreateReservation(ctx, stay(g.ID, core.NewDate(2024, 5, 1), core.NewDate(2024, 5, 5)), nil); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
}

func TestDeleteGuest(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, Options{})
	referenced := mustGuest(t, repo, "Maria", "11987654321")
	free := mustGuest(t, repo, "João", "21912345678")

	r, err := repo.CreateReservation(ctx, stay(referenced.ID, core.NewDate(2024, 5, 1), core.NewDate(2024, 5, 5)), nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.DeleteGuest(ctx, referenced.ID, false); !core.IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if _, err := repo.GetGuest(ctx, referenced.ID); err != nil {
		t.Fatalf("guest should still exist: %v", err)
	}

	if _, err := repo.DeleteGuest(ctx, free.ID, false); err != nil {
		t.Fatalf("delete unreferenced guest: %v", err)
	}
	if _, err := repo.GetGuest(ctx, free.ID); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	removed, err := repo.DeleteGuest(ctx, referenced.ID, true)
	if err != nil {
		t.Fatalf("cascade delete: %v", err)
	}
	if len(removed) != 1 || removed[0] != r.ID {
		t.Fatalf("removed = %v, want [%d]", removed, r.ID)
	}
	if _, err := repo.GetReservation(ctx, r.ID); !core.IsNotFound(err) {
		t.Fatalf("expected reservation gone, got %v", err)
	}

	if _, err := repo.DeleteGuest(ctx, 12345, false); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSearchGuests(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, Options{})
	mustGuest(t, repo, "José Álvares", "11987654321")
	mustGuest(t, repo, "Ana Paula", "21912345678")

	tests := []struct {
		query string
		want  []string
	}{
		{"josé", []string{"José Álvares"}},
		{"ÁLVARES", []string{"José Álvares"}},
		{"paula", []string{"Ana Paula"}},
		{"9123", []string{"Ana Paula"}},
		{"(11) 98765", []string{"José Álvares"}},
		{"", []string{"Ana Paula", "José Álvares"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		got, err := repo.SearchGuests(ctx, tt.query)
		if err != nil {
			t.Fatalf("SearchGuests(%q): %v", tt.query, err)
		}
		var names []string
		for _, g := range got {
			names = append(names, g.Name)
		}
		if strings.Join(names, ",") != strings.Join(tt.want, ",") {
			t.Errorf("SearchGuests(%q) = %v, want %v", tt.query, names, tt.want)
		}
	}
}

func TestListReservationsFilter(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, Options{})
	a := mustGuest(t, repo, "Maria", "11987654321")
	b := mustGuest(t, repo, "João", "21912345678")

	mk := func(g core.Guest, in, out core.Date, st core.ReservationStatus) {
		r := stay(g.ID, in, out)
		r.Status = st
		if _, err := repo.CreateReservation(ctx, r, nil); err != nil {
			t.Fatal(err)
		}
	}
	mk(a, core.NewDate(2024, 1, 28), core.NewDate(2024, 2, 3), core.StatusConfirmed)
	mk(b, core.NewDate(2024, 2, 10), core.NewDate(2024, 2, 12), core.StatusPending)
	mk(a, core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 4), core.StatusCancelled)

	count := func(f ReservationFilter) int {
		t.Helper()
		rs, err := repo.ListReservations(ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		return len(rs)
	}

	feb := ReservationFilter{From: core.NewDate(2024, 2, 1), To: core.NewDate(2024, 3, 1)}
	if n := count(feb); n != 2 {
		t.Errorf("february = %d, want 2", n)
	}
	if n := count(ReservationFilter{Status: core.StatusCancelled}); n != 1 {
		t.Errorf("cancelled = %d, want 1", n)
	}
	if n := count(ReservationFilter{GuestID: a.ID}); n != 2 {
		t.Errorf("guest a = %d, want 2", n)
	}
	// check-out day is exclusive
	if n := count(ReservationFilter{From: core.NewDate(2024, 2, 3), To: core.NewDate(2024, 2, 4)}); n != 0 {
		t.Errorf("check-out day = %d, want 0", n)
	}
	if n := count(ReservationFilter{Limit: 1}); n != 1 {
		t.Errorf("limit = %d, want 1", n)
	}
}

func TestTemplateSeededAndUpdated(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, Options{})

	tmpl, err := repo.GetTemplate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(tmpl.Body, "{nome}") {
		t.Fatalf("seeded template = %q", tmpl.Body)
	}

	if _, err := repo.UpdateTemplate(ctx, "Oi {nome}"); err != nil {
		t.Fatal(err)
	}
	tmpl, err = repo.GetTemplate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Body != "Oi {nome}" {
		t.Fatalf("body = %q", tmpl.Body)
	}
}

func TestNotificationsLog(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, Options{})
	g := mustGuest(t, repo, "Maria", "11987654321")
	r, err := repo.CreateReservation(ctx, stay(g.ID, core.NewDate(2024, 5, 1), core.NewDate(2024, 5, 5)), nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, mode := range []string{"simulated", "cloud"} {
		if _, err := repo.RecordNotification(ctx, core.Notification{ReservationID: r.ID, Phone: g.Phone, Body: "oi", Mode: mode}); err != nil {
			t.Fatal(err)
		}
	}
	log, err := repo.ListNotifications(ctx, r.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 || log[0].Mode != "cloud" {
		t.Fatalf("log = %+v", log)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Guests != 1 || stats.Reservations != 1 || stats.Notifications != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	if _, err := repo.DeleteReservation(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if log, _ = repo.ListNotifications(ctx, r.ID, 0); len(log) != 0 {
		t.Fatalf("notifications should cascade, got %d", len(log))
	}
	if _, err := repo.DeleteReservation(ctx, r.ID); !core.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path, Options{})
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}
