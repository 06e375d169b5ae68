package core

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2024-03-15 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year() != 2024 || d.Month() != time.March || d.Day() != 15 {
		t.Fatalf("got %v", d)
	}
	if d.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", d.Location())
	}
	if d.Display() != "15/03/2024" {
		t.Fatalf("display = %q", d.Display())
	}
	for _, bad := range []string{"", "15/03/2024", "2024-02-30", "abc"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestReservationNights(t *testing.T) {
	r := Reservation{CheckIn: NewDate(2024, 1, 28), CheckOut: NewDate(2024, 2, 3)}
	if got := r.Nights(); got != 6 {
		t.Fatalf("nights = %d, want 6", got)
	}
	r = Reservation{CheckIn: NewDate(2024, 2, 28), CheckOut: NewDate(2024, 3, 1)}
	if got := r.Nights(); got != 2 {
		t.Fatalf("leap year nights = %d, want 2", got)
	}
}

func TestReservationValidate(t *testing.T) {
	good := Reservation{
		CheckIn:  NewDate(2024, 3, 15),
		CheckOut: NewDate(2024, 3, 18),
		Status:   StatusPending,
		Value:    Money{Cents: 50000},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Reservation)
	}{
		{"same day", func(r *Reservation) { r.CheckOut = r.CheckIn }},
		{"checkout before checkin", func(r *Reservation) { r.CheckOut = r.CheckIn.AddDays(-1) }},
		{"missing checkin", func(r *Reservation) { r.CheckIn = Date{} }},
		{"negative value", func(r *Reservation) { r.Value = Money{Cents: -1} }},
		{"unknown status", func(r *Reservation) { r.Status = "paga" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := good
			tc.mut(&r)
			err := r.Validate()
			if !IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	zero := good
	zero.Value = Money{}
	if err := zero.Validate(); err != nil {
		t.Fatalf("zero value should be valid, got %v", err)
	}
}

func TestReservationOverlaps(t *testing.T) {
	a := Reservation{CheckIn: NewDate(2024, 5, 1), CheckOut: NewDate(2024, 5, 5)}
	cases := []struct {
		in, out Date
		want    bool
	}{
		{NewDate(2024, 5, 5), NewDate(2024, 5, 8), false}, // back-to-back
		{NewDate(2024, 4, 28), NewDate(2024, 5, 1), false},
		{NewDate(2024, 5, 4), NewDate(2024, 5, 6), true},
		{NewDate(2024, 4, 1), NewDate(2024, 6, 1), true},
		{NewDate(2024, 5, 2), NewDate(2024, 5, 3), true},
	}
	for _, tc := range cases {
		b := Reservation{CheckIn: tc.in, CheckOut: tc.out}
		if got := a.Overlaps(b); got != tc.want {
			t.Errorf("overlap %s..%s = %v, want %v", tc.in, tc.out, got, tc.want)
		}
	}
}

func TestGuestValidate(t *testing.T) {
	if err := (Guest{Name: "Maria", Phone: "5511987654321"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Guest{Name: "  ", Phone: "5511987654321"}).Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}
	if err := (Guest{Name: "Maria", Phone: "1234"}).Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for short phone, got %v", err)
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct{ in, want string }{
		{"(11) 98765-4321", "5511987654321"},
		{"11 3456-7890", "551134567890"},
		{"011 98765 4321", "5511987654321"},
		{"+55 11 98765-4321", "5511987654321"},
		{"5511987654321", "5511987654321"},
		{"+1 415 555 0100", "14155550100"},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in, "55"); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(""); err != nil || s != StatusPending {
		t.Fatalf("empty status should default to pending, got %q %v", s, err)
	}
	if s, err := ParseStatus("Confirmada"); err != nil || s != StatusConfirmed {
		t.Fatalf("got %q %v", s, err)
	}
	if _, err := ParseStatus("paga"); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if StatusCancelled.Label() != "Cancelada" {
		t.Fatalf("label = %q", StatusCancelled.Label())
	}
}
