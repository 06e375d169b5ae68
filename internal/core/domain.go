package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	StatusPending   ReservationStatus = "pendente"
	StatusConfirmed ReservationStatus = "confirmada"
	StatusCancelled ReservationStatus = "cancelada"
)

// DateLayout is the wire/storage layout for calendar dates.
const DateLayout = "2006-01-02"

type (
	ReservationStatus string

	// Date is a calendar day, always normalised to midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Guest struct {
		ID        int64
		Name      string
		Phone     string // digits only, country code included
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Reservation struct {
		ID        int64
		GuestID   int64
		CheckIn   Date
		CheckOut  Date
		Status    ReservationStatus
		Value     Money
		Notes     string
		CreatedAt time.Time
		UpdatedAt time.Time

		// Guest is populated by reads that join the guest row.
		Guest Guest
	}

	// MessageTemplate is the singleton WhatsApp message body.
	MessageTemplate struct {
		Body      string
		UpdatedAt time.Time
	}

	// Notification is one dispatch attempt, successful or not.
	Notification struct {
		ID            int64
		ReservationID int64
		Phone         string
		Body          string
		Mode          string
		MessageID     string
		Error         string
		CreatedAt     time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// Statuses lists every reservation status in display order.
func Statuses() []ReservationStatus {
	return []ReservationStatus{StatusPending, StatusConfirmed, StatusCancelled}
}

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

// Label returns the capitalised Portuguese label used in messages and pages.
func (s ReservationStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pendente"
	case StatusConfirmed:
		return "Confirmada"
	case StatusCancelled:
		return "Cancelada"
	}
	return string(s)
}

// ParseStatus accepts a status value in any case. An empty string yields StatusPending.
func ParseStatus(s string) (ReservationStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StatusPending, nil
	}
	st := ReservationStatus(s)
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Message: "status inválido: " + s}
	}
	return st, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// String returns the YYYY-MM-DD form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// Display returns the DD/MM/YYYY form used in messages and receipts.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format("02/01/2006")
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

// Nights returns the reserved nights, check-out minus check-in.
func (r Reservation) Nights() int {
	return r.CheckIn.DaysUntil(r.CheckOut)
}

// Active reports whether the reservation still blocks the calendar.
func (r Reservation) Active() bool {
	return r.Status != StatusCancelled
}

// Overlaps reports whether the two stays share at least one night.
func (r Reservation) Overlaps(o Reservation) bool {
	return r.CheckIn.Before(o.CheckOut.Time) && o.CheckIn.Before(r.CheckOut.Time)
}

func (r Reservation) Validate() error {
	if r.CheckIn.IsZero() {
		return &ValidationError{Field: "check_in", Message: "data de check-in obrigatória"}
	}
	if r.CheckOut.IsZero() {
		return &ValidationError{Field: "check_out", Message: "data de check-out obrigatória"}
	}
	if !r.CheckOut.After(r.CheckIn.Time) {
		return &ValidationError{Field: "check_out", Message: "check-out deve ser posterior ao check-in"}
	}
	if r.Value.Cents < 0 {
		return &ValidationError{Field: "value", Message: "valor não pode ser negativo"}
	}
	if !r.Status.Valid() {
		return &ValidationError{Field: "status", Message: "status inválido: " + string(r.Status)}
	}
	if utf8.RuneCountInString(r.Notes) > 2000 {
		return &ValidationError{Field: "notes", Message: "observações muito longas"}
	}
	return nil
}

func (g Guest) Validate() error {
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "nome obrigatório"}
	}
	if utf8.RuneCountInString(name) > 200 {
		return &ValidationError{Field: "name", Message: "nome muito longo"}
	}
	if n := len(Digits(g.Phone)); n < 10 || n > 15 {
		return &ValidationError{Field: "phone", Message: "telefone deve ter entre 10 e 15 dígitos"}
	}
	return nil
}

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone strips formatting and prefixes countryCode onto national
// numbers. National numbers are the 10 or 11 digit forms (area code plus
// subscriber); a leading trunk zero is dropped first.
func NormalizePhone(phone, countryCode string) string {
	digits := Digits(phone)
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		return digits
	}
	digits = strings.TrimLeft(digits, "0")
	if countryCode != "" && (len(digits) == 10 || len(digits) == 11) {
		return countryCode + digits
	}
	return digits
}
