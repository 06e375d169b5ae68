// Package report computes the trailing twelve-month occupancy and revenue
// summary from a set of reservations.
package report

import (
	"fmt"
	"strings"
	"time"

	"temporada/internal/core"
)

// Months is the size of the reporting window, current month included.
const Months = 12

// Attribution selects how a reservation's value is spread over months.
type Attribution string

const (
	// AttributeCheckIn books the whole value in the month of check-in.
	AttributeCheckIn Attribution = "checkin"
	// AttributeNights prorates the value over the nights of the stay.
	AttributeNights Attribution = "nights"
)

// ParseAttribution accepts "checkin" or "nights"; empty means checkin.
func ParseAttribution(s string) (Attribution, error) {
	switch a := Attribution(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AttributeCheckIn, nil
	case AttributeCheckIn, AttributeNights:
		return a, nil
	default:
		return "", fmt.Errorf("unknown revenue attribution %q", s)
	}
}

// Policy holds the configurable accounting rules.
type Policy struct {
	IncludeCancelled bool
	Attribution      Attribution
}

// DefaultPolicy excludes cancelled stays and books revenue at check-in.
func DefaultPolicy() Policy {
	return Policy{Attribution: AttributeCheckIn}
}

// Row is one calendar month of the report.
type Row struct {
	Year     int
	Month    time.Month
	Nights   int
	Revenue  core.Money
	CheckIns int
	// Occupancy is nights over days in the month, as a percentage.
	Occupancy float64
}

var monthAbbrev = [...]string{"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"}

// Label returns the short Portuguese month label, e.g. "mar/2024".
func (r Row) Label() string {
	return fmt.Sprintf("%s/%d", monthAbbrev[r.Month-1], r.Year)
}

// Key returns the YYYY-MM form.
func (r Row) Key() string {
	return fmt.Sprintf("%04d-%02d", r.Year, int(r.Month))
}

// DaysInMonth returns the number of calendar days of the row's month.
func (r Row) DaysInMonth() int {
	return daysIn(r.Year, r.Month)
}

// Report is the dense twelve-row summary, oldest month first.
type Report struct {
	Rows         []Row
	TotalNights  int
	TotalRevenue core.Money
	Policy       Policy
	GeneratedAt  time.Time
}

// Monthly aggregates reservations into the twelve months ending with the
// month containing now. Each night is attributed to the calendar day it ends
// on, so the night from the 28th to the 29th counts on the 29th. Only nights
// falling inside the window are counted.
func Monthly(reservations []core.Reservation, now time.Time, p Policy) Report {
	if p.Attribution == "" {
		p.Attribution = AttributeCheckIn
	}

	current := core.NewDate(now.Year(), now.Month(), 1)
	first := current.AddDate(0, -(Months - 1), 0)

	rows := make([]Row, Months)
	index := make(map[string]int, Months)
	for i := range rows {
		m := first.AddDate(0, i, 0)
		rows[i] = Row{Year: m.Year(), Month: m.Month()}
		index[rows[i].Key()] = i
	}
	rowFor := func(d core.Date) (*Row, bool) {
		i, ok := index[fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))]
		if !ok {
			return nil, false
		}
		return &rows[i], true
	}

	for _, r := range reservations {
		if !p.IncludeCancelled && r.Status == core.StatusCancelled {
			continue
		}
		nights := r.Nights()
		if nights <= 0 {
			continue
		}

		if row, ok := rowFor(r.CheckIn); ok {
			row.CheckIns++
			if p.Attribution == AttributeCheckIn {
				row.Revenue.Cents += r.Value.Cents
			}
		}

		var booked int64
		for k := 1; k <= nights; k++ {
			row, ok := rowFor(r.CheckIn.AddDays(k))
			share := prorate(r.Value.Cents, k, nights) - booked
			booked += share
			if !ok {
				continue
			}
			row.Nights++
			if p.Attribution == AttributeNights {
				row.Revenue.Cents += share
			}
		}
	}

	rep := Report{Rows: rows, Policy: p, GeneratedAt: now}
	for i := range rows {
		rows[i].Occupancy = float64(rows[i].Nights) * 100 / float64(rows[i].DaysInMonth())
		rep.TotalNights += rows[i].Nights
		rep.TotalRevenue.Cents += rows[i].Revenue.Cents
	}
	return rep
}

// Window returns the store filter bounds [from, to) that select every
// reservation able to contribute to the report for now: stays whose last
// night ends in the first month and stays checking in during the last one.
func Window(now time.Time) (from, to core.Date) {
	current := core.NewDate(now.Year(), now.Month(), 1)
	first := core.DateOf(current.AddDate(0, -(Months - 1), 0))
	return first.AddDays(-1), core.DateOf(current.AddDate(0, 1, 0))
}

// prorate returns the cumulative share of total owed after k of n nights,
// rounded half-up, so the per-night differences always sum to total.
func prorate(total int64, k, n int) int64 {
	return (total*int64(k)*2 + int64(n)) / (int64(n) * 2)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
