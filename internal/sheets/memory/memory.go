// Package memory is an in-process sheets mirror. It keeps the last rows
// written to each sheet and can dump them as CSV, which is how the worker
// runs without Google credentials.
package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"temporada/internal/core"
	"temporada/internal/report"
	ports "temporada/internal/sheets"
)

var _ ports.Mirror = (*Store)(nil)

type Store struct {
	mu           sync.Mutex
	report       [][]any
	reservations [][]any
	writes       int
}

func New() *Store {
	return &Store{}
}

func (s *Store) WriteReport(_ context.Context, rep report.Report) error {
	rows := ports.ReportRows(rep)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = rows
	s.writes++
	return nil
}

func (s *Store) WriteReservations(_ context.Context, rs []core.Reservation) error {
	rows := ports.ReservationRows(rs)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = rows
	s.writes++
	return nil
}

// Report returns a copy of the report rows last written.
func (s *Store) Report() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.report...)
}

// Reservations returns a copy of the reservation rows last written.
func (s *Store) Reservations() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.reservations...)
}

// Writes counts successful sheet replacements.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// WriteCSV dumps the report rows to w.
func (s *Store) WriteCSV(w io.Writer) error {
	rows := s.Report()
	cw := csv.NewWriter(w)
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = fmt.Sprint(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
