// Package sheets mirrors the monthly report and the reservation list to a
// spreadsheet. Adapters live in subpackages.
package sheets

import (
	"context"
	"math"

	"temporada/internal/core"
	"temporada/internal/report"
)

// Ports for outbound adapters.
type (
	ReportWriter interface {
		// WriteReport replaces the report sheet with rep.
		WriteReport(ctx context.Context, rep report.Report) error
	}

	ReservationWriter interface {
		// WriteReservations replaces the reservation sheet with rs.
		WriteReservations(ctx context.Context, rs []core.Reservation) error
	}

	Mirror interface {
		ReportWriter
		ReservationWriter
	}
)

var (
	ReportHeader      = []any{"Mês", "Noites", "Receita (R$)", "Check-ins", "Ocupação (%)"}
	ReservationHeader = []any{"ID", "Hóspede", "Telefone", "Check-in", "Check-out", "Noites", "Status", "Valor (R$)", "Observações"}
)

// ReportRows lays out rep as spreadsheet rows: header, one row per month
// and a totals row.
func ReportRows(rep report.Report) [][]any {
	rows := make([][]any, 0, len(rep.Rows)+2)
	rows = append(rows, ReportHeader)
	for _, r := range rep.Rows {
		rows = append(rows, []any{r.Label(), r.Nights, r.Revenue.Reais(), r.CheckIns, round1(r.Occupancy)})
	}
	rows = append(rows, []any{"Total", rep.TotalNights, rep.TotalRevenue.Reais(), "", ""})
	return rows
}

// ReservationRows lays out rs as spreadsheet rows under a header.
func ReservationRows(rs []core.Reservation) [][]any {
	rows := make([][]any, 0, len(rs)+1)
	rows = append(rows, ReservationHeader)
	for _, r := range rs {
		rows = append(rows, []any{
			r.ID,
			r.Guest.Name,
			// leading apostrophe keeps the sheet from parsing the phone as a number
			"'" + r.Guest.Phone,
			r.CheckIn.Display(),
			r.CheckOut.Display(),
			r.Nights(),
			r.Status.Label(),
			r.Value.Reais(),
			r.Notes,
		})
	}
	return rows
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
