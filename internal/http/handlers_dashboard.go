package http

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/report"
	"temporada/internal/sheets"
)

type dashboardData struct {
	Today        core.Date
	Upcoming     []core.Reservation
	Report       report.Report
	NotifierMode string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	today := core.DateOf(s.now())
	upcoming, err := s.reservations.Upcoming(r.Context(), today, 10)
	if err != nil {
		s.fail(w, r, err, applog.OpList)
		return
	}
	rep, err := s.reports.Monthly(r.Context())
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard.html", page{
		Title: "Painel",
		Nav:   "painel",
		Data: dashboardData{
			Today:        today,
			Upcoming:     upcoming,
			Report:       rep,
			NotifierMode: s.reservations.NotifierMode(),
		},
	})
}

func (s *Server) handleReportPartial(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Monthly(r.Context())
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}
	s.renderPartial(w, r, http.StatusOK, "report", rep)
}

type reportMonthJSON struct {
	Month        string  `json:"month"`
	Label        string  `json:"label"`
	Nights       int     `json:"nights"`
	RevenueCents int64   `json:"revenue_cents"`
	Revenue      string  `json:"revenue"`
	CheckIns     int     `json:"check_ins"`
	Occupancy    float64 `json:"occupancy"`
}

type reportJSON struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	IncludeCancelled  bool              `json:"include_cancelled"`
	Attribution       string            `json:"revenue_attribution"`
	Months            []reportMonthJSON `json:"months"`
	TotalNights       int               `json:"total_nights"`
	TotalRevenueCents int64             `json:"total_revenue_cents"`
	TotalRevenue      string            `json:"total_revenue"`
}

// handleReportJSON serves the report as JSON, or as CSV with ?format=csv.
func (s *Server) handleReportJSON(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Monthly(r.Context())
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="relatorio.csv"`)
		cw := csv.NewWriter(w)
		for _, row := range sheets.ReportRows(rep) {
			rec := make([]string, len(row))
			for i, v := range row {
				rec[i] = fmt.Sprint(v)
			}
			_ = cw.Write(rec)
		}
		cw.Flush()
		return
	}

	out := reportJSON{
		GeneratedAt:       rep.GeneratedAt,
		IncludeCancelled:  rep.Policy.IncludeCancelled,
		Attribution:       string(rep.Policy.Attribution),
		Months:            make([]reportMonthJSON, len(rep.Rows)),
		TotalNights:       rep.TotalNights,
		TotalRevenueCents: rep.TotalRevenue.Cents,
		TotalRevenue:      rep.TotalRevenue.String(),
	}
	for i, row := range rep.Rows {
		out.Months[i] = reportMonthJSON{
			Month:        row.Key(),
			Label:        row.Label(),
			Nights:       row.Nights,
			RevenueCents: row.Revenue.Cents,
			Revenue:      row.Revenue.String(),
			CheckIns:     row.CheckIns,
			Occupancy:    row.Occupancy,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
