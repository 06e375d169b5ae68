package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the database and the page templates.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"templates": "ok", "database": "ok"}
	status := http.StatusOK

	if len(s.pages) == 0 {
		checks["templates"] = "missing"
		status = http.StatusServiceUnavailable
	}
	if s.store == nil {
		checks["database"] = "not configured"
		status = http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

// handleMetrics writes counters in a plain key value format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	tm := s.trace.GetMetrics()
	fmt.Fprintf(&b, "http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(&b, "http_client_errors_total %d\n", tm.ClientErrors)
	fmt.Fprintf(&b, "http_server_errors_total %d\n", tm.ServerErrors)
	fmt.Fprintf(&b, "http_response_time_avg_ms %.3f\n", float64(tm.AverageResponseTime.Microseconds())/1000)

	lm := s.loginLimiter.GetMetrics()
	fmt.Fprintf(&b, "login_attempts_total %d\n", lm.TotalHits)
	fmt.Fprintf(&b, "login_clients_tracked %d\n", lm.ClientCount)

	if s.store != nil {
		if st, err := s.store.Stats(r.Context()); err == nil {
			fmt.Fprintf(&b, "guests %d\n", st.Guests)
			fmt.Fprintf(&b, "reservations %d\n", st.Reservations)
			fmt.Fprintf(&b, "notifications %d\n", st.Notifications)
		}
	}
	if s.reservations != nil {
		fmt.Fprintf(&b, "notifier_mode{mode=%q} 1\n", s.reservations.NotifierMode())
	}
	fmt.Fprintf(&b, "uptime_seconds %d\n", int64(time.Since(s.started).Seconds()))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}
