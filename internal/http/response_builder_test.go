package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		BodyHTML("<p>ok</p>").
		Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Body.String() != "<p>ok</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestHTMXResponseBuilder_Triggers(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		TriggerReservationChanged(42).
		TriggerReportRefresh().
		TriggerSuccessNotification("Reserva criada.").
		Write(w)

	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	if got := string(triggers["reservation:changed"]); got != `{"id":42}` {
		t.Errorf("reservation:changed = %s", got)
	}
	if _, ok := triggers["report:refresh"]; !ok {
		t.Error("Missing report:refresh trigger")
	}

	var n struct {
		Type     string `json:"type"`
		Message  string `json:"message"`
		Duration int    `json:"duration"`
	}
	if err := json.Unmarshal(triggers["show-notification"], &n); err != nil {
		t.Fatalf("show-notification: %v", err)
	}
	if n.Type != "success" || n.Message != "Reserva criada." || n.Duration != 3000 {
		t.Errorf("notification = %+v", n)
	}
}

func TestHTMXResponseBuilder_WarningsJoined(t *testing.T) {
	w := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerWarningNotification([]string{"Primeiro.", "Segundo."}).
		Write(w)

	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"type":"warning"`) {
		t.Errorf("Missing warning type: %s", trigger)
	}
	if !strings.Contains(trigger, `Primeiro. Segundo.`) {
		t.Errorf("Warnings not joined: %s", trigger)
	}
}

func TestHTMXResponseBuilder_CustomHeaderAndRedirect(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Header("X-Custom", "value").
		Redirect("/reservas/1").
		Status(http.StatusCreated).
		Write(w)

	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("Custom header not set")
	}
	if w.Header().Get("HX-Redirect") != "/reservas/1" {
		t.Errorf("HX-Redirect = %q", w.Header().Get("HX-Redirect"))
	}
	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		builder    *HTMXResponseBuilder
		wantStatus int
		wantBody   string
	}{
		{
			name:       "bad request",
			builder:    BadRequestError("Formato inválido"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `<div class="error" role="alert">Formato inválido</div>`,
		},
		{
			name:       "unprocessable entity",
			builder:    UnprocessableEntityError("Data inválida"),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `<div class="error" role="alert">Data inválida</div>`,
		},
		{
			name:       "conflict",
			builder:    ErrorResponse(http.StatusConflict, "Datas ocupadas"),
			wantStatus: http.StatusConflict,
			wantBody:   `<div class="error" role="alert">Datas ocupadas</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)

			if w.Code != tt.wantStatus {
				t.Errorf("Status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestErrorResponse_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()
	BadRequestError(`<script>alert("x")</script>`).Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("Message not escaped: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("Expected escaped script tag: %s", body)
	}
}
