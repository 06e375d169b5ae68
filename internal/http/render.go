package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"temporada/internal/auth"
	"temporada/internal/core"
	applog "temporada/internal/log"
)

// page is the data every full page receives; Data is page specific.
type page struct {
	Title    string
	Nav      string
	User     string
	Property string
	Flash    *flash
	Error    string
	Data     any
}

type flash struct {
	Success  string   `json:"s,omitempty"`
	Warnings []string `json:"w,omitempty"`
}

const flashCookie = "flash"

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// setFlash stores messages for the next page after a redirect.
func setFlash(w http.ResponseWriter, success string, warnings []string) {
	b, err := json.Marshal(flash{Success: success, Warnings: warnings})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(b),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash reads and clears the flash cookie.
func takeFlash(w http.ResponseWriter, r *http.Request) *flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	b, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var f flash
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	return &f
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, url, success string, warnings []string) {
	setFlash(w, success, warnings)
	if isHTMX(r) {
		NewHTMXResponse().Redirect(url).Write(w)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// render executes a full page. The page is rendered to a buffer first so a
// template error still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := s.pages[name]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown page template", "template", name)
		http.Error(w, "Erro interno.", http.StatusInternalServerError)
		return
	}
	p.User = auth.UsernameFromContext(r.Context())
	p.Property = s.cfg.PropertyName
	if p.Flash == nil {
		p.Flash = takeFlash(w, r)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", p); err != nil {
		s.logger.LogError(r.Context(), "Template execution failed", err, applog.OpRender, "template", name)
		http.Error(w, "Erro interno.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial executes a named block from partials.html.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, status int, block string, data any) {
	html, err := s.partialHTML(block, data)
	if err != nil {
		s.logger.LogError(r.Context(), "Partial execution failed", err, applog.OpRender, "template", block)
		http.Error(w, "Erro interno.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}

func (s *Server) partialHTML(block string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.pages["partials.html"].ExecuteTemplate(&buf, block, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case core.IsValidation(err), core.IsTemplate(err):
		return http.StatusUnprocessableEntity
	case core.IsNotFound(err):
		return http.StatusNotFound
	case core.IsConflict(err):
		return http.StatusConflict
	case core.IsExternal(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the operator-facing text for err. Unclassified errors get
// a generic message.
func userMessage(err error) string {
	var (
		notFound *core.NotFoundError
		conflict *core.ConflictError
		external *core.ExternalServiceError
	)
	switch {
	case core.IsValidation(err), core.IsTemplate(err):
		return innermost(err)
	case errors.As(err, &notFound):
		return entityLabel(notFound.Entity) + " não encontrado(a)."
	case errors.As(err, &conflict):
		return conflict.Reason
	case errors.As(err, &external):
		return "Serviço externo indisponível (" + external.Service + "): " + external.Err.Error()
	default:
		return "Erro interno. Tente novamente."
	}
}

// innermost strips the "op: " prefixes added while wrapping.
func innermost(err error) string {
	var (
		v *core.ValidationError
		t *core.TemplateError
	)
	switch {
	case errors.As(err, &v):
		return v.Message
	case errors.As(err, &t):
		return t.Error()
	}
	return err.Error()
}

func entityLabel(entity string) string {
	switch entity {
	case "guest":
		return "Hóspede"
	case "reservation":
		return "Reserva"
	case "message_template":
		return "Modelo de mensagem"
	}
	return "Registro"
}

// fail reports err to the operator in the form the request expects.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := statusFor(err)
	msg := userMessage(err)

	logger := applog.FromContext(r.Context())
	if status >= 500 {
		logger.LogError(r.Context(), "Request failed", err, op, applog.FieldStatusCode, status)
	} else {
		logger.WarnContext(r.Context(), "Request rejected",
			applog.FieldError, err.Error(),
			applog.FieldOperation, op,
			applog.FieldStatusCode, status)
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"):
		writeJSON(w, status, map[string]string{"error": msg})
	case isHTMX(r):
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
	default:
		s.render(w, r, status, "error.html", page{Title: "Erro", Error: msg})
	}
}
