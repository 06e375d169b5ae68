package http

import (
	"net/http"
	"time"

	applog "temporada/internal/log"
)

type templatePageData struct {
	Body      string
	UpdatedAt time.Time
	Strict    bool
	Preview   previewData
}

type previewData struct {
	Text  string
	Error string
}

func (s *Server) preview(body string) previewData {
	text, err := s.tmplSvc.Preview(body)
	if err != nil {
		return previewData{Error: userMessage(err)}
	}
	return previewData{Text: text}
}

func (s *Server) handleTemplatePage(w http.ResponseWriter, r *http.Request) {
	t, err := s.tmplSvc.Get(r.Context())
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}
	s.render(w, r, http.StatusOK, "template.html", page{
		Title: "Modelo de mensagem",
		Nav:   "modelo",
		Data: templatePageData{
			Body:      t.Body,
			UpdatedAt: t.UpdatedAt,
			Strict:    s.tmplSvc.Strict(),
			Preview:   s.preview(t.Body),
		},
	})
}

func (s *Server) handleTemplateUpdate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		parseError(err).Write(w)
		return
	}
	body := p.GetText("body")
	if _, err := s.tmplSvc.Update(r.Context(), body); err != nil {
		status := statusFor(err)
		if status != http.StatusUnprocessableEntity {
			s.fail(w, r, err, applog.OpUpdate)
			return
		}
		s.render(w, r, status, "template.html", page{
			Title: "Modelo de mensagem",
			Nav:   "modelo",
			Error: userMessage(err),
			Data: templatePageData{
				Body:    body,
				Strict:  s.tmplSvc.Strict(),
				Preview: s.preview(body),
			},
		})
		return
	}
	s.redirect(w, r, "/modelo", "Modelo salvo.", nil)
}

// handleTemplatePreview renders an unsaved body against a sample reservation.
func (s *Server) handleTemplatePreview(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		parseError(err).Write(w)
		return
	}
	s.renderPartial(w, r, http.StatusOK, "template_preview", s.preview(p.GetText("body")))
}
