package http

import (
	"net/http"
	"strconv"

	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/services"
)

type guestListData struct {
	Query  string
	Guests []services.GuestSummary
}

type guestFormData struct {
	Guest        core.Guest
	Reservations []core.Reservation
	Action       string
	IsNew        bool
}

func (s *Server) handleGuestList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	guests, err := s.guests.List(r.Context(), q)
	if err != nil {
		s.fail(w, r, err, applog.OpList)
		return
	}
	data := guestListData{Query: q, Guests: guests}
	if isHTMX(r) {
		s.renderPartial(w, r, http.StatusOK, "guest_rows", data)
		return
	}
	s.render(w, r, http.StatusOK, "guests.html", page{Title: "Hóspedes", Nav: "hospedes", Data: data})
}

func (s *Server) handleGuestNew(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "guest_form.html", page{
		Title: "Novo hóspede",
		Nav:   "hospedes",
		Data:  guestFormData{Action: "/hospedes", IsNew: true},
	})
}

func (s *Server) handleGuestCreate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		parseError(err).Write(w)
		return
	}
	g := ParseGuest(p)
	created, err := s.guests.Create(r.Context(), g)
	if err != nil {
		s.guestFormError(w, r, guestFormData{Guest: g, Action: "/hospedes", IsNew: true}, err)
		return
	}
	s.redirect(w, r, guestURL(created.ID), "Hóspede cadastrado.", nil)
}

func (s *Server) handleGuestDetail(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}
	g, err := s.guests.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}
	rs, err := s.guests.Reservations(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, applog.OpList)
		return
	}
	s.render(w, r, http.StatusOK, "guest_form.html", page{
		Title: g.Name,
		Nav:   "hospedes",
		Data:  guestFormData{Guest: g, Reservations: rs, Action: guestURL(id)},
	})
}

func (s *Server) handleGuestUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, applog.OpUpdate)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		parseError(err).Write(w)
		return
	}
	g := ParseGuest(p)
	g.ID = id
	if _, err := s.guests.Update(r.Context(), g); err != nil {
		if core.IsNotFound(err) {
			s.fail(w, r, err, applog.OpUpdate)
			return
		}
		s.guestFormError(w, r, guestFormData{Guest: g, Action: guestURL(id)}, err)
		return
	}
	s.redirect(w, r, guestURL(id), "Hóspede atualizado.", nil)
}

// handleGuestDelete refuses referenced guests unless cascade is confirmed.
func (s *Server) handleGuestDelete(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, applog.OpDelete)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		parseError(err).Write(w)
		return
	}
	removed, err := s.guests.Delete(r.Context(), id, p.Bool("cascade"))
	if err != nil {
		s.fail(w, r, err, applog.OpDelete)
		return
	}
	msg := "Hóspede excluído."
	if len(removed) > 0 {
		msg = "Hóspede e " + strconv.Itoa(len(removed)) + " reserva(s) excluídos."
	}
	s.redirect(w, r, "/hospedes", msg, nil)
}

func (s *Server) guestFormError(w http.ResponseWriter, r *http.Request, data guestFormData, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.fail(w, r, err, applog.OpCreate)
		return
	}
	title := "Novo hóspede"
	if !data.IsNew {
		title = data.Guest.Name
	}
	s.render(w, r, status, "guest_form.html", page{
		Title: title,
		Nav:   "hospedes",
		Error: userMessage(err),
		Data:  data,
	})
}

func guestURL(id int64) string {
	return "/hospedes/" + strconv.FormatInt(id, 10)
}
