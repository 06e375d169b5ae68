package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"temporada/internal/core"
	applog "temporada/internal/log"
	"temporada/internal/services"
)

var errReceiptsDisabled = errors.New("receipts are not configured")

type reservationListData struct {
	From         string
	To           string
	Status       string
	GuestID      int64
	Newest       bool
	Invalid      []string
	Reservations []core.Reservation
}

type reservationFormData struct {
	ID     int64
	Form   ReservationForm
	Guests []core.Guest
	Action string
	IsNew  bool
}

type reservationDetailData struct {
	Reservation   core.Reservation
	Notifications []core.Notification
	Message       string
	MessageError  string
	NotifierMode  string
	CanPrint      bool
}

// notifyResultData feeds the "notify_result" partial.
type notifyResultData struct {
	Outcome services.Outcome
}

func (s *Server) handleReservationList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, invalid := ParseReservationFilter(q)
	rs, err := s.reservations.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err, applog.OpList)
		return
	}
	data := reservationListData{
		From:         q.Get("de"),
		To:           q.Get("ate"),
		Status:       string(f.Status),
		GuestID:      f.GuestID,
		Newest:       f.Newest,
		Invalid:      invalid,
		Reservations: rs,
	}
	pg := page{Title: "Reservas", Nav: "reservas", Data: data}
	if len(invalid) > 0 {
		pg.Error = fmt.Sprintf("Filtros ignorados: %v", invalid)
	}
	s.render(w, r, http.StatusOK, "reservations.html", pg)
}

func (s *Server) handleReservationNew(w http.ResponseWriter, r *http.Request) {
	form := ReservationForm{Status: string(core.StatusPending), Notify: true}
	if id := r.URL.Query().Get("hospede"); id != "" {
		form.GuestID = id
	}
	s.renderReservationForm(w, r, http.StatusOK, reservationFormData{
		Form:   form,
		Action: "/reservas",
		IsNew:  true,
	}, "")
}

func (s *Server) handleReservationCreate(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		parseError(err).Write(w)
		return
	}
	form := NewReservationForm(p)
	data := reservationFormData{Form: form, Action: "/reservas", IsNew: true}

	res, guest, err := form.Reservation()
	if err != nil {
		s.reservationFormError(w, r, data, err, applog.OpCreate)
		return
	}
	out, err := s.reservations.Create(r.Context(), services.CreateInput{
		Reservation: res,
		NewGuest:    guest,
		Notify:      form.Notify,
	})
	if err != nil {
		s.reservationFormError(w, r, data, err, applog.OpCreate)
		return
	}
	s.redirect(w, r, reservationURL(out.Reservation.ID), "Reserva criada.", out.Warnings)
}

func (s *Server) handleReservationDetail(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}
	res, err := s.reservations.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}
	notes, err := s.reservations.Notifications(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, applog.OpList)
		return
	}
	data := reservationDetailData{
		Reservation:   res,
		Notifications: notes,
		NotifierMode:  s.reservations.NotifierMode(),
		CanPrint:      s.receipts != nil,
	}
	if msg, err := s.reservations.PreviewMessage(r.Context(), id); err != nil {
		data.MessageError = userMessage(err)
	} else {
		data.Message = msg
	}
	s.render(w, r, http.StatusOK, "reservation_detail.html", page{
		Title: "Reserva #" + strconv.FormatInt(id, 10),
		Nav:   "reservas",
		Data:  data,
	})
}

func (s *Server) handleReservationEdit(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}
	res, err := s.reservations.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return
	}
	s.renderReservationForm(w, r, http.StatusOK, reservationFormData{
		ID:     id,
		Form:   FormFromReservation(res),
		Action: reservationURL(id),
	}, "")
}

func (s *Server) handleReservationUpdate(w http.ResponseWriter, r *http.Request) {
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
	form := NewReservationForm(p)
	data := reservationFormData{ID: id, Form: form, Action: reservationURL(id)}

	res, guest, err := form.Reservation()
	if err == nil && guest != nil {
		err = &core.ValidationError{Field: "guest", Message: "para trocar o hóspede escolha um hóspede cadastrado"}
	}
	if err != nil {
		s.reservationFormError(w, r, data, err, applog.OpUpdate)
		return
	}
	res.ID = id
	out, err := s.reservations.Update(r.Context(), res, form.Notify)
	if err != nil {
		err = missingGuestAsField(err)
		if core.IsNotFound(err) {
			s.fail(w, r, err, applog.OpUpdate)
			return
		}
		s.reservationFormError(w, r, data, err, applog.OpUpdate)
		return
	}
	s.redirect(w, r, reservationURL(id), "Reserva atualizada.", out.Warnings)
}

func (s *Server) handleReservationStatus(w http.ResponseWriter, r *http.Request) {
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
	raw := p.Get("status")
	if raw == "" {
		s.fail(w, r, &core.ValidationError{Field: "status", Message: "status obrigatório"}, applog.OpUpdate)
		return
	}
	status, err := core.ParseStatus(raw)
	if err != nil {
		s.fail(w, r, err, applog.OpUpdate)
		return
	}
	out, err := s.reservations.SetStatus(r.Context(), id, status, p.Bool("notify"))
	if err != nil {
		s.fail(w, r, err, applog.OpUpdate)
		return
	}
	s.redirect(w, r, reservationURL(id), "Status alterado para "+status.Label()+".", out.Warnings)
}

func (s *Server) handleReservationDelete(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, applog.OpDelete)
		return
	}
	if _, err := s.reservations.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, applog.OpDelete)
		return
	}
	s.redirect(w, r, "/reservas", "Reserva excluída.", nil)
}

// handleReservationNotify sends the WhatsApp message on demand. A failed
// send is still a 200: the attempt is logged and shown as a warning.
func (s *Server) handleReservationNotify(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, applog.OpNotify)
		return
	}
	out, err := s.reservations.Notify(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, applog.OpNotify)
		return
	}
	if !isHTMX(r) {
		success := ""
		if len(out.Warnings) == 0 {
			success = "Mensagem enviada."
		}
		s.redirect(w, r, reservationURL(id), success, out.Warnings)
		return
	}

	html, err := s.partialHTML("notify_result", notifyResultData{Outcome: out})
	if err != nil {
		s.fail(w, r, err, applog.OpRender)
		return
	}
	resp := NewHTMXResponse().BodyHTML(html).TriggerReservationChanged(id)
	if len(out.Warnings) > 0 {
		resp.TriggerWarningNotification(out.Warnings)
	} else {
		resp.TriggerSuccessNotification("Mensagem enviada.")
	}
	resp.Write(w)
}

// handleReservationMessage renders the message text for copy and paste.
func (s *Server) handleReservationMessage(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, applog.OpRender)
		return
	}
	msg, err := s.reservations.PreviewMessage(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, applog.OpRender)
		return
	}
	if isHTMX(r) {
		s.renderPartial(w, r, http.StatusOK, "preview", msg)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(msg))
}

func (s *Server) handleReceiptHTML(w http.ResponseWriter, r *http.Request) {
	res, ok := s.receiptReservation(w, r)
	if !ok {
		return
	}
	b, err := s.receipts.HTML(res)
	if err != nil {
		s.fail(w, r, err, applog.OpRender)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

func (s *Server) handleReceiptPDF(w http.ResponseWriter, r *http.Request) {
	res, ok := s.receiptReservation(w, r)
	if !ok {
		return
	}
	b, err := s.receipts.PDF(r.Context(), res)
	if err != nil {
		applog.FromContext(r.Context()).LogError(r.Context(), "Receipt PDF failed", err, applog.OpRender,
			applog.FieldReservationID, res.ID)
		s.render(w, r, http.StatusBadGateway, "error.html", page{
			Title: "Erro",
			Error: "Não foi possível gerar o PDF. Use o recibo em HTML e imprima pelo navegador.",
			Data:  reservationURL(res.ID) + "/recibo",
		})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="recibo-%d.pdf"`, res.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}

func (s *Server) receiptReservation(w http.ResponseWriter, r *http.Request) (core.Reservation, bool) {
	if s.receipts == nil {
		s.fail(w, r, &core.ExternalServiceError{Service: "recibo", Err: errReceiptsDisabled}, applog.OpRender)
		return core.Reservation{}, false
	}
	id, err := PathID(r)
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return core.Reservation{}, false
	}
	res, err := s.reservations.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err, applog.OpRead)
		return core.Reservation{}, false
	}
	return res, true
}

func (s *Server) renderReservationForm(w http.ResponseWriter, r *http.Request, status int, data reservationFormData, errMsg string) {
	guests, err := s.guests.Search(r.Context(), "")
	if err != nil {
		s.fail(w, r, err, applog.OpList)
		return
	}
	data.Guests = guests
	title := "Nova reserva"
	if !data.IsNew {
		title = "Editar reserva #" + strconv.FormatInt(data.ID, 10)
	}
	s.render(w, r, status, "reservation_form.html", page{
		Title: title,
		Nav:   "reservas",
		Error: errMsg,
		Data:  data,
	})
}

// reservationFormError shows the form again for operator mistakes and
// falls back to the error page for everything else.
func (s *Server) reservationFormError(w http.ResponseWriter, r *http.Request, data reservationFormData, err error, op string) {
	err = missingGuestAsField(err)
	status := statusFor(err)
	if status != http.StatusUnprocessableEntity && status != http.StatusConflict {
		s.fail(w, r, err, op)
		return
	}
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Reservation form rejected",
		applog.FieldError, err.Error(),
		applog.FieldOperation, op)
	s.renderReservationForm(w, r, status, data, userMessage(err))
}

// missingGuestAsField reports an unknown guest_id as a form field error
// rather than a missing page.
func missingGuestAsField(err error) error {
	var nf *core.NotFoundError
	if errors.As(err, &nf) && nf.Entity == "guest" {
		return &core.ValidationError{Field: "guest_id", Message: "hóspede não encontrado"}
	}
	return err
}

func reservationURL(id int64) string {
	return "/reservas/" + strconv.FormatInt(id, 10)
}
