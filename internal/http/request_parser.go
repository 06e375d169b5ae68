// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// reservation and guest forms, list filters, path ids and input sanitisation.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"temporada/internal/core"
	"temporada/internal/storage"
)

const maxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned by Parse for bodies above maxBodyBytes.
var ErrBodyTooLarge = errors.New("request body too large")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r once. Bodies above 1 MiB are
// not parsed; Parse reports ErrBodyTooLarge.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if p.err == nil && len(p.body) > maxBodyBytes {
			p.body, p.err = nil, ErrBodyTooLarge
		}
	}
	return p
}

// parseError maps a Parse failure onto the response sent to the client.
func parseError(err error) *HTMXResponseBuilder {
	if errors.Is(err, ErrBodyTooLarge) {
		return ErrorResponse(http.StatusRequestEntityTooLarge, "Requisição muito grande")
	}
	return BadRequestError("Formato de requisição inválido")
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitised string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	return strings.TrimSpace(p.GetText(key))
}

// GetText returns a sanitised value keeping inner newlines, for text areas.
func (p *RequestBodyParser) GetText(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Bool reports whether key holds a checkbox-style true value.
func (p *RequestBodyParser) Bool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "1", "true", "on", "yes", "sim":
		return true
	}
	return false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// PathID parses the {id} path value.
func PathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "id", Message: "identificador inválido"}
	}
	return id, nil
}

// ReservationForm is the decoded reservation form. Raw values are kept so
// the form can be shown again after a validation error.
type ReservationForm struct {
	GuestID    string
	GuestName  string
	GuestPhone string
	CheckIn    string
	CheckOut   string
	Status     string
	Value      string
	Notes      string
	Notify     bool
}

func NewReservationForm(p *RequestBodyParser) ReservationForm {
	return ReservationForm{
		GuestID:    p.Get("guest_id"),
		GuestName:  p.Get("guest_name"),
		GuestPhone: p.Get("guest_phone"),
		CheckIn:    p.Get("check_in"),
		CheckOut:   p.Get("check_out"),
		Status:     p.Get("status"),
		Value:      p.Get("value"),
		Notes:      strings.TrimSpace(p.GetText("notes")),
		Notify:     p.Bool("notify"),
	}
}

// FormFromReservation fills the form for editing r.
func FormFromReservation(r core.Reservation) ReservationForm {
	return ReservationForm{
		GuestID:  strconv.FormatInt(r.GuestID, 10),
		CheckIn:  r.CheckIn.String(),
		CheckOut: r.CheckOut.String(),
		Status:   string(r.Status),
		Value:    r.Value.Input(),
		Notes:    r.Notes,
	}
}

// Reservation converts the form. A non-nil guest is returned when the form
// names an inline guest instead of an existing one.
func (f ReservationForm) Reservation() (core.Reservation, *core.Guest, error) {
	var (
		r     core.Reservation
		guest *core.Guest
		err   error
	)

	switch {
	case f.GuestName != "" || f.GuestPhone != "":
		guest = &core.Guest{Name: f.GuestName, Phone: f.GuestPhone}
	case f.GuestID != "":
		r.GuestID, err = strconv.ParseInt(f.GuestID, 10, 64)
		if err != nil || r.GuestID <= 0 {
			return r, nil, &core.ValidationError{Field: "guest_id", Message: "hóspede inválido"}
		}
	default:
		return r, nil, &core.ValidationError{Field: "guest", Message: "escolha um hóspede ou informe nome e telefone"}
	}

	if r.CheckIn, err = core.ParseDate(f.CheckIn); err != nil {
		return r, nil, &core.ValidationError{Field: "check_in", Message: "data de check-in inválida"}
	}
	if r.CheckOut, err = core.ParseDate(f.CheckOut); err != nil {
		return r, nil, &core.ValidationError{Field: "check_out", Message: "data de check-out inválida"}
	}
	if r.Status, err = core.ParseStatus(f.Status); err != nil {
		return r, nil, err
	}
	if f.Value == "" {
		r.Value = core.Money{}
	} else {
		cents, err := core.ParseDecimalToCents(f.Value)
		if err != nil {
			return r, nil, &core.ValidationError{Field: "value", Message: "valor inválido"}
		}
		r.Value = core.Money{Cents: cents}
	}
	r.Notes = f.Notes
	return r, guest, nil
}

// ParseGuest decodes the guest form.
func ParseGuest(p *RequestBodyParser) core.Guest {
	return core.Guest{Name: p.Get("name"), Phone: p.Get("phone")}
}

// ParseReservationFilter reads the reservation list filters from the query
// string. Unparseable values are ignored and reported in the second result.
func ParseReservationFilter(q url.Values) (storage.ReservationFilter, []string) {
	var (
		f       storage.ReservationFilter
		invalid []string
	)
	if v := strings.TrimSpace(q.Get("de")); v != "" {
		if d, err := core.ParseDate(v); err == nil {
			f.From = d
		} else {
			invalid = append(invalid, "de")
		}
	}
	if v := strings.TrimSpace(q.Get("ate")); v != "" {
		if d, err := core.ParseDate(v); err == nil {
			f.To = d
		} else {
			invalid = append(invalid, "ate")
		}
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		if st, err := core.ParseStatus(v); err == nil {
			f.Status = st
		} else {
			invalid = append(invalid, "status")
		}
	}
	if v := strings.TrimSpace(q.Get("hospede")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			f.GuestID = id
		} else {
			invalid = append(invalid, "hospede")
		}
	}
	f.Newest = q.Get("ordem") == "recentes"
	return f, invalid
}
