// Package message renders the WhatsApp message template for a reservation.
//
// Placeholders are written in braces, e.g. {nome}. Rendering is a pure
// function of the template and the reservation.
package message

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"temporada/internal/core"
)

// UnknownPolicy controls what happens to placeholders the engine does not know.
type UnknownPolicy int

const (
	// PassThrough leaves unknown placeholders literally in the output.
	PassThrough UnknownPolicy = iota
	// Reject fails rendering with a TemplateError listing them.
	Reject
)

// Placeholders recognised by the engine, in documentation order.
var Placeholders = []string{"nome", "telefone", "check_in", "check_out", "status", "valor", "noites"}

// DefaultTemplate is the body seeded on a fresh database.
const DefaultTemplate = "Olá {nome}! Sua reserva de {check_in} a {check_out} ({noites} noites) está {status}. Valor total: {valor}."

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Engine renders templates with a fixed unknown-placeholder policy.
type Engine struct {
	policy UnknownPolicy
}

func NewEngine(policy UnknownPolicy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the unknown-placeholder policy.
func (e *Engine) Policy() UnknownPolicy { return e.policy }

// Validate checks a template without rendering it.
func (e *Engine) Validate(tmpl string) error {
	known, unknown := scan(tmpl)
	if known == 0 {
		return &core.TemplateError{Reason: "nenhum marcador reconhecido (use {nome}, {check_in}, ...)"}
	}
	if e.policy == Reject && len(unknown) > 0 {
		return &core.TemplateError{Reason: "marcadores desconhecidos", Unknown: unknown}
	}
	return nil
}

// Render substitutes every recognised placeholder with the reservation's
// values. The reservation's Guest must be populated.
func (e *Engine) Render(tmpl string, r core.Reservation) (string, error) {
	if err := e.Validate(tmpl); err != nil {
		return "", err
	}
	values := Values(r)
	return placeholderRE.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := values[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	}), nil
}

// Values returns the substitution table for a reservation.
func Values(r core.Reservation) map[string]string {
	return map[string]string{
		"nome":      r.Guest.Name,
		"telefone":  r.Guest.Phone,
		"check_in":  r.CheckIn.Display(),
		"check_out": r.CheckOut.Display(),
		"status":    r.Status.Label(),
		"valor":     r.Value.String(),
		"noites":    strconv.Itoa(r.Nights()),
	}
}

func scan(tmpl string) (known int, unknown []string) {
	seen := map[string]bool{}
	for _, m := range placeholderRE.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if isKnown(name) {
			known++
			continue
		}
		if !seen[name] {
			seen[name] = true
			unknown = append(unknown, "{"+name+"}")
		}
	}
	sort.Strings(unknown)
	return known, unknown
}

func isKnown(name string) bool {
	for _, p := range Placeholders {
		if p == name {
			return true
		}
	}
	return false
}

// Help returns the placeholder list formatted for the template editor.
func Help() string {
	parts := make([]string, len(Placeholders))
	for i, p := range Placeholders {
		parts[i] = "{" + p + "}"
	}
	return strings.Join(parts, " ")
}
