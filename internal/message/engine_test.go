package message

import (
	"strings"
	"testing"

	"temporada/internal/core"
)

func sample() core.Reservation {
	return core.Reservation{
		CheckIn:  core.NewDate(2024, 3, 15),
		CheckOut: core.NewDate(2024, 3, 18),
		Status:   core.StatusConfirmed,
		Value:    core.Money{Cents: 50000},
		Guest:    core.Guest{Name: "Maria Silva", Phone: "5511987654321"},
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	e := NewEngine(PassThrough)
	got, err := e.Render("Olá {nome}, de {check_in} a {check_out}: {valor} ({status}, {noites} noites) tel {telefone}", sample())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Olá Maria Silva, de 15/03/2024 a 18/03/2024: R$ 500,00 (Confirmada, 3 noites) tel 5511987654321"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	e := NewEngine(PassThrough)
	first, err := e.Render(DefaultTemplate, sample())
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Render(DefaultTemplate, sample())
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("render not idempotent: %q vs %q", first, second)
	}
}

func TestRenderWithoutPlaceholders(t *testing.T) {
	for _, tmpl := range []string{"", "Olá!", "{desconhecido}"} {
		_, err := NewEngine(PassThrough).Render(tmpl, sample())
		if !core.IsTemplate(err) {
			t.Fatalf("%q: expected TemplateError, got %v", tmpl, err)
		}
	}
}

func TestUnknownPlaceholderPolicy(t *testing.T) {
	tmpl := "Olá {nome}, código {codigo} {codigo}"

	got, err := NewEngine(PassThrough).Render(tmpl, sample())
	if err != nil {
		t.Fatalf("pass-through: %v", err)
	}
	if !strings.Contains(got, "{codigo}") {
		t.Fatalf("unknown placeholder should be left literal: %q", got)
	}

	_, err = NewEngine(Reject).Render(tmpl, sample())
	if !core.IsTemplate(err) {
		t.Fatalf("reject: expected TemplateError, got %v", err)
	}
	if !strings.Contains(err.Error(), "{codigo}") {
		t.Fatalf("error should list the unknown placeholder: %v", err)
	}
}

func TestDefaultTemplateUsesOnlyKnownPlaceholders(t *testing.T) {
	if err := NewEngine(Reject).Validate(DefaultTemplate); err != nil {
		t.Fatalf("default template invalid: %v", err)
	}
}
