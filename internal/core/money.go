// Package core provides the domain model of the rental: guests,
// reservations, money and dates, plus the error taxonomy shared by the
// store, the services and the web layer.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. Thousands separators are
// accepted in the Brazilian form ("1.500,00") when a comma is present.
// Zero is a valid amount; negative values are rejected.
//
// Examples:
//
//	ParseDecimalToCents("500")      -> 50000, nil
//	ParseDecimalToCents("12,34")    -> 1234, nil
//	ParseDecimalToCents("1.500,00") -> 150000, nil
//	ParseDecimalToCents("12.346")   -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// Reais returns the value in reais as a float64 for display and spreadsheets.
// Use cents for arithmetic.
func (m Money) Reais() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount as Brazilian currency, e.g. "R$ 1.500,00".
func (m Money) String() string {
	return "R$ " + m.Decimal()
}

// Decimal formats the amount without the currency symbol, e.g. "1.500,00".
// Reais and centavos are formatted separately so no float rounding occurs.
func (m Money) Decimal() string {
	sign, abs := "", uint64(m.Cents)
	if m.Cents < 0 {
		sign, abs = "-", uint64(-(m.Cents+1))+1
	}
	return sign + brl.Sprint(number.Decimal(abs/100)) + "," + strconv.FormatUint(100+abs%100, 10)[1:]
}

// Input formats the amount the way form fields expect it back, e.g. "1500,00".
func (m Money) Input() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "," + strconv.FormatInt(100+cents%100, 10)[1:]
	if neg {
		return "-" + s
	}
	return s
}
