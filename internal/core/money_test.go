package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"500", 50000, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0", 0, true},
		{"0,01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2,50 ", 250, true},
		{"1.500,00", 150000, true},
		{"R$ 350,90", 35090, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{50000, "R$ 500,00"},
		{150000, "R$ 1.500,00"},
		{5, "R$ 0,05"},
		{0, "R$ 0,00"},
		{-150, "R$ -1,50"},
		{1<<53 + 1, "R$ 90.071.992.547.409,93"},
		{9223372036854775807, "R$ 92.233.720.368.547.758,07"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyInput(t *testing.T) {
	if got := (Money{Cents: 150005}).Input(); got != "1500,05" {
		t.Fatalf("Input() = %q", got)
	}
	if got := (Money{Cents: 0}).Input(); got != "0,00" {
		t.Fatalf("Input() = %q", got)
	}
}
