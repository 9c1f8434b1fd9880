package core

import "testing"

func TestParseBudget(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"1", 1, true},
		{"1234.5", 1234.5, true},
		{"$1,234,567", 1234567, true},
		{" 2.50 ", 2.5, true},
		{"-250", -250, true},
		{"-$250", -250, true},
		{"0", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"$", 0, false},
		{"", 0, false},
		{"1e5", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseBudget(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatDollars(t *testing.T) {
	cases := []struct {
		in  float64
		out string
	}{
		{0, "$0"},
		{999, "$999"},
		{1234567, "$1,234,567"},
		{-2500, "-$2,500"},
		{1234.5, "$1,234.50"},
	}
	for _, tc := range cases {
		if got := FormatDollars(tc.in); got != tc.out {
			t.Fatalf("FormatDollars(%v) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
