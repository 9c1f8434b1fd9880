// Package core provides budget amount parsing and display formatting.
//
// This file contains functions for parsing amounts typed into spreadsheets or
// CSV-like sources and for rendering totals the way the dashboard shows them.
package core

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// ParseBudget converts a spreadsheet cell to an amount.
//
// It accepts an optional leading "$", thousands separators and surrounding
// spaces. Negative amounts are allowed (budget reductions are published as
// negative lines). Returns ErrInvalidBudget for anything else.
//
// Examples:
//
//	ParseBudget("1234.5")      -> 1234.5, nil
//	ParseBudget("$1,234,567")  -> 1234567, nil
//	ParseBudget("-$250")       -> -250, nil
func ParseBudget(s string) (float64, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidBudget
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return 0, ErrInvalidBudget
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, ErrInvalidBudget
	}
	if neg {
		v = -v
	}
	return v, nil
}

// FormatNumber renders v with thousands separators. Whole amounts have no
// decimals; anything else is shown with two.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.2f", v)
}

// FormatDollars renders v as a dollar amount, e.g. "$1,234,567".
func FormatDollars(v float64) string {
	if v < 0 {
		return "-$" + FormatNumber(-v)
	}
	return "$" + FormatNumber(v)
}
