// Package money implements fixed-point ledger amounts in integer minor units.
// All arithmetic in the ledger is exact int64 arithmetic; floats never carry
// an amount.
package money

import (
	"errors"
	"fmt"
	"strings"
)

// Minor is an amount expressed in minor currency units (cents).
type Minor = int64

const nbsp = " "

// ErrInvalidAmount indicates a string that cannot be parsed as an amount.
var ErrInvalidAmount = errors.New("money: invalid amount")

// Parse converts a human decimal string into minor units. It accepts both
// '.' and ',' as the decimal separator, tolerates regular and non-breaking
// spaces as thousands separators, and rounds half away from zero to two
// fractional digits.
func Parse(s string) (Minor, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, nbsp, "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0, nil
	}

	negative := false
	switch cleaned[0] {
	case '-':
		negative = true
		cleaned = cleaned[1:]
	case '+':
		cleaned = cleaned[1:]
	}
	if cleaned == "" || cleaned == "." {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	intPart := cleaned
	fracPart := ""
	if idx := strings.IndexByte(cleaned, '.'); idx >= 0 {
		intPart = cleaned[:idx]
		fracPart = cleaned[idx+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}

	var units int64
	for _, c := range intPart {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		units = units*10 + int64(c-'0')
	}

	var cents int64
	switch {
	case len(fracPart) == 0:
		cents = 0
	case len(fracPart) == 1:
		if fracPart[0] < '0' || fracPart[0] > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		cents = int64(fracPart[0]-'0') * 10
	default:
		for _, c := range fracPart {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
			}
		}
		cents = int64(fracPart[0]-'0')*10 + int64(fracPart[1]-'0')
		// Half away from zero on the third fractional digit.
		if len(fracPart) > 2 && fracPart[2] >= '5' {
			cents++
		}
	}

	total := units*100 + cents
	if negative {
		total = -total
	}
	return total, nil
}

// Format renders minor units in the flat-file machine format: no thousands
// separator, comma as the decimal separator, always two fractional digits.
// Zero renders as "0,00".
func Format(cents Minor) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d,%02d", sign, cents/100, cents%100)
}

// FormatFR renders minor units for human display: non-breaking space as the
// thousands separator and comma as the decimal separator.
func FormatFR(cents Minor) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	units := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", units)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	return fmt.Sprintf("%s%s,%02d", sign, strings.Join(groups, nbsp), frac)
}
