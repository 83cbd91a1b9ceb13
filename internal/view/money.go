// Package view turns fetched data into display models. Nothing here talks to
// the network or owns state: every function is a pure mapping from domain
// values to the strings and tones the UI shows.
package view

import (
	"errors"
	"strings"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidAmount is returned by ParseBRL for input that is not a money amount.
var ErrInvalidAmount = errors.New("valor inválido")

// FormatBRL renders minor units as Brazilian reais: 150000 → "R$ 1.500,00".
func FormatBRL(cents int64) string {
	d := decimal.New(cents, -2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + "R$ " + groupThousands(whole) + "," + frac
}

// FormatSignedBRL prefixes outcomes with "- " the way ledger rows and the
// total card show them. The amount itself is rendered unsigned.
func FormatSignedBRL(cents int64, negative bool) string {
	if cents < 0 {
		cents = -cents
	}
	if negative {
		return "- " + FormatBRL(cents)
	}
	return FormatBRL(cents)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ParseBRL reads an amount typed in reais ("15,50", "1.500,00", "R$ 20",
// "15.5") and returns minor units. At most two decimal places are allowed.
func ParseBRL(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" || strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}

	switch {
	case strings.Contains(s, ","):
		// pt-BR: dots group thousands, the comma is the decimal mark.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case strings.Contains(s, "."):
		// A single dot followed by exactly three digits groups thousands.
		if _, frac, _ := strings.Cut(s, "."); len(frac) == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return 0, ErrInvalidAmount
	}
	cents := d.Mul(hundred)
	if !cents.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// FormatDate renders an API date ("2024-05-03" or an RFC 3339 timestamp) as
// dd/MM/yyyy. Timestamps keep their calendar day as sent.
func FormatDate(raw string) string {
	if len(raw) >= len(domain.DateLayout) {
		if d, err := time.Parse(domain.DateLayout, raw[:len(domain.DateLayout)]); err == nil {
			return d.Format("02/01/2006")
		}
	}
	return raw
}

// FormatPercent renders a share with a comma decimal mark: 12.5 → "12,5".
func FormatPercent(p domain.Percent) string {
	return strings.Replace(decimal.NewFromFloat(float64(p)).String(), ".", ",", 1)
}
