package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// DateLayout is the canonical fecha format.
const DateLayout = "2006-01-02"

// ParseMonto parses a non-negative amount. Thousands separators (",", "_",
// spaces) and a leading "$" are stripped; "." is the decimal point.
func ParseMonto(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "$")
	clean = strings.NewReplacer(",", "", "_", "", " ", "").Replace(clean)
	if clean == "" {
		return decimal.Zero, NewValidationError("monto", "monto es requerido")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, NewValidationError("monto", fmt.Sprintf("monto inválido: %q", s))
	}
	if d.IsNegative() {
		return decimal.Zero, NewValidationError("monto", "monto no puede ser negativo")
	}
	return d, nil
}

// ParseFecha parses a calendar date. Values containing "/" are read as
// DD/MM/YYYY; otherwise YYYY-MM-DD, optionally followed by a time part.
func ParseFecha(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, NewValidationError("fecha", "fecha es requerida")
	}

	if strings.Contains(s, "/") {
		return parseDayFirst(s)
	}

	if d, err := civil.ParseDate(s); err == nil {
		return d, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return civil.DateOf(t), nil
	}
	if len(s) > len(DateLayout) {
		if d, err := civil.ParseDate(s[:len(DateLayout)]); err == nil {
			return d, nil
		}
	}
	return civil.Date{}, NewValidationError("fecha", fmt.Sprintf("fecha inválida: %q", s))
}

func parseDayFirst(s string) (civil.Date, error) {
	invalid := NewValidationError("fecha", fmt.Sprintf("fecha inválida: %q", s))

	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return civil.Date{}, invalid
	}
	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return civil.Date{}, invalid
	}

	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	if !d.IsValid() {
		return civil.Date{}, invalid
	}
	return d, nil
}
