package transactions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/gestapp/internal/domain"
)

// Amount accepts a JSON number or a JSON string such as "2,500".
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("monto must be a number or string: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Input is the payload for creating a transaction.
type Input struct {
	Categoria     string  `json:"categoria"`
	Descripcion   string  `json:"descripcion"`
	Tipo          string  `json:"tipo"`
	Monto         *Amount `json:"monto"`
	Medio         string  `json:"medio"`
	Fecha         string  `json:"fecha"`
	Observaciones *string `json:"observaciones,omitempty"`
}

// Patch is a partial update; nil fields keep their stored value.
type Patch struct {
	Categoria     *string `json:"categoria,omitempty"`
	Descripcion   *string `json:"descripcion,omitempty"`
	Tipo          *string `json:"tipo,omitempty"`
	Monto         *Amount `json:"monto,omitempty"`
	Medio         *string `json:"medio,omitempty"`
	Fecha         *string `json:"fecha,omitempty"`
	Observaciones *string `json:"observaciones,omitempty"`
}

// Validate turns an Input into a transaction with its signed value computed.
// The first invalid field is returned as a *domain.ValidationError.
func Validate(in Input) (*domain.Transaction, error) {
	if in.Monto == nil {
		return nil, domain.NewValidationError("monto", "monto es requerido")
	}
	monto, err := domain.ParseMonto(string(*in.Monto))
	if err != nil {
		return nil, err
	}
	categoria, err := domain.ParseCategoria(in.Categoria)
	if err != nil {
		return nil, err
	}
	tipo, err := domain.ParseTipo(in.Tipo)
	if err != nil {
		return nil, err
	}
	medio, err := domain.ParseMedio(in.Medio)
	if err != nil {
		return nil, err
	}
	fecha, err := domain.ParseFecha(in.Fecha)
	if err != nil {
		return nil, err
	}
	descripcion := strings.TrimSpace(in.Descripcion)
	if descripcion == "" {
		return nil, domain.NewValidationError("descripcion", "descripcion es requerida")
	}
	if err := domain.ValidatePair(categoria, tipo); err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		Categoria:     categoria,
		Descripcion:   descripcion,
		Tipo:          tipo,
		Monto:         monto,
		Medio:         medio,
		Fecha:         fecha,
		Observaciones: normalizeNotes(in.Observaciones),
	}
	tx.Recompute()
	return tx, nil
}

// Apply merges p into a copy of tx, validating each supplied field, and
// recomputes valor from the resulting tipo and monto.
func (p Patch) Apply(tx domain.Transaction) (*domain.Transaction, error) {
	if p.Categoria != nil {
		c, err := domain.ParseCategoria(*p.Categoria)
		if err != nil {
			return nil, err
		}
		tx.Categoria = c
	}
	if p.Descripcion != nil {
		d := strings.TrimSpace(*p.Descripcion)
		if d == "" {
			return nil, domain.NewValidationError("descripcion", "descripcion es requerida")
		}
		tx.Descripcion = d
	}
	if p.Tipo != nil {
		t, err := domain.ParseTipo(*p.Tipo)
		if err != nil {
			return nil, err
		}
		tx.Tipo = t
	}
	if p.Monto != nil {
		m, err := domain.ParseMonto(string(*p.Monto))
		if err != nil {
			return nil, err
		}
		tx.Monto = m
	}
	if p.Medio != nil {
		m, err := domain.ParseMedio(*p.Medio)
		if err != nil {
			return nil, err
		}
		tx.Medio = m
	}
	if p.Fecha != nil {
		f, err := domain.ParseFecha(*p.Fecha)
		if err != nil {
			return nil, err
		}
		tx.Fecha = f
	}
	if p.Observaciones != nil {
		tx.Observaciones = normalizeNotes(p.Observaciones)
	}

	if err := domain.ValidatePair(tx.Categoria, tx.Tipo); err != nil {
		return nil, err
	}
	tx.Recompute()
	return &tx, nil
}

func normalizeNotes(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
