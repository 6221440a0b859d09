package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Categoria is the budgeting bucket a transaction belongs to.
type Categoria string

const (
	CategoriaNecesidad Categoria = "Necesidad"
	CategoriaLujo      Categoria = "Lujo"
	CategoriaAhorro    Categoria = "Ahorro"
	CategoriaEntrada   Categoria = "Entrada"
)

// Categorias lists every valid Categoria.
var Categorias = []Categoria{CategoriaNecesidad, CategoriaLujo, CategoriaAhorro, CategoriaEntrada}

// Tipo is the direction of money movement.
type Tipo string

const (
	TipoIngreso Tipo = "Ingreso"
	TipoEgreso  Tipo = "Egreso"
	TipoAhorro  Tipo = "Ahorro"
)

// Tipos lists every valid Tipo.
var Tipos = []Tipo{TipoIngreso, TipoEgreso, TipoAhorro}

// Medio is a payment method token.
type Medio string

const (
	MedioEfectivo    Medio = "Efectivo"
	MedioNU          Medio = "NU"
	MedioDaviplata   Medio = "Daviplata"
	MedioNequi       Medio = "Nequi"
	MedioBBVA        Medio = "BBVA"
	MedioBancolombia Medio = "Bancolombia"
	MedioDavivienda  Medio = "Davivienda"
	MedioOtro        Medio = "Otro"
)

// Medios lists every valid Medio in display order.
var Medios = []Medio{
	MedioEfectivo,
	MedioNU,
	MedioDaviplata,
	MedioNequi,
	MedioBBVA,
	MedioBancolombia,
	MedioDavivienda,
	MedioOtro,
}

// Valid reports whether c is one of Categorias.
func (c Categoria) Valid() bool {
	for _, v := range Categorias {
		if c == v {
			return true
		}
	}
	return false
}

// Valid reports whether t is one of Tipos.
func (t Tipo) Valid() bool {
	for _, v := range Tipos {
		if t == v {
			return true
		}
	}
	return false
}

// Valid reports whether m is one of Medios.
func (m Medio) Valid() bool {
	for _, v := range Medios {
		if m == v {
			return true
		}
	}
	return false
}

// ParseCategoria converts s into a Categoria.
func ParseCategoria(s string) (Categoria, error) {
	c := Categoria(strings.TrimSpace(s))
	if !c.Valid() {
		return "", NewValidationError("categoria", fmt.Sprintf("categoria inválida: %q", s))
	}
	return c, nil
}

// ParseTipo converts s into a Tipo.
func ParseTipo(s string) (Tipo, error) {
	t := Tipo(strings.TrimSpace(s))
	if !t.Valid() {
		return "", NewValidationError("tipo", fmt.Sprintf("tipo inválido: %q", s))
	}
	return t, nil
}

// ParseMedio converts s into a Medio.
func ParseMedio(s string) (Medio, error) {
	m := Medio(strings.TrimSpace(s))
	if !m.Valid() {
		return "", NewValidationError("medio", fmt.Sprintf("medio inválido: %q", s))
	}
	return m, nil
}

// ExpectedTipo returns the only Tipo allowed for a Categoria.
func ExpectedTipo(c Categoria) Tipo {
	switch c {
	case CategoriaEntrada:
		return TipoIngreso
	case CategoriaAhorro:
		return TipoAhorro
	default:
		return TipoEgreso
	}
}

// ValidatePair checks the categoria -> tipo mapping.
func ValidatePair(c Categoria, t Tipo) error {
	if want := ExpectedTipo(c); t != want {
		return NewValidationError("tipo", fmt.Sprintf("la categoría %s requiere tipo %s, no %s", c, want, t))
	}
	return nil
}

// Transaction is one financial event owned by a user.
type Transaction struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"userId"`
	Categoria     Categoria       `json:"categoria"`
	Descripcion   string          `json:"descripcion"`
	Tipo          Tipo            `json:"tipo"`
	Monto         decimal.Decimal `json:"monto"`
	Medio         Medio           `json:"medio"`
	Fecha         civil.Date      `json:"fecha"`
	Observaciones *string         `json:"observaciones"`
	Valor         decimal.Decimal `json:"valor"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// SignedValue is -|monto| for Egreso and |monto| otherwise.
func SignedValue(t Tipo, monto decimal.Decimal) decimal.Decimal {
	if t == TipoEgreso {
		return monto.Abs().Neg()
	}
	return monto.Abs()
}

// Recompute refreshes Valor from Tipo and Monto.
func (t *Transaction) Recompute() {
	t.Valor = SignedValue(t.Tipo, t.Monto)
}
