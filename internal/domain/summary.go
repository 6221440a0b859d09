package domain

import "github.com/shopspring/decimal"

// CashFlow aggregates signed values for a period. Egresos is a positive
// magnitude; Neto is the plain sum of every valor.
type CashFlow struct {
	Period   string          `json:"period"`
	Ingresos decimal.Decimal `json:"ingresos"`
	Egresos  decimal.Decimal `json:"egresos"`
	Ahorros  decimal.Decimal `json:"ahorros"`
	Neto     decimal.Decimal `json:"neto"`
	Count    int             `json:"count"`
}

// Add folds other into c.
func (c *CashFlow) Add(other CashFlow) {
	c.Ingresos = c.Ingresos.Add(other.Ingresos)
	c.Egresos = c.Egresos.Add(other.Egresos)
	c.Ahorros = c.Ahorros.Add(other.Ahorros)
	c.Neto = c.Neto.Add(other.Neto)
	c.Count += other.Count
}

// CashFlowSummary is a total plus per-month buckets ("YYYY-MM"), oldest first.
type CashFlowSummary struct {
	Total  CashFlow   `json:"total"`
	Months []CashFlow `json:"months"`
}
