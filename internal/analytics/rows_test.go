package analytics

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransactionRow(t *testing.T) {
	notes := "Mercado de la semana"
	created := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	exported := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	tx := &domain.Transaction{
		ID:            10,
		UserID:        2,
		Categoria:     domain.CategoriaNecesidad,
		Descripcion:   "Alimentacion necesaria",
		Tipo:          domain.TipoEgreso,
		Monto:         decimal.RequireFromString("120000.50"),
		Valor:         decimal.RequireFromString("-120000.50"),
		Medio:         domain.MedioBancolombia,
		Fecha:         civil.Date{Year: 2024, Month: time.January, Day: 15},
		Observaciones: &notes,
		CreatedAt:     created,
		UpdatedAt:     created,
	}

	row := NewTransactionRow("exp-1", tx, exported)

	assert.Equal(t, "exp-1", row.ExportID)
	assert.Equal(t, int64(10), row.TransactionID)
	assert.Equal(t, int64(2), row.UserID)
	assert.Equal(t, "Necesidad", row.Categoria)
	assert.Equal(t, "Bancolombia", row.Medio)
	assert.Equal(t, 0, row.Monto.Cmp(big.NewRat(240001, 2)))
	assert.Equal(t, 0, row.Valor.Cmp(big.NewRat(-240001, 2)))
	assert.Equal(t, tx.Fecha, row.Fecha)
	assert.Equal(t, bigquery.NullString{StringVal: notes, Valid: true}, row.Observaciones)
	assert.Equal(t, exported, row.ExportedTS)
	assert.Equal(t, "exp-1-10", row.insertID())

	tx.Observaciones = nil
	assert.False(t, NewTransactionRow("exp-1", tx, exported).Observaciones.Valid)
}

func TestTransactionRowSchema(t *testing.T) {
	schema, err := bigquery.InferSchema(TransactionRow{})
	require.NoError(t, err)

	types := map[string]bigquery.FieldType{}
	for _, f := range schema {
		types[f.Name] = f.Type
	}
	assert.Equal(t, bigquery.NumericFieldType, types["monto"])
	assert.Equal(t, bigquery.DateFieldType, types["fecha"])
	assert.Equal(t, bigquery.IntegerFieldType, types["transaction_id"])
	assert.Equal(t, bigquery.StringFieldType, types["observaciones"])
}

func TestCashFlowRow(t *testing.T) {
	cf := cashFlowRow{Period: "2024-01", Ingresos: 1000, Egresos: 250.5, Ahorros: 100, Neto: 849.5, N: 4}.toCashFlow()
	assert.Equal(t, "2024-01", cf.Period)
	assert.Equal(t, "250.5", cf.Egresos.String())
	assert.Equal(t, "849.5", cf.Neto.String())
	assert.Equal(t, 4, cf.Count)
}
