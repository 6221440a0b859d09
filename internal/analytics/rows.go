package analytics

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
)

// TransactionRow is one exported ledger line in <dataset>.transactions.
// Every export writes a full snapshot tagged with ExportID.
type TransactionRow struct {
	ExportID      string `bigquery:"export_id"`      // REQUIRED
	TransactionID int64  `bigquery:"transaction_id"` // REQUIRED
	UserID        int64  `bigquery:"user_id"`        // REQUIRED

	Categoria   string `bigquery:"categoria"`
	Descripcion string `bigquery:"descripcion"`
	Tipo        string `bigquery:"tipo"`
	Medio       string `bigquery:"medio"`

	Monto *big.Rat `bigquery:"monto"` // NUMERIC
	Valor *big.Rat `bigquery:"valor"` // NUMERIC

	Fecha         civil.Date          `bigquery:"fecha"`
	Observaciones bigquery.NullString `bigquery:"observaciones"`

	CreatedTS  time.Time `bigquery:"created_ts"`
	UpdatedTS  time.Time `bigquery:"updated_ts"`
	ExportedTS time.Time `bigquery:"exported_ts"`
}

// NewTransactionRow maps tx into the export schema.
func NewTransactionRow(exportID string, tx *domain.Transaction, exportedAt time.Time) *TransactionRow {
	row := &TransactionRow{
		ExportID:      exportID,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Categoria:     string(tx.Categoria),
		Descripcion:   tx.Descripcion,
		Tipo:          string(tx.Tipo),
		Medio:         string(tx.Medio),
		Monto:         tx.Monto.Rat(),
		Valor:         tx.Valor.Rat(),
		Fecha:         tx.Fecha,
		CreatedTS:     tx.CreatedAt,
		UpdatedTS:     tx.UpdatedAt,
		ExportedTS:    exportedAt,
	}
	if tx.Observaciones != nil {
		row.Observaciones = bigquery.NullString{StringVal: *tx.Observaciones, Valid: true}
	}
	return row
}

// insertID makes streaming retries of the same export idempotent.
func (r *TransactionRow) insertID() string {
	return fmt.Sprintf("%s-%d", r.ExportID, r.TransactionID)
}

// cashFlowRow is one row of the monthly aggregate query.
type cashFlowRow struct {
	Period   string  `bigquery:"period"`
	Ingresos float64 `bigquery:"ingresos"`
	Egresos  float64 `bigquery:"egresos"`
	Ahorros  float64 `bigquery:"ahorros"`
	Neto     float64 `bigquery:"neto"`
	N        int64   `bigquery:"n"`
}
