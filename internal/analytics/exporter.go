package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const transactionsTable = "transactions"

// Exporter mirrors ledgers into BigQuery and reads aggregates back.
type Exporter struct {
	client  *bigquery.Client
	dataset string
	now     func() time.Time
}

// NewExporter creates an exporter for projectID.dataset. opts are passed to
// the BigQuery client (e.g. option.WithCredentialsFile).
func NewExporter(ctx context.Context, projectID, dataset string, opts ...option.ClientOption) (*Exporter, error) {
	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: creating client: %w", err)
	}
	return &Exporter{client: client, dataset: dataset, now: time.Now}, nil
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	return e.client.Close()
}

func (e *Exporter) table() *bigquery.Table {
	return e.client.Dataset(e.dataset).Table(transactionsTable)
}

// EnsureTable creates the transactions table if it does not exist.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: inferring schema: %w", err)
	}

	err = e.table().Create(ctx, &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.MonthPartitioningType,
			Field: "fecha",
		},
	})
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureTable: %w", err)
	}
	return nil
}

// ExportTransactions streams a snapshot of txs for userID and returns its
// export id.
func (e *Exporter) ExportTransactions(ctx context.Context, userID int64, txs []*domain.Transaction) (string, error) {
	exportID := uuid.New().String()
	now := e.now().UTC()

	savers := make([]*bigquery.StructSaver, 0, len(txs))
	for _, tx := range txs {
		row := NewTransactionRow(exportID, tx, now)
		savers = append(savers, &bigquery.StructSaver{Struct: row, InsertID: row.insertID()})
	}
	if len(savers) == 0 {
		return exportID, nil
	}

	if err := e.table().Inserter().Put(ctx, savers); err != nil {
		return "", fmt.Errorf("ExportTransactions: inserting %d rows: %w", len(savers), err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int64("user_id", userID).
		Str("export_id", exportID).
		Int("rows", len(savers)).
		Msg("Ledger exported to BigQuery")
	return exportID, nil
}

// MonthlyCashFlow aggregates the user's latest snapshot per month.
func (e *Exporter) MonthlyCashFlow(ctx context.Context, userID int64) ([]domain.CashFlow, error) {
	q := e.client.Query(fmt.Sprintf(`
		WITH latest AS (
			SELECT export_id
			FROM %[1]s
			WHERE user_id = @user_id
			ORDER BY exported_ts DESC
			LIMIT 1
		)
		SELECT
			FORMAT_DATE('%%Y-%%m', fecha) AS period,
			CAST(COALESCE(SUM(IF(tipo = 'Ingreso', valor, 0)), 0) AS FLOAT64) AS ingresos,
			CAST(COALESCE(SUM(IF(tipo = 'Egreso', -valor, 0)), 0) AS FLOAT64) AS egresos,
			CAST(COALESCE(SUM(IF(tipo = 'Ahorro', valor, 0)), 0) AS FLOAT64) AS ahorros,
			CAST(COALESCE(SUM(valor), 0) AS FLOAT64) AS neto,
			COUNT(*) AS n
		FROM %[1]s t
		JOIN latest USING (export_id)
		WHERE t.user_id = @user_id
		GROUP BY period
		ORDER BY period
	`, "`"+e.dataset+"."+transactionsTable+"`"))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("MonthlyCashFlow: query read: %w", err)
	}

	var out []domain.CashFlow
	for {
		var r cashFlowRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("MonthlyCashFlow: iter next: %w", err)
		}
		out = append(out, r.toCashFlow())
	}
	return out, nil
}

func (r cashFlowRow) toCashFlow() domain.CashFlow {
	return domain.CashFlow{
		Period:   r.Period,
		Ingresos: decimal.NewFromFloat(r.Ingresos),
		Egresos:  decimal.NewFromFloat(r.Egresos),
		Ahorros:  decimal.NewFromFloat(r.Ahorros),
		Neto:     decimal.NewFromFloat(r.Neto),
		Count:    int(r.N),
	}
}
