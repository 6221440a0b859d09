package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/transactions"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, user_id, categoria, descripcion, tipo, monto, medio, fecha, observaciones, valor, created_at, updated_at`

const insertTransactionSQL = `
	INSERT INTO transactions (user_id, categoria, descripcion, tipo, monto, medio, fecha, observaciones, valor)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at, updated_at`

// TransactionRepository is the PostgreSQL implementation of transactions.Repository.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a repository backed by pool.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) resync(ctx context.Context, table string) error {
	return resyncSequence(ctx, r.pool, table)
}

func insertArgs(tx *domain.Transaction) []any {
	return []any{
		tx.UserID,
		string(tx.Categoria),
		tx.Descripcion,
		string(tx.Tipo),
		tx.Monto,
		string(tx.Medio),
		tx.Fecha.In(time.UTC),
		tx.Observaciones,
		tx.Valor,
	}
}

// Insert stores one transaction, repairing the id sequence once if needed.
func (r *TransactionRepository) Insert(ctx context.Context, tx *domain.Transaction) error {
	err := withSequenceRepair(ctx, r.resync, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, insertTransactionSQL, insertArgs(tx)...).
			Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// InsertBatch stores all transactions in one database transaction.
func (r *TransactionRepository) InsertBatch(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	err := withSequenceRepair(ctx, r.resync, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.pool, func(dbtx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, tx := range txs {
				tx := tx
				batch.Queue(insertTransactionSQL, insertArgs(tx)...).QueryRow(func(row pgx.Row) error {
					return row.Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
				})
			}
			return dbtx.SendBatch(ctx, batch).Close()
		})
	})
	if err != nil {
		return fmt.Errorf("InsertBatch: inserting %d rows: %w", len(txs), err)
	}
	return nil
}

// Get returns one transaction owned by userID.
func (r *TransactionRepository) Get(ctx context.Context, userID, id int64) (*domain.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transacción con ID %d no encontrada: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return tx, nil
}

// List returns the user's transactions by fecha then creation time, newest first.
func (r *TransactionRepository) List(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY fecha DESC, created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("List: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// Update overwrites the mutable columns of tx.
func (r *TransactionRepository) Update(ctx context.Context, tx *domain.Transaction) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE transactions
		 SET categoria = $3, descripcion = $4, tipo = $5, monto = $6, medio = $7,
		     fecha = $8, observaciones = $9, valor = $10, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING updated_at`,
		tx.ID, tx.UserID,
		string(tx.Categoria), tx.Descripcion, string(tx.Tipo), tx.Monto, string(tx.Medio),
		tx.Fecha.In(time.UTC), tx.Observaciones, tx.Valor,
	).Scan(&tx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("transacción con ID %d no encontrada: %w", tx.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

// Delete removes one transaction owned by userID.
func (r *TransactionRepository) Delete(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transacción con ID %d no encontrada: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteAll removes every transaction of userID.
func (r *TransactionRepository) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("DeleteAll: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MonthlyCashFlow aggregates valor per month within the optional [from, to] window.
func (r *TransactionRepository) MonthlyCashFlow(ctx context.Context, userID int64, from, to civil.Date) ([]domain.CashFlow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT
			to_char(date_trunc('month', fecha), 'YYYY-MM') AS period,
			COALESCE(SUM(valor) FILTER (WHERE tipo = 'Ingreso'), 0) AS ingresos,
			COALESCE(SUM(-valor) FILTER (WHERE tipo = 'Egreso'), 0) AS egresos,
			COALESCE(SUM(valor) FILTER (WHERE tipo = 'Ahorro'), 0) AS ahorros,
			COALESCE(SUM(valor), 0) AS neto,
			COUNT(*) AS n
		 FROM transactions
		 WHERE user_id = $1
		   AND ($2::date IS NULL OR fecha >= $2::date)
		   AND ($3::date IS NULL OR fecha <= $3::date)
		 GROUP BY 1
		 ORDER BY 1`,
		userID, dateArg(from), dateArg(to),
	)
	if err != nil {
		return nil, fmt.Errorf("MonthlyCashFlow: query: %w", err)
	}
	defer rows.Close()

	var out []domain.CashFlow
	for rows.Next() {
		var c domain.CashFlow
		if err := rows.Scan(&c.Period, &c.Ingresos, &c.Egresos, &c.Ahorros, &c.Neto, &c.Count); err != nil {
			return nil, fmt.Errorf("MonthlyCashFlow: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx                     domain.Transaction
		categoria, tipo, medio string
		fecha                  time.Time
	)
	err := row.Scan(
		&tx.ID, &tx.UserID, &categoria, &tx.Descripcion, &tipo, &tx.Monto, &medio,
		&fecha, &tx.Observaciones, &tx.Valor, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Categoria = domain.Categoria(categoria)
	tx.Tipo = domain.Tipo(tipo)
	tx.Medio = domain.Medio(medio)
	tx.Fecha = civil.DateOf(fecha)
	return &tx, nil
}

var _ transactions.Repository = (*TransactionRepository)(nil)
