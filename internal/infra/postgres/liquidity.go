package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LiquidityRepository stores per-medio balances and their history.
type LiquidityRepository struct {
	pool *pgxpool.Pool
}

// NewLiquidityRepository creates a repository backed by pool.
func NewLiquidityRepository(pool *pgxpool.Pool) *LiquidityRepository {
	return &LiquidityRepository{pool: pool}
}

func (r *LiquidityRepository) resync(ctx context.Context, table string) error {
	return resyncSequence(ctx, r.pool, table)
}

// ListBalances returns the stored balances of userID ordered by medio.
func (r *LiquidityRepository) ListBalances(ctx context.Context, userID int64) ([]*domain.LiquidityBalance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, medio, balance, created_at, updated_at
		 FROM liquidity_balances
		 WHERE user_id = $1
		 ORDER BY medio`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListBalances: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.LiquidityBalance
	for rows.Next() {
		var (
			b     domain.LiquidityBalance
			medio string
		)
		if err := rows.Scan(&b.ID, &b.UserID, &medio, &b.Balance, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ListBalances: scan: %w", err)
		}
		b.Medio = domain.Medio(medio)
		out = append(out, &b)
	}
	return out, rows.Err()
}

// EnsureBalances creates zero balances for the given medios. Rows that
// already exist are left untouched.
func (r *LiquidityRepository) EnsureBalances(ctx context.Context, userID int64, medios []domain.Medio) error {
	if len(medios) == 0 {
		return nil
	}

	err := withSequenceRepair(ctx, r.resync, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.pool, func(dbtx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, m := range medios {
				batch.Queue(
					`INSERT INTO liquidity_balances (user_id, medio, balance)
					 VALUES ($1, $2, 0)
					 ON CONFLICT (user_id, medio) DO NOTHING`,
					userID, string(m),
				)
			}
			return dbtx.SendBatch(ctx, batch).Close()
		})
	})
	if err != nil {
		return fmt.Errorf("EnsureBalances: %w", err)
	}
	return nil
}

// SaveBalance upserts the balance of medio and appends a history snapshot,
// both in one database transaction.
func (r *LiquidityRepository) SaveBalance(ctx context.Context, userID int64, medio domain.Medio, balance decimal.Decimal) (*domain.LiquidityBalance, error) {
	var saved domain.LiquidityBalance

	err := withSequenceRepair(ctx, r.resync, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.pool, func(dbtx pgx.Tx) error {
			var m string
			err := dbtx.QueryRow(ctx,
				`INSERT INTO liquidity_balances (user_id, medio, balance)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (user_id, medio)
				 DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()
				 RETURNING id, user_id, medio, balance, created_at, updated_at`,
				userID, string(medio), balance,
			).Scan(&saved.ID, &saved.UserID, &m, &saved.Balance, &saved.CreatedAt, &saved.UpdatedAt)
			if err != nil {
				return fmt.Errorf("upserting balance: %w", err)
			}
			saved.Medio = domain.Medio(m)

			if _, err := dbtx.Exec(ctx,
				`INSERT INTO liquidity_history (user_id, medio, balance) VALUES ($1, $2, $3)`,
				userID, string(medio), balance,
			); err != nil {
				return fmt.Errorf("appending history: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("SaveBalance: %w", err)
	}
	return &saved, nil
}

// ListHistory returns history snapshots newest first. A zero from or to
// leaves that side of the window open.
func (r *LiquidityRepository) ListHistory(ctx context.Context, userID int64, from, to time.Time) ([]*domain.LiquidityHistory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, medio, balance, created_at
		 FROM liquidity_history
		 WHERE user_id = $1
		   AND ($2::timestamptz IS NULL OR created_at >= $2::timestamptz)
		   AND ($3::timestamptz IS NULL OR created_at <= $3::timestamptz)
		 ORDER BY created_at DESC, id DESC`,
		userID, timeArg(from), timeArg(to),
	)
	if err != nil {
		return nil, fmt.Errorf("ListHistory: query: %w", err)
	}
	defer rows.Close()

	var out []*domain.LiquidityHistory
	for rows.Next() {
		var (
			h     domain.LiquidityHistory
			medio string
		)
		if err := rows.Scan(&h.ID, &h.UserID, &medio, &h.Balance, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListHistory: scan: %w", err)
		}
		h.Medio = domain.Medio(medio)
		out = append(out, &h)
	}
	return out, rows.Err()
}

func timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
