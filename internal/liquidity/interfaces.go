package liquidity

import (
	"context"
	"time"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/shopspring/decimal"
)

// Repository persists balances and their append-only history.
type Repository interface {
	// ListBalances returns the stored balances of the user.
	ListBalances(ctx context.Context, userID int64) ([]*domain.LiquidityBalance, error)

	// EnsureBalances creates zero balances for medios that have none yet.
	EnsureBalances(ctx context.Context, userID int64, medios []domain.Medio) error

	// SaveBalance upserts the balance and appends a history row atomically.
	SaveBalance(ctx context.Context, userID int64, medio domain.Medio, balance decimal.Decimal) (*domain.LiquidityBalance, error)

	// ListHistory returns snapshots newest first within [from, to]; a zero
	// bound leaves that side open.
	ListHistory(ctx context.Context, userID int64, from, to time.Time) ([]*domain.LiquidityHistory, error)
}
