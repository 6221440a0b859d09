package transactions

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
)

// Repository persists transactions. Every method is scoped by user id; a row
// owned by another user behaves as missing (domain.ErrNotFound).
type Repository interface {
	// Insert stores tx and fills ID, CreatedAt and UpdatedAt.
	Insert(ctx context.Context, tx *domain.Transaction) error

	// InsertBatch stores all rows atomically.
	InsertBatch(ctx context.Context, txs []*domain.Transaction) error

	// Get returns one transaction.
	Get(ctx context.Context, userID, id int64) (*domain.Transaction, error)

	// List returns every transaction ordered by fecha then creation time, newest first.
	List(ctx context.Context, userID int64) ([]*domain.Transaction, error)

	// Update overwrites the mutable columns of tx and refreshes UpdatedAt.
	Update(ctx context.Context, tx *domain.Transaction) error

	// Delete removes one transaction.
	Delete(ctx context.Context, userID, id int64) error

	// DeleteAll removes every transaction of the user and returns the count.
	DeleteAll(ctx context.Context, userID int64) (int64, error)

	// MonthlyCashFlow aggregates valor per calendar month within [from, to].
	// A zero date leaves that side open.
	MonthlyCashFlow(ctx context.Context, userID int64, from, to civil.Date) ([]domain.CashFlow, error)
}
