package transactions

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/shopspring/decimal"
)

// Service implements the transaction use cases on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new transaction service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create validates in and stores it for userID.
func (s *Service) Create(ctx context.Context, userID int64, in Input) (*domain.Transaction, error) {
	tx, err := Validate(in)
	if err != nil {
		return nil, err
	}
	tx.UserID = userID

	if err := s.repo.Insert(ctx, tx); err != nil {
		return nil, fmt.Errorf("Create: inserting transaction: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Int64("user_id", userID).
		Int64("transaction_id", tx.ID).
		Str("valor", tx.Valor.String()).
		Msg("Transaction created")
	return tx, nil
}

// List returns the user's transactions, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	txs, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return txs, nil
}

// Get returns one transaction or domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id int64) (*domain.Transaction, error) {
	return s.repo.Get(ctx, userID, id)
}

// Update applies a partial update. Valor is recomputed from the new tipo or
// monto when supplied, else from the stored ones.
func (s *Service) Update(ctx context.Context, userID, id int64, p Patch) (*domain.Transaction, error) {
	current, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updated, err := p.Apply(*current)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, fmt.Errorf("Update: saving transaction %d: %w", id, err)
	}
	return updated, nil
}

// Delete removes one transaction.
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	return s.repo.Delete(ctx, userID, id)
}

// Purge removes every transaction of the user.
func (s *Service) Purge(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repo.DeleteAll(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("Purge: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int64("user_id", userID).
		Int64("deleted", n).
		Msg("Transactions purged")
	return n, nil
}

// Summary aggregates cash flow per month within [from, to].
func (s *Service) Summary(ctx context.Context, userID int64, from, to civil.Date) (*domain.CashFlowSummary, error) {
	if from.IsValid() && to.IsValid() && to.Before(from) {
		return nil, domain.NewValidationError("to", "la fecha final debe ser posterior a la inicial")
	}

	months, err := s.repo.MonthlyCashFlow(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	summary := &domain.CashFlowSummary{
		Total: domain.CashFlow{
			Period:   "total",
			Ingresos: decimal.Zero,
			Egresos:  decimal.Zero,
			Ahorros:  decimal.Zero,
			Neto:     decimal.Zero,
		},
		Months: months,
	}
	if summary.Months == nil {
		summary.Months = []domain.CashFlow{}
	}
	for _, m := range months {
		summary.Total.Add(m)
	}
	return summary, nil
}
