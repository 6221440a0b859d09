package liquidity

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/shopspring/decimal"
)

// Service implements the liquidity use cases.
type Service struct {
	repo Repository
	loc  *time.Location
}

// NewService creates a liquidity service. Day windows use the server's
// local time zone.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, loc: time.Local}
}

// WithLocation overrides the time zone used for day windows.
func (s *Service) WithLocation(loc *time.Location) *Service {
	s.loc = loc
	return s
}

// GetBalances returns exactly one balance per medio, sorted by medio.
// Missing rows are created at zero first.
func (s *Service) GetBalances(ctx context.Context, userID int64) ([]*domain.LiquidityBalance, error) {
	balances, err := s.repo.ListBalances(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetBalances: listing: %w", err)
	}

	missing := missingMedios(balances)
	if len(missing) > 0 {
		log := logger.FromContext(ctx)
		log.Debug().
			Int64("user_id", userID).
			Int("missing", len(missing)).
			Msg("Materializing missing liquidity balances")

		if err := s.repo.EnsureBalances(ctx, userID, missing); err != nil {
			return nil, fmt.Errorf("GetBalances: materializing: %w", err)
		}
		if balances, err = s.repo.ListBalances(ctx, userID); err != nil {
			return nil, fmt.Errorf("GetBalances: relisting: %w", err)
		}
	}

	// Rows for medios no longer offered stay in the table but are not reported.
	balances = slices.DeleteFunc(balances, func(b *domain.LiquidityBalance) bool {
		return !b.Medio.Valid()
	})
	slices.SortFunc(balances, func(a, b *domain.LiquidityBalance) int {
		return strings.Compare(string(a.Medio), string(b.Medio))
	})
	return balances, nil
}

// UpdateBalance sets the balance of medio and records a history snapshot.
func (s *Service) UpdateBalance(ctx context.Context, userID int64, medio string, balance decimal.Decimal) (*domain.LiquidityBalance, error) {
	m, err := domain.ParseMedio(medio)
	if err != nil {
		return nil, err
	}
	if balance.IsNegative() {
		return nil, domain.NewValidationError("balance", "el balance no puede ser negativo")
	}

	saved, err := s.repo.SaveBalance(ctx, userID, m, balance)
	if err != nil {
		return nil, fmt.Errorf("UpdateBalance: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int64("user_id", userID).
		Str("medio", string(m)).
		Str("balance", balance.String()).
		Msg("Liquidity balance updated")
	return saved, nil
}

// GetTotalLiquidity sums the balances reported by GetBalances.
func (s *Service) GetTotalLiquidity(ctx context.Context, userID int64) (decimal.Decimal, error) {
	balances, err := s.GetBalances(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	return total, nil
}

// GetHistory returns every snapshot, newest first.
func (s *Service) GetHistory(ctx context.Context, userID int64) ([]*domain.LiquidityHistory, error) {
	return s.history(ctx, userID, time.Time{}, time.Time{})
}

// GetHistoryByDate returns the snapshots taken during date, newest first.
func (s *Service) GetHistoryByDate(ctx context.Context, userID int64, date civil.Date) ([]*domain.LiquidityHistory, error) {
	if !date.IsValid() {
		return nil, domain.NewValidationError("date", fmt.Sprintf("fecha inválida: %q", date.String()))
	}
	from, to := DayWindow(date, s.loc)
	return s.history(ctx, userID, from, to)
}

func (s *Service) history(ctx context.Context, userID int64, from, to time.Time) ([]*domain.LiquidityHistory, error) {
	h, err := s.repo.ListHistory(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("GetHistory: %w", err)
	}
	if h == nil {
		h = []*domain.LiquidityHistory{}
	}
	return h, nil
}

// DayWindow returns [00:00:00.000, 23:59:59.999] of date in loc.
func DayWindow(date civil.Date, loc *time.Location) (time.Time, time.Time) {
	start := date.In(loc)
	end := time.Date(date.Year, date.Month, date.Day, 23, 59, 59, int(999*time.Millisecond), loc)
	return start, end
}

func missingMedios(balances []*domain.LiquidityBalance) []domain.Medio {
	have := make(map[domain.Medio]bool, len(balances))
	for _, b := range balances {
		have[b.Medio] = true
	}
	var missing []domain.Medio
	for _, m := range domain.Medios {
		if !have[m] {
			missing = append(missing, m)
		}
	}
	return missing
}
