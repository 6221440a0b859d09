package liquidity

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	nextID   int64
	balances map[int64]map[domain.Medio]*domain.LiquidityBalance
	history  []*domain.LiquidityHistory
	ensures  int
	clock    func() time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		balances: map[int64]map[domain.Medio]*domain.LiquidityBalance{},
		clock:    time.Now,
	}
}

func (r *memRepo) ListBalances(_ context.Context, userID int64) ([]*domain.LiquidityBalance, error) {
	var out []*domain.LiquidityBalance
	for _, b := range r.balances[userID] {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memRepo) EnsureBalances(_ context.Context, userID int64, medios []domain.Medio) error {
	r.ensures++
	if r.balances[userID] == nil {
		r.balances[userID] = map[domain.Medio]*domain.LiquidityBalance{}
	}
	for _, m := range medios {
		if _, ok := r.balances[userID][m]; ok {
			continue
		}
		r.nextID++
		r.balances[userID][m] = &domain.LiquidityBalance{ID: r.nextID, UserID: userID, Medio: m, Balance: decimal.Zero}
	}
	return nil
}

func (r *memRepo) SaveBalance(ctx context.Context, userID int64, medio domain.Medio, balance decimal.Decimal) (*domain.LiquidityBalance, error) {
	if err := r.EnsureBalances(ctx, userID, []domain.Medio{medio}); err != nil {
		return nil, err
	}
	b := r.balances[userID][medio]
	b.Balance = balance
	b.UpdatedAt = r.clock()

	r.nextID++
	r.history = append(r.history, &domain.LiquidityHistory{
		ID: r.nextID, UserID: userID, Medio: medio, Balance: balance, CreatedAt: r.clock(),
	})
	cp := *b
	return &cp, nil
}

func (r *memRepo) ListHistory(_ context.Context, userID int64, from, to time.Time) ([]*domain.LiquidityHistory, error) {
	var out []*domain.LiquidityHistory
	for _, h := range r.history {
		if h.UserID != userID {
			continue
		}
		if !from.IsZero() && h.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && h.CreatedAt.After(to) {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func TestGetBalances_CompleteOnFirstCall(t *testing.T) {
	svc := NewService(newMemRepo())

	balances, err := svc.GetBalances(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, balances, len(domain.Medios))

	seen := map[domain.Medio]bool{}
	for i, b := range balances {
		assert.True(t, b.Balance.IsZero())
		seen[b.Medio] = true
		if i > 0 {
			assert.Less(t, string(balances[i-1].Medio), string(b.Medio), "balances must be sorted by medio")
		}
	}
	assert.Len(t, seen, len(domain.Medios))
}

func TestGetBalances_OnlyMaterializesMissing(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.UpdateBalance(ctx, 1, "Nequi", decimal.NewFromInt(5000))
	require.NoError(t, err)
	ensuresBefore := repo.ensures

	balances, err := svc.GetBalances(ctx, 1)
	require.NoError(t, err)
	require.Len(t, balances, len(domain.Medios))
	assert.Equal(t, ensuresBefore+1, repo.ensures)

	for _, b := range balances {
		if b.Medio == domain.MedioNequi {
			assert.True(t, decimal.NewFromInt(5000).Equal(b.Balance))
		}
	}

	_, err = svc.GetBalances(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ensuresBefore+1, repo.ensures, "complete set needs no further materialization")
}

func TestUpdateBalance_Validation(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	_, err := svc.UpdateBalance(ctx, 1, "Paypal", decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.UpdateBalance(ctx, 1, "Efectivo", decimal.NewFromInt(-1))
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "balance", vErr.Field)
}

func TestUpdateBalance_AppendsHistoryEveryTime(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for _, v := range []int64{100, 100, 250} {
		_, err := svc.UpdateBalance(ctx, 7, "BBVA", decimal.NewFromInt(v))
		require.NoError(t, err)
	}

	history, err := svc.GetHistory(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	other, err := svc.GetHistory(ctx, 8)
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.Empty(t, other)
}

func TestGetTotalLiquidity(t *testing.T) {
	svc := NewService(newMemRepo())
	ctx := context.Background()

	_, err := svc.UpdateBalance(ctx, 1, "Efectivo", decimal.RequireFromString("1500.50"))
	require.NoError(t, err)
	_, err = svc.UpdateBalance(ctx, 1, "NU", decimal.NewFromInt(2000))
	require.NoError(t, err)

	total, err := svc.GetTotalLiquidity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "3500.5", total.String())
}

func TestGetHistoryByDate(t *testing.T) {
	loc := time.FixedZone("COT", -5*60*60)
	repo := newMemRepo()
	svc := NewService(repo).WithLocation(loc)
	ctx := context.Background()

	stamps := []time.Time{
		time.Date(2024, 3, 9, 23, 59, 59, 0, loc),
		time.Date(2024, 3, 10, 0, 0, 0, 0, loc),
		time.Date(2024, 3, 10, 23, 59, 59, int(999*time.Millisecond), loc),
		time.Date(2024, 3, 11, 0, 0, 0, 0, loc),
	}
	for _, ts := range stamps {
		ts := ts
		repo.clock = func() time.Time { return ts }
		_, err := svc.UpdateBalance(ctx, 1, "Daviplata", decimal.NewFromInt(1))
		require.NoError(t, err)
	}

	got, err := svc.GetHistoryByDate(ctx, 1, civil.Date{Year: 2024, Month: time.March, Day: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
}

func TestDayWindow(t *testing.T) {
	from, to := DayWindow(civil.Date{Year: 2024, Month: time.January, Day: 31}, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999000000, time.UTC), to)
}

func TestGetBalances_IgnoresRetiredMedios(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	_, err := svc.UpdateBalance(ctx, 1, "Nequi", decimal.NewFromInt(100))
	require.NoError(t, err)
	repo.balances[1][domain.Medio("Paypal")] = &domain.LiquidityBalance{
		ID: 999, UserID: 1, Medio: "Paypal", Balance: decimal.NewFromInt(5000),
	}

	balances, err := svc.GetBalances(ctx, 1)
	require.NoError(t, err)
	require.Len(t, balances, len(domain.Medios))
	for _, b := range balances {
		assert.True(t, b.Medio.Valid(), "unexpected medio %q", b.Medio)
	}

	total, err := svc.GetTotalLiquidity(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(total), "total %s", total)
}
