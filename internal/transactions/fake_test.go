package transactions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]*domain.Transaction
	failErr error
	batches int
}

func newMemRepo() *memRepo {
	return &memRepo{nextID: 1, rows: make(map[int64]*domain.Transaction)}
}

func (m *memRepo) Insert(ctx context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.insertLocked(tx)
	return nil
}

func (m *memRepo) insertLocked(tx *domain.Transaction) {
	tx.ID = m.nextID
	m.nextID++
	now := time.Now().Add(time.Duration(tx.ID) * time.Millisecond)
	tx.CreatedAt, tx.UpdatedAt = now, now
	cp := *tx
	m.rows[tx.ID] = &cp
}

func (m *memRepo) InsertBatch(ctx context.Context, txs []*domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.batches++
	for _, tx := range txs {
		m.insertLocked(tx)
	}
	return nil
}

func (m *memRepo) Get(ctx context.Context, userID, id int64) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.rows[id]
	if !ok || tx.UserID != userID {
		return nil, fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	cp := *tx
	return &cp, nil
}

func (m *memRepo) List(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range m.rows {
		if tx.UserID == userID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fecha != out[j].Fecha {
			return out[j].Fecha.Before(out[i].Fecha)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memRepo) Update(ctx context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[tx.ID]
	if !ok || cur.UserID != tx.UserID {
		return domain.ErrNotFound
	}
	tx.UpdatedAt = time.Now()
	cp := *tx
	m.rows[tx.ID] = &cp
	return nil
}

func (m *memRepo) Delete(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.rows[id]
	if !ok || tx.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRepo) DeleteAll(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, tx := range m.rows {
		if tx.UserID == userID {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) MonthlyCashFlow(ctx context.Context, userID int64, from, to civil.Date) ([]domain.CashFlow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buckets := map[string]*domain.CashFlow{}
	for _, tx := range m.rows {
		if tx.UserID != userID {
			continue
		}
		if from.IsValid() && tx.Fecha.Before(from) {
			continue
		}
		if to.IsValid() && tx.Fecha.After(to) {
			continue
		}
		key := fmt.Sprintf("%04d-%02d", tx.Fecha.Year, int(tx.Fecha.Month))
		b, ok := buckets[key]
		if !ok {
			b = &domain.CashFlow{Period: key}
			buckets[key] = b
		}
		switch tx.Tipo {
		case domain.TipoIngreso:
			b.Ingresos = b.Ingresos.Add(tx.Valor)
		case domain.TipoEgreso:
			b.Egresos = b.Egresos.Add(tx.Valor.Abs())
		case domain.TipoAhorro:
			b.Ahorros = b.Ahorros.Add(tx.Valor)
		}
		b.Neto = b.Neto.Add(tx.Valor)
		b.Count++
	}
	var out []domain.CashFlow
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

var _ Repository = (*memRepo)(nil)
