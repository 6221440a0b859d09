package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotion struct {
	pages     map[string]notionapi.Properties
	order     []string
	nextID    int
	archived  []string
	updated   []string
	failOn    string
	queryCall int
}

func newFakeNotion() *fakeNotion {
	return &fakeNotion{pages: map[string]notionapi.Properties{}}
}

func (f *fakeNotion) seed(extID string) string {
	f.nextID++
	id := fmt.Sprintf("page-%d", f.nextID)
	f.pages[id] = notionapi.Properties{
		PropTransactionID: &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: extID}}},
	}
	f.order = append(f.order, id)
	return id
}

func (f *fakeNotion) CreatePage(_ context.Context, _ string, props notionapi.Properties) (*notionapi.Page, error) {
	title := props[PropTransactionID].(notionapi.TitleProperty).Title[0].Text.Content
	if title == f.failOn {
		return nil, errors.New("validation_error")
	}
	id := f.seed(title)
	return &notionapi.Page{ID: notionapi.ObjectID(id)}, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pageID string, _ notionapi.Properties) (*notionapi.Page, error) {
	f.updated = append(f.updated, pageID)
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

// QueryDatabase returns one page per call to exercise cursor handling.
func (f *fakeNotion) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.queryCall++
	start := 0
	if req.StartCursor != "" {
		fmt.Sscanf(string(req.StartCursor), "%d", &start)
	}
	if start >= len(f.order) {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	id := f.order[start]
	resp := &notionapi.DatabaseQueryResponse{
		Results: []notionapi.Page{{ID: notionapi.ObjectID(id), Properties: f.pages[id]}},
		HasMore: start+1 < len(f.order),
	}
	if resp.HasMore {
		resp.NextCursor = notionapi.Cursor(fmt.Sprintf("%d", start+1))
	}
	return resp, nil
}

func (f *fakeNotion) ArchivePage(_ context.Context, pageID string) error {
	f.archived = append(f.archived, pageID)
	return nil
}

func tx(userID, id int64) *domain.Transaction {
	return &domain.Transaction{
		ID:          id,
		UserID:      userID,
		Categoria:   domain.CategoriaLujo,
		Descripcion: "Comida rica",
		Tipo:        domain.TipoEgreso,
		Monto:       decimal.NewFromInt(2500),
		Valor:       decimal.NewFromInt(-2500),
		Medio:       domain.MedioNequi,
		Fecha:       civil.Date{Year: 2024, Month: time.January, Day: 15},
	}
}

func TestSyncTransactions(t *testing.T) {
	notion := newFakeNotion()
	keep := notion.seed("7-1")
	stale := notion.seed("7-2")
	notion.seed("8-2")      // another user's page
	notion.seed("unkeyed") // left alone

	s := NewSyncer(notion, "db")
	res, err := s.SyncTransactions(context.Background(), 7, []*domain.Transaction{tx(7, 1), tx(7, 3)}, false)
	require.NoError(t, err)

	assert.Equal(t, SyncResult{Created: 1, Updated: 1, Archived: 1}, res)
	assert.Equal(t, []string{stale}, notion.archived)
	assert.Equal(t, []string{keep}, notion.updated)
	assert.Equal(t, 4, notion.queryCall, "one query per listed page")
}

func TestSyncTransactions_DryRun(t *testing.T) {
	notion := newFakeNotion()
	notion.seed("7-2")

	s := NewSyncer(notion, "db")
	res, err := s.SyncTransactions(context.Background(), 7, []*domain.Transaction{tx(7, 1)}, true)
	require.NoError(t, err)

	assert.Equal(t, SyncResult{Created: 1, Archived: 1}, res)
	assert.Empty(t, notion.archived)
	assert.Len(t, notion.pages, 1)
}

func TestSyncTransactions_CountsFailures(t *testing.T) {
	notion := newFakeNotion()
	notion.failOn = "7-1"

	res, err := NewSyncer(notion, "db").SyncTransactions(context.Background(), 7, []*domain.Transaction{tx(7, 1), tx(7, 2)}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, "created=1 updated=0 archived=0 failed=1", res.String())
}

func TestTransactionToNotionProperties(t *testing.T) {
	notes := "Helado en el parque"
	in := tx(3, 42)
	in.Observaciones = &notes

	props := TransactionToNotionProperties(in)

	title := props[PropTransactionID].(notionapi.TitleProperty)
	assert.Equal(t, "3-42", title.Title[0].Text.Content)
	assert.Equal(t, "Lujo", props[PropCategoria].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "Egreso", props[PropTipo].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, "Nequi", props[PropMedio].(notionapi.SelectProperty).Select.Name)
	assert.Equal(t, 2500.0, props[PropMonto].(notionapi.NumberProperty).Number)
	assert.Equal(t, -2500.0, props[PropValor].(notionapi.NumberProperty).Number)
	assert.Equal(t, notes, props[PropObservaciones].(notionapi.RichTextProperty).RichText[0].Text.Content)

	start := time.Time(*props[PropFecha].(notionapi.DateProperty).Date.Start)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), start)
}

func TestParseExternalID(t *testing.T) {
	u, id, err := parseExternalID("12-345")
	require.NoError(t, err)
	assert.Equal(t, int64(12), u)
	assert.Equal(t, int64(345), id)

	for _, bad := range []string{"", "12", "a-1", "1-b"} {
		_, _, err := parseExternalID(bad)
		assert.Error(t, err, bad)
	}
}
