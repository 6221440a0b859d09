package notionsync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the mirror database.
const (
	PropTransactionID = "Transaction ID"
	PropDescripcion   = "Descripcion"
	PropCategoria     = "Categoria"
	PropTipo          = "Tipo"
	PropMedio         = "Medio"
	PropMonto         = "Monto"
	PropValor         = "Valor"
	PropFecha         = "Fecha"
	PropObservaciones = "Observaciones"
)

// ExternalID is the title that identifies tx in the mirror: "<userId>-<id>".
func ExternalID(tx *domain.Transaction) string {
	return userPrefix(tx.UserID) + strconv.FormatInt(tx.ID, 10)
}

func userPrefix(userID int64) string {
	return strconv.FormatInt(userID, 10) + "-"
}

// TransactionToNotionProperties converts a transaction to page properties.
func TransactionToNotionProperties(tx *domain.Transaction) notionapi.Properties {
	fecha := notionapi.Date(time.Date(tx.Fecha.Year, tx.Fecha.Month, tx.Fecha.Day, 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		PropTransactionID: notionapi.TitleProperty{
			Title: []notionapi.RichText{textRun(ExternalID(tx))},
		},
		PropDescripcion: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textRun(tx.Descripcion)},
		},
		PropCategoria: notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Categoria)}},
		PropTipo:      notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Tipo)}},
		PropMedio:     notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Medio)}},
		PropMonto:     notionapi.NumberProperty{Number: tx.Monto.InexactFloat64()},
		PropValor:     notionapi.NumberProperty{Number: tx.Valor.InexactFloat64()},
		PropFecha:     notionapi.DateProperty{Date: &notionapi.DateObject{Start: &fecha}},
	}

	if tx.Observaciones != nil && strings.TrimSpace(*tx.Observaciones) != "" {
		props[PropObservaciones] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textRun(*tx.Observaciones)},
		}
	} else {
		props[PropObservaciones] = notionapi.RichTextProperty{RichText: []notionapi.RichText{}}
	}

	return props
}

func textRun(s string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}
}

// extractTransactionID reads the "Transaction ID" title of page.
func extractTransactionID(page notionapi.Page) string {
	prop, ok := page.Properties[PropTransactionID]
	if !ok {
		return ""
	}
	var runs []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		runs = p.Title
	case notionapi.TitleProperty:
		runs = p.Title
	default:
		return ""
	}

	var b strings.Builder
	for _, r := range runs {
		if r.PlainText != "" {
			b.WriteString(r.PlainText)
		} else if r.Text != nil {
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}

// parseExternalID splits "<userId>-<id>".
func parseExternalID(s string) (userID, id int64, err error) {
	u, t, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed transaction id %q", s)
	}
	if userID, err = strconv.ParseInt(u, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed transaction id %q: %w", s, err)
	}
	if id, err = strconv.ParseInt(t, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("malformed transaction id %q: %w", s, err)
	}
	return userID, id, nil
}
