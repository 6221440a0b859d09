package transactions

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
)

// ExportColumns is the header written by ExportCSV. The id column is left
// out so a backup can be imported into any installation.
var ExportColumns = []string{"categoria", "descripcion", "tipo", "monto", "medio", "fecha", "observaciones", "valor"}

// RequiredColumns must be present in an imported header.
var RequiredColumns = []string{"categoria", "descripcion", "tipo", "monto", "medio", "fecha"}

// MaxImportSize bounds the accepted CSV upload.
const MaxImportSize = 10 << 20

// ErrImportTooLarge rejects input longer than MaxImportSize. Nothing is
// decoded from such input.
var ErrImportTooLarge = fmt.Errorf("el archivo supera el tamaño máximo de %d MB: %w", MaxImportSize>>20, domain.ErrValidation)

// ImportResult reports a successful import.
type ImportResult struct {
	Imported int `json:"imported"`
}

// ImportError rejects a whole CSV file. Details holds one entry per row problem.
type ImportError struct {
	Message string
	Details []string
}

func (e *ImportError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Details, "; "))
}

// Unwrap lets errors.Is match domain.ErrValidation.
func (e *ImportError) Unwrap() error {
	return domain.ErrValidation
}

// ExportFilename is the download name for a backup taken at now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("gestapp_backup_%s.csv", now.Format(domain.DateLayout))
}

// ExportCSV writes the user's transactions as CSV, newest first.
func (s *Service) ExportCSV(ctx context.Context, userID int64, w io.Writer) error {
	txs, err := s.repo.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("ExportCSV: listing transactions: %w", err)
	}
	if err := WriteCSV(w, txs); err != nil {
		return fmt.Errorf("ExportCSV: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int64("user_id", userID).
		Int("rows", len(txs)).
		Msg("Transactions exported")
	return nil
}

// WriteCSV encodes txs with standard CSV quoting.
func WriteCSV(w io.Writer, txs []*domain.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ExportColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, tx := range txs {
		notes := ""
		if tx.Observaciones != nil {
			notes = *tx.Observaciones
		}
		rec := []string{
			string(tx.Categoria),
			tx.Descripcion,
			string(tx.Tipo),
			tx.Monto.String(),
			string(tx.Medio),
			tx.Fecha.String(),
			notes,
			tx.Valor.String(),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ImportCSV validates every row of r and, only if all of them are valid,
// stores them for userID in a single batch.
func (s *Service) ImportCSV(ctx context.Context, userID int64, r io.Reader) (*ImportResult, error) {
	txs, err := DecodeCSV(r)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		tx.UserID = userID
	}

	if err := s.repo.InsertBatch(ctx, txs); err != nil {
		return nil, fmt.Errorf("ImportCSV: inserting %d transactions: %w", len(txs), err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int64("user_id", userID).
		Int("imported", len(txs)).
		Msg("Transactions imported")
	return &ImportResult{Imported: len(txs)}, nil
}

// DecodeCSV parses CSV text into validated transactions. Columns are located
// by header name, case-insensitively. Row problems are collected and
// returned together in an *ImportError; no partial result is returned.
// Input longer than MaxImportSize fails with ErrImportTooLarge.
func DecodeCSV(r io.Reader) ([]*domain.Transaction, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("DecodeCSV: reading input: %w", err)
	}
	if len(raw) > MaxImportSize {
		return nil, ErrImportTooLarge
	}

	records := splitRecords(strings.TrimPrefix(string(raw), "\ufeff"))
	if len(records) < 2 {
		return nil, &ImportError{Message: "El archivo CSV está vacío o no contiene filas de datos"}
	}

	cols, err := headerIndex(SplitLine(records[0]))
	if err != nil {
		return nil, err
	}

	var (
		txs     []*domain.Transaction
		details []string
	)
	for i, rec := range records[1:] {
		row := i + 2
		fields := SplitLine(rec)
		if allBlank(fields) {
			continue
		}

		tx, rowErrs := decodeRow(fields, cols)
		if len(rowErrs) > 0 {
			for _, msg := range rowErrs {
				details = append(details, fmt.Sprintf("Fila %d: %s", row, msg))
			}
			continue
		}
		txs = append(txs, tx)
	}

	if len(details) > 0 {
		return nil, &ImportError{
			Message: fmt.Sprintf("Se encontraron %d errores en el archivo CSV. No se importó ninguna transacción.", len(details)),
			Details: details,
		}
	}
	if len(txs) == 0 {
		return nil, &ImportError{Message: "No se encontraron transacciones válidas en el archivo CSV"}
	}
	return txs, nil
}

func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}

	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ImportError{
			Message: fmt.Sprintf("Faltan columnas requeridas en el encabezado: %s", strings.Join(missing, ", ")),
		}
	}
	return cols, nil
}

func decodeRow(fields []string, cols map[string]int) (*domain.Transaction, []string) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	for _, name := range RequiredColumns {
		if get(name) == "" {
			return nil, []string{"Faltan campos requeridos."}
		}
	}

	var errs []string
	categoria, err := domain.ParseCategoria(get("categoria"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	tipo, err := domain.ParseTipo(get("tipo"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	medio, err := domain.ParseMedio(get("medio"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	monto, err := domain.ParseMonto(get("monto"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	fecha, err := domain.ParseFecha(get("fecha"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if err := domain.ValidatePair(categoria, tipo); err != nil {
		return nil, []string{err.Error()}
	}

	notes := get("observaciones")
	tx := &domain.Transaction{
		Categoria:     categoria,
		Descripcion:   get("descripcion"),
		Tipo:          tipo,
		Monto:         monto,
		Medio:         medio,
		Fecha:         fecha,
		Observaciones: normalizeNotes(&notes),
	}
	tx.Recompute()
	return tx, nil
}

// SplitLine splits one CSV record on commas outside double quotes. Inside a
// quoted field a doubled quote yields one literal quote.
func SplitLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"' && inQuotes && i+1 < len(runes) && runes[i+1] == '"':
			current.WriteRune('"')
			i++
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	return append(fields, current.String())
}

// splitRecords breaks text into non-blank records. A newline inside a quoted
// field does not end the record.
func splitRecords(text string) []string {
	var (
		records  []string
		start    int
		inQuotes bool
	)

	flush := func(end int) {
		rec := strings.TrimSuffix(text[start:end], "\r")
		if strings.TrimSpace(rec) != "" {
			records = append(records, rec)
		}
	}

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"':
			inQuotes = !inQuotes
		case '\n':
			if !inQuotes {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(text))
	return records
}

func allBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
