package transactions

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"empty fields", "a,,c,", []string{"a", "", "c", ""}},
		{"quoted comma", `a,"b, c",d`, []string{"a", "b, c", "d"}},
		{"doubled quote", `"dijo ""hola""",x`, []string{`dijo "hola"`, "x"}},
		{"only quotes", `""""`, []string{`"`}},
		{"unicode", `Necesidad,"Aseo (casa o personal)",Egreso`, []string{"Necesidad", "Aseo (casa o personal)", "Egreso"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLine(tt.line))
		})
	}
}

func TestDecodeCSV_SingleRow(t *testing.T) {
	txs, err := DecodeCSV(strings.NewReader("categoria,descripcion,tipo,monto,medio,fecha\nLujo,Helado,Egreso,2500,Efectivo,2024-01-15"))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Valor.Equal(decimal.NewFromInt(-2500)))
	assert.Equal(t, "2024-01-15", txs[0].Fecha.String())
	assert.Nil(t, txs[0].Observaciones)
}

func TestDecodeCSV_ColumnOrderAndCase(t *testing.T) {
	in := "FECHA,Medio,monto,Tipo,Descripcion,Categoria,Observaciones\r\n" +
		"15/01/2024,Nequi,\"1,500\",Ingreso,Salario,Entrada,\"quincena, enero\"\r\n" +
		"\r\n" +
		"2024-01-20,BBVA,300,Ahorro,Valor ahorrado,Ahorro,\r\n"

	txs, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, domain.CategoriaEntrada, txs[0].Categoria)
	assert.Equal(t, domain.MedioNequi, txs[0].Medio)
	assert.True(t, txs[0].Monto.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "2024-01-15", txs[0].Fecha.String())
	require.NotNil(t, txs[0].Observaciones)
	assert.Equal(t, "quincena, enero", *txs[0].Observaciones)

	assert.True(t, txs[1].Valor.Equal(decimal.NewFromInt(300)))
}

func TestDecodeCSV_Errors(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		wantMessage string
		wantDetails []string
	}{
		{
			name:        "empty",
			in:          "  \n\n",
			wantMessage: "El archivo CSV está vacío o no contiene filas de datos",
		},
		{
			name:        "header only",
			in:          "categoria,descripcion,tipo,monto,medio,fecha\n",
			wantMessage: "El archivo CSV está vacío o no contiene filas de datos",
		},
		{
			name:        "missing column",
			in:          "categoria,descripcion,tipo,monto,fecha\nLujo,x,Egreso,1,2024-01-01",
			wantMessage: "Faltan columnas requeridas en el encabezado: medio",
		},
		{
			name: "row errors are collected",
			in: "categoria,descripcion,tipo,monto,medio,fecha\n" +
				"Lujo,Helado,Egreso,2500,Efectivo,2024-01-15\n" +
				"Comida,Helado,Egreso,2500,Efectivo,2024-01-15\n" +
				"Lujo,,Egreso,2500,Efectivo,2024-01-15\n" +
				"Lujo,Helado,Egreso,abc,Efectivo,31/02/2024\n" +
				"Entrada,Salario,Egreso,10,NU,2024-01-15\n",
			wantDetails: []string{
				`Fila 3: categoria inválida: "Comida"`,
				"Fila 4: Faltan campos requeridos.",
				`Fila 5: monto inválido: "abc"`,
				`Fila 5: fecha inválida: "31/02/2024"`,
				"Fila 6: la categoría Entrada requiere tipo Ingreso, no Egreso",
			},
		},
		{
			name:        "only blank rows",
			in:          "categoria,descripcion,tipo,monto,medio,fecha\n,,,,,\n",
			wantMessage: "No se encontraron transacciones válidas en el archivo CSV",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, err := DecodeCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Nil(t, txs)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var ierr *ImportError
			require.True(t, errors.As(err, &ierr))
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, ierr.Message)
			}
			if tt.wantDetails != nil {
				assert.Equal(t, tt.wantDetails, ierr.Details)
			}
		})
	}
}

func TestImportCSV_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	in := "categoria,descripcion,tipo,monto,medio,fecha\n" +
		"Lujo,Helado,Egreso,2500,Efectivo,2024-01-15\n" +
		"Otra,Helado,Egreso,2500,Efectivo,2024-01-15\n"

	_, err := svc.ImportCSV(ctx, 1, strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Fila 3")

	all, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 0, repo.batches)
}

func TestImportCSV_Persists(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	res, err := svc.ImportCSV(ctx, 9, strings.NewReader("categoria,descripcion,tipo,monto,medio,fecha\nLujo,Helado,Egreso,2500,Efectivo,2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 1, repo.batches)

	txs, err := svc.List(ctx, 9)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(9), txs[0].UserID)
}

// oversizedCSV returns a valid CSV export whose length is just over
// MaxImportSize, ending on a complete row.
func oversizedCSV() string {
	const row = "Lujo,Helado,Egreso,2500,Efectivo,2024-01-15\n"
	var b strings.Builder
	b.WriteString("categoria,descripcion,tipo,monto,medio,fecha\n")
	for b.Len() <= MaxImportSize {
		b.WriteString(row)
	}
	return b.String()
}

func TestDecodeCSV_TooLarge(t *testing.T) {
	in := oversizedCSV()
	require.Greater(t, len(in), MaxImportSize)

	txs, err := DecodeCSV(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrImportTooLarge)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Nil(t, txs)
}

func TestImportCSV_TooLargePersistsNothing(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	res, err := svc.ImportCSV(ctx, 1, strings.NewReader(oversizedCSV()))
	assert.ErrorIs(t, err, ErrImportTooLarge)
	assert.Nil(t, res)
	assert.Equal(t, 0, repo.batches)

	all, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportCSV_AtLimitIsAccepted(t *testing.T) {
	const header = "categoria,descripcion,tipo,monto,medio,fecha\n"
	const row = "Lujo,Helado,Egreso,2500,Efectivo,2024-01-15\n"
	rows := (MaxImportSize - len(header)) / len(row)
	in := header + strings.Repeat(row, rows)
	require.LessOrEqual(t, len(in), MaxImportSize)

	txs, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Len(t, txs, rows)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	inputs := []Input{
		{Categoria: "Lujo", Descripcion: `Helado "doble"`, Tipo: "Egreso", Monto: amount("2500.50"), Medio: "Efectivo", Fecha: "2024-01-15", Observaciones: strPtr("Heladería, centro")},
		{Categoria: "Entrada", Descripcion: "Salario", Tipo: "Ingreso", Monto: amount("3000000"), Medio: "Bancolombia", Fecha: "2024-01-30"},
		{Categoria: "Necesidad", Descripcion: "Vivienda", Tipo: "Egreso", Monto: amount("900000"), Medio: "NU", Fecha: "2024-01-05", Observaciones: strPtr("Arriendo\nenero")},
		{Categoria: "Ahorro", Descripcion: "Valor ahorrado", Tipo: "Ahorro", Monto: amount("100000"), Medio: "Nequi", Fecha: "2024-01-30"},
	}
	for _, in := range inputs {
		_, err := svc.Create(ctx, 1, in)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, 1, &buf))

	lines := strings.SplitN(buf.String(), "\n", 2)
	assert.Equal(t, "categoria,descripcion,tipo,monto,medio,fecha,observaciones,valor", lines[0])
	assert.Contains(t, buf.String(), `"Helado ""doble"""`)

	res, err := svc.ImportCSV(ctx, 2, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, len(inputs), res.Imported)

	original, err := svc.List(ctx, 1)
	require.NoError(t, err)
	imported, err := svc.List(ctx, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, tuples(original), tuples(imported))
}

func TestExportCSV_Order(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	for _, f := range []string{"2024-01-01", "2024-03-01", "2024-02-01"} {
		in := validInput()
		in.Fecha = f
		_, err := svc.Create(ctx, 1, in)
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, svc.ExportCSV(ctx, 1, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "2024-03-01")
	assert.Contains(t, lines[2], "2024-02-01")
	assert.Contains(t, lines[3], "2024-01-01")
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2024, 5, 9, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "gestapp_backup_2024-05-09.csv", ExportFilename(now))
}

type tuple struct {
	Categoria, Descripcion, Tipo, Monto, Medio, Fecha, Observaciones, Valor string
}

func tuples(txs []*domain.Transaction) []tuple {
	out := make([]tuple, 0, len(txs))
	for _, tx := range txs {
		notes := ""
		if tx.Observaciones != nil {
			notes = *tx.Observaciones
		}
		out = append(out, tuple{
			string(tx.Categoria), tx.Descripcion, string(tx.Tipo), tx.Monto.String(),
			string(tx.Medio), tx.Fecha.String(), notes, tx.Valor.String(),
		})
	}
	return out
}
