package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/nlparse"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"export", "import", "parse", "purge", "sync-notion", "backup", "analytics"}, names)

	analytics, _, err := root.Find([]string{"analytics", "cashflow"})
	require.NoError(t, err)
	assert.Equal(t, "cashflow", analytics.Name())
}

func TestImportRequiresSource(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"import"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		cmd := &cobra.Command{}
		cmd.SetIn(strings.NewReader(tt.input))
		cmd.SetErr(&bytes.Buffer{})
		assert.Equal(t, tt.want, confirm(cmd, "? "), "input %q", tt.input)
	}
}

func TestInputFromParsed(t *testing.T) {
	obs := "cena"
	in := inputFromParsed(&nlparse.ParsedTransaction{
		Categoria:     domain.CategoriaNecesidad,
		Descripcion:   "Supermercado",
		Tipo:          domain.TipoEgreso,
		Monto:         decimal.RequireFromString("45000"),
		Medio:         domain.MedioNequi,
		Fecha:         "2025-03-14",
		Observaciones: &obs,
	})

	require.NotNil(t, in.Monto)
	assert.Equal(t, "45000", string(*in.Monto))
	assert.Equal(t, "Necesidad", in.Categoria)
	assert.Equal(t, "Egreso", in.Tipo)
	assert.Equal(t, "2025-03-14", in.Fecha)
	assert.Equal(t, &obs, in.Observaciones)
}

func TestPrintCashFlow(t *testing.T) {
	var buf bytes.Buffer
	printCashFlow(&buf, []domain.CashFlow{{
		Period:   "2025-03",
		Ingresos: decimal.NewFromInt(1000),
		Egresos:  decimal.NewFromInt(400),
		Ahorros:  decimal.NewFromInt(100),
		Neto:     decimal.NewFromInt(500),
		Count:    3,
	}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "2025-03")
	assert.Contains(t, lines[1], "1000.00")
	assert.Contains(t, lines[1], "500.00")
}
