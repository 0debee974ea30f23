package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func amount(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestFilename(t *testing.T) {
	now := time.Date(2024, 5, 17, 15, 4, 0, 0, time.UTC)

	tests := []struct {
		name     string
		selected *domain.Document
		want     string
	}{
		{name: "consolidated", selected: nil, want: "Consolidé_2024-05-17"},
		{name: "strips extension", selected: &domain.Document{FileName: "releve_mars.pdf"}, want: "releve_mars"},
		{name: "only last extension", selected: &domain.Document{FileName: "releve.2024.pdf"}, want: "releve.2024"},
		{name: "no extension", selected: &domain.Document{FileName: "releve"}, want: "releve"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.selected, now))
		})
	}
}

func TestRows(t *testing.T) {
	rows := Rows([]domain.Transaction{
		{Date: "01/01/2024", Label: "CB", Debit: amount("12.5")},
		{Date: "02/01/2024", Label: "VIR", Credit: amount("100")},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, []interface{}{"01/01/2024", "CB", 12.5, nil}, rows[0])
	assert.Equal(t, []interface{}{"02/01/2024", "VIR", nil, 100.0}, rows[1])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, []domain.Transaction{
		{Date: "01/01/2024", Label: "CB CARREFOUR", Debit: amount("42.5")},
		{Date: "02/01/2024", Label: "VIR SALAIRE", Credit: amount("2100")},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, []string{"01/01/2024", "CB CARREFOUR", "42.5"}, rows[1])
	assert.Equal(t, []string{"02/01/2024", "VIR SALAIRE", "", "2100"}, rows[2])
}

func TestWriteXLSX_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{Header}, rows)
}
