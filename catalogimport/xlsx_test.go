package catalogimport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheet string, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestSheetToText(t *testing.T) {
	buf := workbook(t, "Sheet1", [][]any{
		{"2", "CONTROL DE CALIDAD"},
		{"2.1", "TERRACERÍAS"},
		{"2.1.1.1 (+)", "VISITA PARA\nMUESTREO", "VISITA", "3%", "$1,231.53"},
	})

	text, err := SheetToText(buf, "")
	require.NoError(t, err)
	assert.Equal(t, "2\tCONTROL DE CALIDAD\n2.1\tTERRACERÍAS\n2.1.1.1 (+)\tVISITA PARA MUESTREO\tVISITA\t3%\t$1,231.53\n", text)

	summary, err := Run(t.Context(), newFakeCatalog(), text, Options{Logger: testLogger()})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Created())
}

func TestSheetToText_NamedSheet(t *testing.T) {
	buf := workbook(t, "Presupuesto", [][]any{{"1", "PRELIMINARES"}})

	text, err := SheetToText(bytes.NewReader(buf.Bytes()), "Presupuesto")
	require.NoError(t, err)
	assert.Equal(t, "1\tPRELIMINARES\n", text)

	_, err = SheetToText(bytes.NewReader(buf.Bytes()), "Missing")
	assert.Error(t, err)
}

func TestSheetToText_NotAWorkbook(t *testing.T) {
	_, err := SheetToText(bytes.NewReader([]byte("2\tCONTROL")), "")
	assert.Error(t, err)
}
