package parser

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cellRef, &row))
	}
	path := filepath.Join(t.TempDir(), "deck.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestParseWorkbook(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Topic", "FRONT", "Back", "Explanation"},
		{"Exponents", "2^3 * 2^2 = ?", "2^5", "Add exponents with the same base."},
		{"Exponents", "", "skipped", ""},
		{"Vocabulary", "ubiquitous", "found everywhere"},
	})

	cards, err := ParseWorkbook(path)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	assert.Equal(t, "2^3 * 2^2 = ?", cards[0].Front)
	assert.Equal(t, "2^5", cards[0].Back)
	assert.Equal(t, "Add exponents with the same base.", cards[0].Explanation)
	assert.Equal(t, "Exponents", cards[0].Topic)

	assert.Equal(t, "ubiquitous", cards[1].Front)
	assert.Empty(t, cards[1].Explanation)
}

func TestParseWorkbookRequiresFrontColumn(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"question", "answer"},
		{"a", "b"},
	})
	_, err := ParseWorkbook(path)
	assert.Error(t, err)
}

func TestParseAnyDispatches(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"front", "back"},
		{"x", "y"},
	})
	cards, err := ParseAny(path)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}
