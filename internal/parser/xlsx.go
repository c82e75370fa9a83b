package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/conorfennell/satprep/internal/domain"
)

// ParseWorkbook reads the first sheet of an .xlsx deck. The first row is a
// header naming the columns front, back, explanation and topic in any order;
// front is required. Rows with an empty front are skipped.
func ParseWorkbook(path string) ([]domain.Card, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	columns := map[string]int{}
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["front"]; !ok {
		return nil, fmt.Errorf("workbook %s: header has no front column", path)
	}

	cell := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var cards []domain.Card
	for _, row := range rows[1:] {
		card := domain.Card{
			Front:       cell(row, "front"),
			Back:        cell(row, "back"),
			Explanation: cell(row, "explanation"),
			Topic:       cell(row, "topic"),
		}
		if card.Front == "" {
			continue
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// IsDeckFile reports whether name has an extension the parser understands.
func IsDeckFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".md") || strings.HasSuffix(lower, ".xlsx")
}

// ParseAny dispatches on the file extension.
func ParseAny(path string) ([]domain.Card, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return ParseWorkbook(path)
	}
	return ParseFile(path)
}
