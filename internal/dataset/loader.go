// Package dataset reads the phrase catalog workbook and writes calibration
// reports.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"pronounce-go/internal/types"
)

var ErrNoRows = errors.New("dataset: no data rows")

// LoadCatalog reads phrases from the first sheet of an xlsx workbook.
func LoadCatalog(path string) ([]types.Phrase, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return readCatalog(f)
}

func LoadCatalogReader(r io.Reader) ([]types.Phrase, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return readCatalog(f)
}

type columns struct {
	id, text, katakana, meaning, difficulty int
}

// detectColumns finds columns by header heuristics. The phrase text falls
// back to the first column.
func detectColumns(header []string) columns {
	c := columns{id: -1, text: -1, katakana: -1, meaning: -1, difficulty: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case l == "id" || strings.HasSuffix(l, " id") || strings.HasSuffix(l, "_id"):
			if c.id == -1 {
				c.id = i
			}
		case strings.Contains(l, "katakana") || strings.Contains(l, "カタカナ"):
			if c.katakana == -1 {
				c.katakana = i
			}
		case strings.Contains(l, "meaning") || strings.Contains(l, "japanese") || strings.Contains(l, "意味"):
			if c.meaning == -1 {
				c.meaning = i
			}
		case strings.Contains(l, "difficulty") || strings.Contains(l, "level"):
			if c.difficulty == -1 {
				c.difficulty = i
			}
		case strings.Contains(l, "phrase") || strings.Contains(l, "text") || strings.Contains(l, "english"):
			if c.text == -1 {
				c.text = i
			}
		}
	}
	if c.text == -1 {
		c.text = 0
		if c.id == 0 && len(header) > 1 {
			c.text = 1
		}
	}
	return c
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func readCatalog(f *excelize.File) ([]types.Phrase, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, ErrNoRows
	}
	cols := detectColumns(rows[0])

	var out []types.Phrase
	for i, r := range rows[1:] {
		p := types.Phrase{
			ID:         cell(r, cols.id),
			Text:       cell(r, cols.text),
			Katakana:   cell(r, cols.katakana),
			Meaning:    cell(r, cols.meaning),
			Difficulty: cell(r, cols.difficulty),
		}
		// rows without phrase text are skipped quietly
		if p.Text == "" {
			continue
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("p-%03d", i+1)
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, ErrNoRows
	}
	return out, nil
}
