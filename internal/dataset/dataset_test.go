package dataset

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"pronounce-go/internal/types"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		ref, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", ref, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf
}

func TestLoadCatalogDetectsColumns(t *testing.T) {
	t.Parallel()
	buf := workbook(t, [][]interface{}{
		{"Phrase ID", "English Phrase", "Katakana", "Meaning", "Difficulty"},
		{"s-01", "Sorry?", "ソーリー", "すみません", "easy"},
		{"", "Thank you", "サンキュー", "ありがとう", "medium"},
		{"s-03", "", "", "", ""},
	})
	phrases, err := LoadCatalogReader(buf)
	if err != nil {
		t.Fatalf("LoadCatalogReader: %v", err)
	}
	if len(phrases) != 2 {
		t.Fatalf("len(phrases) = %d, want 2", len(phrases))
	}
	want := types.Phrase{ID: "s-01", Text: "Sorry?", Katakana: "ソーリー", Meaning: "すみません", Difficulty: "easy"}
	if phrases[0] != want {
		t.Fatalf("phrases[0] = %+v, want %+v", phrases[0], want)
	}
	if phrases[1].ID != "p-002" || phrases[1].Difficulty != "medium" {
		t.Fatalf("phrases[1] = %+v, want generated id p-002", phrases[1])
	}
}

func TestLoadCatalogWithoutHeaderHints(t *testing.T) {
	t.Parallel()
	buf := workbook(t, [][]interface{}{{"col"}, {"Hello"}})
	phrases, err := LoadCatalogReader(buf)
	if err != nil {
		t.Fatalf("LoadCatalogReader: %v", err)
	}
	if len(phrases) != 1 || phrases[0].Text != "Hello" {
		t.Fatalf("phrases = %+v", phrases)
	}
}

func TestLoadCatalogEmpty(t *testing.T) {
	t.Parallel()
	if _, err := LoadCatalogReader(workbook(t, [][]interface{}{{"Phrase"}})); !errors.Is(err, ErrNoRows) {
		t.Fatalf("error = %v, want ErrNoRows", err)
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	rows := []types.CalibrationRow{
		{PhraseID: "a", Detected: true, Patterns: []string{"unnatural rhythm"}, SelfScore: 100, LocalComposite: 40, Grade: types.GradeE},
		{PhraseID: "b", SelfScore: 100, LocalComposite: 80, Grade: types.GradeB},
	}
	s := Summarize(rows)
	if s.Phrases != 2 || s.Detected != 1 || s.DetectionRate != 0.5 {
		t.Fatalf("summary = %+v", s)
	}
	if math.Abs(s.MeanComposite-60) > 1e-9 || s.MeanSelfScore != 100 {
		t.Fatalf("means = %v/%v", s.MeanComposite, s.MeanSelfScore)
	}
	if s.ByGrade[types.GradeB] != 1 || s.ByPattern["unnatural rhythm"] != 1 {
		t.Fatalf("breakdown = %+v", s)
	}
}

func TestWriteCalibration(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "calibration.xlsx")
	rows := []types.CalibrationRow{{PhraseID: "p-001", Text: "Hello", SelfScore: 100, LocalComposite: 77, Grade: types.GradeC}}
	if err := WriteCalibration(path, rows); err != nil {
		t.Fatalf("WriteCalibration: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	got, err := f.GetRows("Calibration")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(got) != 2 || got[1][0] != "p-001" || got[1][1] != "Hello" {
		t.Fatalf("rows = %v", got)
	}
	summary, err := f.GetRows("Summary")
	if err != nil || len(summary) == 0 || summary[0][0] != "Phrases" || summary[0][1] != "1" {
		t.Fatalf("summary rows = %v (%v)", summary, err)
	}
}
