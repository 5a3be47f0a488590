package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"pronounce-go/internal/types"
)

// CalibrationSummary condenses a calibration run.
type CalibrationSummary struct {
	Phrases       int                 `json:"phrases"`
	Detected      int                 `json:"detected"`
	DetectionRate float64             `json:"detection_rate"`
	MeanComposite float64             `json:"mean_composite"`
	MeanSelfScore float64             `json:"mean_self_score"`
	ByGrade       map[types.Grade]int `json:"by_grade"`
	// pattern name to the number of recordings that fired it
	ByPattern map[string]int `json:"by_pattern"`
}

func Summarize(rows []types.CalibrationRow) CalibrationSummary {
	s := CalibrationSummary{
		Phrases:   len(rows),
		ByGrade:   map[types.Grade]int{},
		ByPattern: map[string]int{},
	}
	if len(rows) == 0 {
		return s
	}
	var composite, self float64
	for _, r := range rows {
		if r.Detected {
			s.Detected++
		}
		s.ByGrade[r.Grade]++
		for _, p := range r.Patterns {
			s.ByPattern[p]++
		}
		composite += float64(r.LocalComposite)
		self += float64(r.SelfScore)
	}
	n := float64(len(rows))
	s.DetectionRate = float64(s.Detected) / n
	s.MeanComposite = composite / n
	s.MeanSelfScore = self / n
	return s
}

var calibrationHeader = []interface{}{
	"Phrase ID", "Text", "Duration (s)", "Syllables", "Overall quality",
	"Naturalness", "Fluency", "Clarity", "Prosody", "Detected", "Confidence",
	"Patterns", "Self score", "Local composite", "Grade",
}

// WriteCalibration writes the per-phrase rows and a summary sheet to path.
func WriteCalibration(path string, rows []types.CalibrationRow) error {
	f := excelize.NewFile()
	defer f.Close()

	const detail = "Calibration"
	if err := f.SetSheetName("Sheet1", detail); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(detail, "A1", &calibrationHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			r.PhraseID, r.Text, r.DurationSec, r.Syllables, r.Quality.Overall,
			r.Quality.Naturalness, r.Quality.Fluency, r.Quality.Clarity, r.Quality.Prosody,
			r.Detected, r.Confidence, strings.Join(r.Patterns, "; "),
			r.SelfScore, r.LocalComposite, string(r.Grade),
		}
		if err := f.SetSheetRow(detail, cellRef, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	s := Summarize(rows)
	lines := [][]interface{}{
		{"Phrases", s.Phrases},
		{"Detected", s.Detected},
		{"Detection rate", s.DetectionRate},
		{"Mean local composite", s.MeanComposite},
		{"Mean self score", s.MeanSelfScore},
	}
	grades := make([]string, 0, len(s.ByGrade))
	for g := range s.ByGrade {
		grades = append(grades, string(g))
	}
	sort.Strings(grades)
	for _, g := range grades {
		lines = append(lines, []interface{}{"Grade " + g, s.ByGrade[types.Grade(g)]})
	}
	for i, line := range lines {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cellRef, &line); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save calibration report: %w", err)
	}
	return nil
}
