package excel

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	sr "github.com/example/engbot/internal/spaced_repetition"
	"github.com/example/engbot/pkg/models"
)

// Sheet names of an exported workbook.
const (
	SummarySheet = "Summary"
	LogSheet     = "Log"
)

var logHeader = []interface{}{"card_id", "quality", "interval", "duration_seconds", "timestamp", "session_id"}

// ExportSummary writes an xlsx workbook with the analytics summary and the raw
// review log. The Log sheet can be read back with ImportReviewLogFrom.
func ExportSummary(w io.Writer, summary sr.Summary, log []models.ReviewLogEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	f.SetSheetName(f.GetSheetName(0), SummarySheet)
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Total reviews", summary.TotalReviews},
		{"Average quality", summary.AverageQuality},
		{"Retention rate, %", summary.RetentionRate},
		{"Average interval, days", summary.AverageInterval},
		{"Easy", summary.DifficultyDistribution.Easy},
		{"Normal", summary.DifficultyDistribution.Normal},
		{"Hard", summary.DifficultyDistribution.Hard},
		{"Streak", summary.StreakCount},
		{"Average review duration, s", summary.AverageReviewDuration},
		{"Skipped entries", summary.Skipped},
	}
	if err := writeRows(f, SummarySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "B1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 28); err != nil {
		return err
	}

	if _, err := f.NewSheet(LogSheet); err != nil {
		return fmt.Errorf("failed to create log sheet: %w", err)
	}
	rows = make([][]interface{}, 0, len(log)+1)
	rows = append(rows, logHeader)
	for _, e := range log {
		var duration interface{}
		if e.ReviewDurationSeconds != nil {
			duration = *e.ReviewDurationSeconds
		}
		rows = append(rows, []interface{}{
			e.CardID,
			e.Quality,
			e.Interval,
			duration,
			e.Timestamp.UTC().Format(time.RFC3339),
			e.SessionID,
		})
	}
	if err := writeRows(f, LogSheet, rows); err != nil {
		return err
	}
	endCell, err := excelize.CoordinatesToCellName(len(logHeader), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(LogSheet, "A1", endCell, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(LogSheet, "E", "F", 24); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
