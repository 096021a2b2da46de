package excel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/engbot/pkg/models"
)

// Format is the layout of an imported spreadsheet.
type Format int

const (
	FormatXLSX Format = iota
	FormatCSV
)

// FormatOf picks the format from a file name; anything but .csv is read as xlsx.
func FormatOf(name string) Format {
	if strings.ToLower(filepath.Ext(name)) == ".csv" {
		return FormatCSV
	}
	return FormatXLSX
}

// DefaultDeck is used for cards that appear before any deck header.
const DefaultDeck = "Глаголы"

// ImportConfig defines the card import configuration
type ImportConfig struct {
	FilePath      string // Path to the Excel or CSV file
	FrontColumn   string // Column with the word
	BackColumn    string // Column with the translation
	ContextColumn string // Column with an example or pronunciation
	DeckColumn    string // Column with the deck name
	SheetName     string // Name of the sheet to import, first sheet when empty
	StartRow      int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		FrontColumn:   "A",
		BackColumn:    "B",
		ContextColumn: "C",
		DeckColumn:    "D",
		StartRow:      2, // skip header
	}
}

// LogImportConfig describes where review-log fields live in a sheet.
type LogImportConfig struct {
	FilePath        string
	CardIDColumn    string
	QualityColumn   string
	IntervalColumn  string
	DurationColumn  string
	TimestampColumn string
	SessionColumn   string
	SheetName       string
	StartRow        int
}

// DefaultLogImportConfig matches the layout written by ExportSummary.
func DefaultLogImportConfig() LogImportConfig {
	return LogImportConfig{
		CardIDColumn:    "A",
		QualityColumn:   "B",
		IntervalColumn:  "C",
		DurationColumn:  "D",
		TimestampColumn: "E",
		SessionColumn:   "F",
		SheetName:       LogSheet,
		StartRow:        2,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Skipped        int
	Errors         []string
}

func (r *ImportResult) skip(rowNum int, err error) {
	r.Skipped++
	r.Errors = append(r.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
}

// CardImport is the outcome of reading a card sheet.
type CardImport struct {
	ImportResult
	Cards []models.Card
}

// LogImport is the outcome of reading a review-log sheet.
type LogImport struct {
	ImportResult
	Entries []models.ReviewLogEntry
}

// ImportCards reads cards for userID from an Excel or CSV file
func ImportCards(cfg ImportConfig, userID int64) (*CardImport, error) {
	file, err := os.Open(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return ImportCardsFrom(file, FormatOf(cfg.FilePath), cfg, userID)
}

// ImportCardsFrom reads cards from r.
//
// Excel sheets use the configured columns. CSV files use the word list layout
// "word,[transcription],translation" where a row with only the first field set
// starts a new deck.
func ImportCardsFrom(r io.Reader, format Format, cfg ImportConfig, userID int64) (*CardImport, error) {
	rows, err := readRows(r, format, cfg.SheetName)
	if err != nil {
		return nil, err
	}

	result := &CardImport{}
	deck := DefaultDeck
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow {
			continue
		}

		var card models.Card
		if format == FormatCSV {
			// Строка с названием категории, например "Движение,,"
			if len(row) >= 1 && strings.TrimSpace(row[0]) != "" && cell(row, 1) == "" && cell(row, 2) == "" {
				deck = strings.Trim(strings.TrimSpace(row[0]), "\"")
				continue
			}
			card = models.Card{Front: cell(row, 0), Back: cell(row, 2), Deck: deck}
			// Транскрипция в квадратных скобках
			if p := cell(row, 1); p != "" {
				card.Context = "Произношение: " + p
			}
		} else {
			card = models.Card{
				Front:   cellAt(row, cfg.FrontColumn),
				Back:    cellAt(row, cfg.BackColumn),
				Context: cellAt(row, cfg.ContextColumn),
				Deck:    cellAt(row, cfg.DeckColumn),
			}
			if card.Deck == "" {
				card.Deck = DefaultDeck
			}
		}
		if isBlank(row) {
			continue
		}

		result.TotalProcessed++
		card.UserID = userID
		card.Front = cleanWord(card.Front)
		card.Back = cleanWord(card.Back)
		if card.Front == "" {
			result.skip(rowNum, errors.New("word cannot be empty"))
			continue
		}
		if card.Back == "" {
			result.skip(rowNum, errors.New("translation cannot be empty"))
			continue
		}
		result.Cards = append(result.Cards, card)
	}
	return result, nil
}

// ImportReviewLog reads review history from an Excel or CSV file.
func ImportReviewLog(cfg LogImportConfig) (*LogImport, error) {
	file, err := os.Open(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return ImportReviewLogFrom(file, FormatOf(cfg.FilePath), cfg)
}

// ImportReviewLogFrom reads review history from r. Rows that do not describe a
// valid review are reported in Errors and left out of Entries.
func ImportReviewLogFrom(r io.Reader, format Format, cfg LogImportConfig) (*LogImport, error) {
	rows, err := readRows(r, format, cfg.SheetName)
	if err != nil {
		return nil, err
	}

	result := &LogImport{}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow || isBlank(row) {
			continue
		}
		result.TotalProcessed++

		entry, err := parseLogRow(row, cfg)
		if err != nil {
			result.skip(rowNum, err)
			continue
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

func parseLogRow(row []string, cfg LogImportConfig) (models.ReviewLogEntry, error) {
	var entry models.ReviewLogEntry

	cardID, err := strconv.ParseInt(cellAt(row, cfg.CardIDColumn), 10, 64)
	if err != nil {
		return entry, fmt.Errorf("invalid card id: %w", err)
	}
	quality, err := strconv.Atoi(cellAt(row, cfg.QualityColumn))
	if err != nil {
		return entry, fmt.Errorf("invalid quality: %w", err)
	}
	if quality < 0 || quality > 5 {
		return entry, fmt.Errorf("quality %d out of range 0-5", quality)
	}
	interval, err := strconv.Atoi(cellAt(row, cfg.IntervalColumn))
	if err != nil {
		return entry, fmt.Errorf("invalid interval: %w", err)
	}
	if interval < 0 {
		return entry, fmt.Errorf("negative interval %d", interval)
	}
	ts, err := parseTimestamp(cellAt(row, cfg.TimestampColumn))
	if err != nil {
		return entry, err
	}

	entry = models.ReviewLogEntry{
		CardID:    cardID,
		Quality:   quality,
		Interval:  interval,
		SessionID: cellAt(row, cfg.SessionColumn),
		Timestamp: ts,
	}
	if raw := cellAt(row, cfg.DurationColumn); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return entry, fmt.Errorf("invalid duration: %w", err)
		}
		if d < 0 {
			return entry, fmt.Errorf("negative duration %v", d)
		}
		entry.ReviewDurationSeconds = &d
	}
	return entry, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04",
	"02.01.2006",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

func readRows(r io.Reader, format Format, sheet string) ([][]string, error) {
	if format == FormatCSV {
		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1 // Allow variable number of fields
		reader.LazyQuotes = true
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		return rows, nil
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

// cleanWord удаляет из слова дополнительную информацию в скобках
func cleanWord(word string) string {
	// "go (went, gone)" -> "go"
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func cellAt(row []string, column string) string {
	if column == "" {
		return ""
	}
	return cell(row, columnToIndex(column))
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
