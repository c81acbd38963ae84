package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/conorfennell/part5srs/internal/domain"
)

// ImportConfig defines where each field lives in a workbook.
type ImportConfig struct {
	SentenceColumn    string   // Column with the sentence containing the blank
	ChoiceColumns     []string // Columns with choices (A) to (D), in order
	AnswerColumn      string   // Column with the answer letter
	CategoryColumn    string   // Column with the grammar category
	ExplanationColumn string   // Column with the explanation
	SheetName         string   // Name of the sheet to import; empty means the first sheet
	StartRow          int      // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		SentenceColumn:    "A",
		ChoiceColumns:     []string{"B", "C", "D", "E"},
		AnswerColumn:      "F",
		CategoryColumn:    "G",
		ExplanationColumn: "H",
		StartRow:          2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the questions read from a file and the rows that
// could not be read.
type ImportResult struct {
	TotalProcessed int
	Questions      []domain.Question
	Errors         []string
}

// columns is an ImportConfig resolved to zero-based indexes.
type columns struct {
	sentence, answer, category, explanation int
	choices                                 []int
}

// ReadFile reads questions from an Excel or CSV file.
func ReadFile(path string, config ImportConfig) (*ImportResult, error) {
	cols, err := config.resolve()
	if err != nil {
		return nil, err
	}

	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		return readCSV(path, config, cols)
	}
	return readWorkbook(path, config, cols)
}

func (c ImportConfig) resolve() (columns, error) {
	index := func(name string) (int, error) {
		if name == "" {
			return -1, nil
		}
		n, err := excelize.ColumnNameToNumber(name)
		if err != nil {
			return 0, fmt.Errorf("invalid column %q: %w", name, err)
		}
		return n - 1, nil
	}

	var cols columns
	var err error
	if cols.sentence, err = index(c.SentenceColumn); err != nil {
		return cols, err
	}
	if cols.answer, err = index(c.AnswerColumn); err != nil {
		return cols, err
	}
	if cols.category, err = index(c.CategoryColumn); err != nil {
		return cols, err
	}
	if cols.explanation, err = index(c.ExplanationColumn); err != nil {
		return cols, err
	}
	for _, name := range c.ChoiceColumns {
		i, err := index(name)
		if err != nil {
			return cols, err
		}
		cols.choices = append(cols.choices, i)
	}
	if cols.sentence < 0 || cols.answer < 0 || len(cols.choices) < 2 {
		return cols, fmt.Errorf("sentence, answer and at least two choice columns are required")
	}
	return cols, nil
}

// readWorkbook reads questions from an Excel file
func readWorkbook(path string, config ImportConfig, cols columns) (*ImportResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{}
	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		processRow(row, cols, result, i+1)
	}
	return result, nil
}

// readCSV reads questions from a CSV file laid out like the workbook
func readCSV(path string, config ImportConfig, cols columns) (*ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	result := &ImportResult{}
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}

		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		processRow(row, cols, result, rowNum)
	}
	return result, nil
}

// processRow turns one row into a question. Blank rows are skipped
// silently; incomplete rows are reported in result.Errors.
func processRow(row []string, cols columns, result *ImportResult, rowNum int) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	if strings.TrimSpace(strings.Join(row, "")) == "" {
		return
	}
	result.TotalProcessed++

	q := domain.Question{
		Sentence:    cell(cols.sentence),
		Answer:      strings.ToUpper(strings.Trim(cell(cols.answer), "() ")),
		Category:    cell(cols.category),
		Explanation: cell(cols.explanation),
	}
	// Trailing empty choice cells mean the question has fewer options.
	for _, i := range cols.choices {
		q.Choices = append(q.Choices, cell(i))
	}
	for len(q.Choices) > 0 && q.Choices[len(q.Choices)-1] == "" {
		q.Choices = q.Choices[:len(q.Choices)-1]
	}

	switch {
	case q.Sentence == "":
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: sentence cannot be empty", rowNum))
	case len(q.Choices) < 2:
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: at least two choices are required", rowNum))
	case q.AnswerIndex() < 0:
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: answer %q does not name a choice", rowNum, q.Answer))
	default:
		result.Questions = append(result.Questions, q)
	}
}
