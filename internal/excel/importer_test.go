package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook saves rows to the default sheet of a new workbook.
func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		row := row
		require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", i+1), &row))
	}
	path := filepath.Join(t.TempDir(), "part5.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

var header = []interface{}{"Sentence", "A", "B", "C", "D", "Answer", "Category", "Explanation"}

func TestReadFile_Workbook(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		header,
		{"The shipment will arrive ------- Monday.", "on", "in", "at", "by", "A", "Prepositions", "Days take on."},
		{"She ------- the report yesterday.", "finish", "finished", "", "", "b"},
		{"", "x", "y", "", "", "A"},
		{"Only one choice -------.", "x", "", "", "", "A"},
		{"Answer out of range -------.", "x", "y", "", "", "D"},
	})

	result, err := ReadFile(path, DefaultImportConfig())
	require.NoError(t, err)

	assert.Equal(t, 5, result.TotalProcessed)
	require.Len(t, result.Questions, 2)

	q := result.Questions[0]
	assert.Equal(t, "The shipment will arrive ------- Monday.", q.Sentence)
	assert.Equal(t, []string{"on", "in", "at", "by"}, q.Choices)
	assert.Equal(t, "A", q.Answer)
	assert.Equal(t, "Prepositions", q.Category)
	assert.Equal(t, "Days take on.", q.Explanation)

	q = result.Questions[1]
	assert.Equal(t, []string{"finish", "finished"}, q.Choices)
	assert.Equal(t, "B", q.Answer)

	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "Row 4")
	assert.Contains(t, result.Errors[1], "Row 5")
	assert.Contains(t, result.Errors[2], "Row 6")
}

func TestReadFile_NamedSheet(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		header,
		{"Sentence -------.", "x", "y", "", "", "A"},
	})

	cfg := DefaultImportConfig()
	cfg.SheetName = "Sheet1"
	result, err := ReadFile(path, cfg)
	require.NoError(t, err)
	assert.Len(t, result.Questions, 1)

	cfg.SheetName = "Missing"
	_, err = ReadFile(path, cfg)
	assert.Error(t, err)
}

func TestReadFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part5.csv")
	content := "Sentence,A,B,C,D,Answer\n" +
		",,,,,\n" +
		"\"The meeting was postponed ------- further notice.\",until,by,for,since,(A)\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	result, err := ReadFile(path, DefaultImportConfig())
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, "The meeting was postponed ------- further notice.", result.Questions[0].Sentence)
	assert.Equal(t, "A", result.Questions[0].Answer)
	assert.Empty(t, result.Errors)
}

func TestReadFile_InvalidConfig(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.ChoiceColumns = []string{"B"}
	_, err := ReadFile("unused.xlsx", cfg)
	assert.Error(t, err)

	cfg = DefaultImportConfig()
	cfg.AnswerColumn = "1"
	_, err = ReadFile("unused.xlsx", cfg)
	assert.Error(t, err)
}

func TestReadFile_MissingFile(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.xlsx"), DefaultImportConfig())
	assert.Error(t, err)
}
