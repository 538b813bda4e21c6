// Package templatesheet reads and writes the XLSX sheet used to upload a
// type's segments and questions in bulk.
package templatesheet

import (
	"fmt"
	"io"
	"strings"

	"checklist/apierr"
	"checklist/models"

	"github.com/xuri/excelize/v2"
)

// Column names of the template header row, in sample order.
const (
	ColSegment     = "segment"
	ColQuestion    = "question"
	ColType        = "type"
	ColRequired    = "required"
	ColDescription = "description"
	ColOptions     = "options"
	ColRepeatable  = "repeatable"
)

var Columns = []string{ColSegment, ColQuestion, ColType, ColRequired, ColDescription, ColOptions, ColRepeatable}

const (
	sampleSheet       = "Sample"
	instructionsSheet = "Instructions"
)

// Parse reads the first sheet of an XLSX workbook. The header row maps
// column names (case-insensitive, any order) to positions; segment and
// question are mandatory columns. Missing cells read as "", required and
// repeatable are true only for a case-insensitive "true", and an empty type
// defaults to boolean. Blank rows are skipped.
func Parse(r io.Reader) ([]models.TemplateRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apierr.Invalidf("file is not a readable XLSX workbook: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apierr.Invalidf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apierr.Invalidf("failed to read sheet %q: %v", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, apierr.Invalidf("sheet %q is empty", sheets[0])
	}

	index, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	out := []models.TemplateRow{}
	for i, cells := range rows[1:] {
		line := i + 2
		get := func(col string) string {
			pos, ok := index[col]
			if !ok || pos >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[pos])
		}

		if isBlank(cells) {
			continue
		}

		row := models.TemplateRow{
			Segment:     get(ColSegment),
			Question:    get(ColQuestion),
			Kind:        models.QuestionKind(strings.ToLower(get(ColType))),
			Required:    truthy(get(ColRequired)),
			Description: get(ColDescription),
			Options:     get(ColOptions),
			Repeatable:  truthy(get(ColRepeatable)),
		}
		if row.Kind == "" {
			row.Kind = models.KindBoolean
		}

		switch {
		case row.Segment == "":
			return nil, apierr.Invalidf("row %d: segment is empty", line)
		case row.Question == "":
			return nil, apierr.Invalidf("row %d: question is empty", line)
		case !row.Kind.Valid():
			return nil, apierr.Invalidf("row %d: unknown type %q", line, row.Kind)
		}
		out = append(out, row)
	}

	if len(out) == 0 {
		return nil, apierr.Invalidf("sheet %q has no question rows", sheets[0])
	}
	return out, nil
}

// WriteSample writes a workbook with a Sample sheet holding the header and
// example rows, and an Instructions sheet describing every column.
func WriteSample(w io.Writer) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sampleSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	sample := [][]interface{}{
		{"General", "Is the nameplate attached?", "boolean", "true", "Check the front panel", "", "false"},
		{"General", "Serial plate text", "text", "false", "", "", "false"},
		{"Measurements", "Insulation resistance (MOhm)", "number", "true", "Measured at 500 V", "", "true"},
		{"Measurements", "Protection class", "multiple_choice", "true", "", "I,II,III", "false"},
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sampleSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range sample {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sampleSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write sample row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(sampleSheet, "A1", "G1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	if err := f.SetColWidth(sampleSheet, "A", "G", 24); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.NewSheet(instructionsSheet); err != nil {
		return fmt.Errorf("failed to add instructions sheet: %w", err)
	}
	instructions := [][]interface{}{
		{"Column", "Meaning"},
		{ColSegment, "Segment name. Rows with the same name share one segment; the first occurrence fixes its position."},
		{ColQuestion, "Question text. Required."},
		{ColType, "boolean, text, number or multiple_choice. Empty means boolean."},
		{ColRequired, "true if an answer is mandatory. Anything else means false."},
		{ColDescription, "Optional help text shown with the question."},
		{ColOptions, "Comma-separated choices for multiple_choice questions."},
		{ColRepeatable, "true if the question may be answered more than once. Anything else means false."},
		{"", "Uploading a sheet replaces every segment and question of the type."},
	}
	for i, row := range instructions {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(instructionsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write instructions: %w", err)
		}
	}
	if err := f.SetColWidth(instructionsSheet, "B", "B", 90); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}

func headerIndex(header []string) (map[string]int, error) {
	index := map[string]int{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	for _, required := range []string{ColSegment, ColQuestion} {
		if _, ok := index[required]; !ok {
			return nil, apierr.Invalidf("header row is missing the %q column", required)
		}
	}
	return index, nil
}

func truthy(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
