package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Checklist"

// XLSXContentType is the MIME type of WriteXLSX output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type xlsxStyles struct {
	title, label, serial, header, cell int
}

// WriteXLSX renders rep as one sheet: a title, the project header block and,
// per type and serial number, a shaded serial row followed by the grouped table.
func WriteXLSX(w io.Writer, rep *Report) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	styles, err := newXLSXStyles(f)
	if err != nil {
		return err
	}

	sw := &sheetWriter{f: f, row: 1}

	sw.put(styles.title, rep.Title())
	sw.merge()
	sw.row++

	sw.put(styles.label, "Project", rep.ProjectID)
	sw.put(styles.label, "Owner", rep.OwnerID)
	sw.put(styles.label, "Date", rep.Date)
	sw.put(styles.label, "Name and surname", "")
	sw.put(styles.label, "Signature", "")
	sw.row++

	for _, section := range rep.Sections {
		sw.put(styles.label, "Type", section.TypeName)
		sw.put(styles.label, "Repetitions", section.RepetitionCount)
		sw.row++

		for _, block := range section.Serials {
			sw.put(styles.serial, "Serial number: "+block.SerialNumber)
			sw.merge()
			sw.put(styles.header, "Segment", "Question", "Answer", "Answered at")
			for _, r := range block.Rows {
				sw.put(styles.cell, r.Segment, r.Question, r.Answer, r.AnsweredAt)
			}
			sw.row++
		}
	}
	if sw.err != nil {
		return fmt.Errorf("failed to write report sheet: %w", sw.err)
	}

	widths := map[string]float64{"A": 24, "B": 60, "C": 20, "D": 18}
	for col, width := range widths {
		if err := f.SetColWidth(xlsxSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to size column %s: %w", col, err)
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// sheetWriter appends rows and keeps the first error.
type sheetWriter struct {
	f   *excelize.File
	row int
	err error
}

func (s *sheetWriter) put(style int, values ...interface{}) {
	if s.err != nil {
		return
	}
	start, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		s.err = err
		return
	}
	end, err := excelize.CoordinatesToCellName(len(values), s.row)
	if err != nil {
		s.err = err
		return
	}
	if err := s.f.SetSheetRow(xlsxSheet, start, &values); err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetCellStyle(xlsxSheet, start, end, style)
	s.row++
}

// merge spans the previous row across the four table columns.
func (s *sheetWriter) merge() {
	if s.err != nil {
		return
	}
	s.err = s.f.MergeCell(xlsxSheet, fmt.Sprintf("A%d", s.row-1), fmt.Sprintf("D%d", s.row-1))
}

func newXLSXStyles(f *excelize.File) (xlsxStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "999999", Style: 1},
		{Type: "right", Color: "999999", Style: 1},
		{Type: "top", Color: "999999", Style: 1},
		{Type: "bottom", Color: "999999", Style: 1},
	}
	defs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true, Size: 14}},
		{Font: &excelize.Font{Bold: true}},
		{Font: &excelize.Font{Bold: true}, Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9D9D9"}}},
		{Font: &excelize.Font{Bold: true}, Border: border, Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}}},
		{Border: border, Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}},
	}
	ids := make([]int, len(defs))
	for i, def := range defs {
		id, err := f.NewStyle(def)
		if err != nil {
			return xlsxStyles{}, fmt.Errorf("failed to create style: %w", err)
		}
		ids[i] = id
	}
	return xlsxStyles{title: ids[0], label: ids[1], serial: ids[2], header: ids[3], cell: ids[4]}, nil
}
