package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

// PDFContentType is the MIME type of WritePDF output.
const PDFContentType = "application/pdf"

const (
	pdfMargin     = 15.0
	pdfLineHeight = 6.0
)

// column widths in mm; they add up to the A4 content width.
var pdfColumns = []float64{70, 60, 50}

// WritePDF renders rep as an A4 document for printing and signing: the
// project table with a blank signature line, then per serial number one
// bordered table per segment.
func WritePDF(w io.Writer, rep *Report) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(rep.Title(), true)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(rep.Title()), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	info := [][2]string{
		{"Project", rep.ProjectID},
		{"Owner", rep.OwnerID},
		{"Date", rep.Date},
	}
	for _, section := range rep.Sections {
		info = append(info, [2]string{"Type", fmt.Sprintf("%s (%d)", section.TypeName, section.RepetitionCount)})
	}
	info = append(info, [2]string{"Name and surname", ""}, [2]string{"Signature", ""})
	for _, kv := range info {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, pdfLineHeight+2, tr(kv[0]), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(130, pdfLineHeight+2, tr(kv[1]), "1", 1, "L", false, 0, "")
	}

	for _, section := range rep.Sections {
		for _, block := range section.Serials {
			pdf.Ln(6)
			pdf.SetFont("Helvetica", "B", 12)
			pdf.SetFillColor(217, 217, 217)
			pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s - serial number %s", section.TypeName, block.SerialNumber)),
				"", 1, "L", true, 0, "")

			for _, group := range segmentGroups(block.Rows) {
				pdf.Ln(2)
				pdf.SetFont("Helvetica", "B", 10)
				pdf.CellFormat(0, pdfLineHeight+1, tr(group.name), "", 1, "L", false, 0, "")
				pdfTableHeader(pdf, tr)
				pdf.SetFont("Helvetica", "", 9)
				for _, r := range group.rows {
					pdfRow(pdf, tr, r.Question, r.Answer, r.AnsweredAt)
				}
			}
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf.Output(w)
}

type segmentGroup struct {
	name string
	rows []Row
}

// segmentGroups splits rows at every row carrying a segment label.
func segmentGroups(rows []Row) []segmentGroup {
	groups := []segmentGroup{}
	for _, r := range rows {
		if r.Segment != "" || len(groups) == 0 {
			groups = append(groups, segmentGroup{name: r.Segment})
		}
		groups[len(groups)-1].rows = append(groups[len(groups)-1].rows, r)
	}
	return groups
}

func pdfTableHeader(pdf *fpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(221, 235, 247)
	for i, title := range []string{"Question", "Answer", "Answered at"} {
		pdf.CellFormat(pdfColumns[i], pdfLineHeight, tr(title), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
}

// pdfRow draws a row whose height fits the longest wrapped cell.
func pdfRow(pdf *fpdf.Fpdf, tr func(string) string, cells ...string) {
	lines := 1
	for i, c := range cells {
		if n := len(pdf.SplitText(tr(c), pdfColumns[i]-2)); n > lines {
			lines = n
		}
	}
	height := float64(lines) * pdfLineHeight

	_, pageHeight := pdf.GetPageSize()
	if pdf.GetY()+height > pageHeight-pdfMargin {
		pdf.AddPage()
	}

	x, y := pdf.GetXY()
	for i, c := range cells {
		pdf.Rect(x, y, pdfColumns[i], height, "D")
		pdf.SetXY(x, y)
		pdf.MultiCell(pdfColumns[i], pdfLineHeight, tr(c), "", "L", false)
		x += pdfColumns[i]
	}
	pdf.SetXY(pdfMargin, y+height)
}
