package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin     = 12.0
	pdfLineHeight = 6.0
	pdfTextHeight = 4.2
	pdfCellPad    = 1.0
	pdfFontSize   = 8.0
)

// PDFExporter renders a paginated landscape PDF. Cells wrap to as many lines
// as their content needs; table headers are repeated at the top of every
// page a table spills onto.
type PDFExporter struct {
	// NoCompression leaves page content streams uncompressed.
	NoCompression bool
}

// Extension implements Exporter.
func (PDFExporter) Extension() string { return "pdf" }

// ContentType implements Exporter.
func (PDFExporter) ContentType() string { return "application/pdf" }

// Export implements Exporter.
func (e PDFExporter) Export(doc *Document, w io.Writer) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCompression(!e.NoCompression)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin+4)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetTitle(doc.Title, true)
	pdf.SetSubject("digest "+doc.Digest, true)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	r := &pdfRenderer{pdf: pdf, tr: tr}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("Run %s  |  Page %d/{nb}", doc.RunID, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", pdfFontSize)
	pdf.CellFormat(0, 5, "Generated "+doc.GeneratedAt.UTC().Format(time.RFC3339), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Digest "+doc.Digest, "", 1, "L", false, 0, "")

	for _, sec := range doc.Sections {
		r.heading(sec.Heading)

		switch {
		case len(sec.Fields) > 0:
			rows := make([][]string, len(sec.Fields))
			for i, f := range sec.Fields {
				rows[i] = []string{f.Name, f.Value}
			}

			r.table([]string{"Field", "Value"}, rows, 1, 3)
		case sec.Table != nil:
			r.table(sec.Table.Columns, sec.Table.Rows)
		default:
			pdf.SetFont("Helvetica", "I", pdfFontSize+1)
			pdf.MultiCell(0, pdfLineHeight, tr(sec.Statement), "", "L", false)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf report: %w", err)
	}

	return nil
}

type pdfRenderer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (r *pdfRenderer) heading(text string) {
	r.pdf.Ln(4)

	if r.remaining() < 3*pdfLineHeight {
		r.pdf.AddPage()
	}

	r.pdf.SetFont("Helvetica", "B", 11)
	r.pdf.CellFormat(0, 8, r.tr(text), "B", 1, "L", false, 0, "")
	r.pdf.Ln(1)
}

func (r *pdfRenderer) remaining() float64 {
	_, pageH := r.pdf.GetPageSize()

	return pageH - (pdfMargin + 4) - r.pdf.GetY()
}

// table draws columns and rows across the page width. weights, when given
// for every column, set relative column widths.
func (r *pdfRenderer) table(columns []string, rows [][]string, weights ...float64) {
	if len(columns) == 0 {
		return
	}

	widths := columnWidths(r.pdf, len(columns), weights)

	if r.remaining() < 2*pdfLineHeight {
		r.pdf.AddPage()
	}

	r.header(columns, widths)

	for i, row := range rows {
		r.pdf.SetFont("Helvetica", "", pdfFontSize)

		r.pdf.SetFillColor(245, 245, 245)

		cells := make([]string, len(columns))
		copy(cells, row)

		pending := r.layout(cells, widths)
		fresh := false

		for {
			if height := rowHeight(pending); r.remaining() >= height {
				r.drawRow(pending, widths, height, "L", i%2 == 1)

				break
			}

			if fresh {
				// Taller than a page: draw what fits and carry the rest.
				n := int((r.remaining() - 2*pdfCellPad) / pdfTextHeight)

				var head [][]string
				head, pending = cutLines(pending, n)
				r.drawRow(head, widths, rowHeight(head), "L", i%2 == 1)
			}

			r.pdf.AddPage()
			r.header(columns, widths)
			r.pdf.SetFont("Helvetica", "", pdfFontSize)
			r.pdf.SetFillColor(245, 245, 245)

			fresh = true
		}
	}
}

func (r *pdfRenderer) header(columns []string, widths []float64) {
	r.pdf.SetFont("Helvetica", "B", pdfFontSize)
	r.pdf.SetFillColor(220, 228, 240)

	lines := r.layout(columns, widths)
	r.drawRow(lines, widths, rowHeight(lines), "C", true)
}

// layout wraps every cell to its column width.
func (r *pdfRenderer) layout(cells []string, widths []float64) [][]string {
	lines := make([][]string, len(cells))
	for j, cell := range cells {
		lines[j] = r.wrap(cell, widths[j]-2*pdfCellPad-2*r.pdf.GetCellMargin())
	}

	return lines
}

// rowHeight is the height of the tallest wrapped cell.
func rowHeight(lines [][]string) float64 {
	most := 1
	for _, cell := range lines {
		most = max(most, len(cell))
	}

	return float64(most)*pdfTextHeight + 2*pdfCellPad
}

// cutLines cuts every cell after n lines.
func cutLines(lines [][]string, n int) (head, rest [][]string) {
	n = max(n, 1)
	head = make([][]string, len(lines))
	rest = make([][]string, len(lines))

	for j, cell := range lines {
		k := min(n, len(cell))
		head[j], rest[j] = cell[:k], cell[k:]
	}

	return head, rest
}

// wrap translates text and splits it into lines no wider than width.
// Explicit line breaks are kept; words longer than a line are broken.
func (r *pdfRenderer) wrap(text string, width float64) []string {
	var out []string

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		para = r.tr(para)
		if strings.TrimSpace(para) == "" {
			out = append(out, "")

			continue
		}

		out = append(out, r.fill(para, width)...)
	}

	if len(out) == 0 {
		out = []string{""}
	}

	return out
}

// fill breaks one translated, single-byte encoded paragraph greedily at
// spaces.
func (r *pdfRenderer) fill(para string, width float64) []string {
	var (
		lines []string
		cur   string
	)

	fits := func(s string) bool { return r.pdf.GetStringWidth(s) <= width }

	for _, word := range strings.Fields(para) {
		switch {
		case cur == "":
		case fits(cur + " " + word):
			cur += " " + word

			continue
		default:
			lines = append(lines, cur)
		}

		cur = word

		for len(cur) > 1 && !fits(cur) {
			n := len(cur) - 1
			for n > 1 && !fits(cur[:n]) {
				n--
			}

			lines = append(lines, cur[:n])
			cur = cur[n:]
		}
	}

	return append(lines, cur)
}

func (r *pdfRenderer) drawRow(lines [][]string, widths []float64, height float64, align string, fill bool) {
	x0, y := r.pdf.GetXY()
	x := x0

	style := "D"
	if fill {
		style = "FD"
	}

	for j, cell := range lines {
		r.pdf.Rect(x, y, widths[j], height, style)

		for k, line := range cell {
			r.pdf.SetXY(x+pdfCellPad, y+pdfCellPad+float64(k)*pdfTextHeight)
			r.pdf.CellFormat(widths[j]-2*pdfCellPad, pdfTextHeight, line, "", 0, align, false, 0, "")
		}

		x += widths[j]
	}

	r.pdf.SetXY(x0, y+height)
}

func columnWidths(pdf *fpdf.Fpdf, n int, weights []float64) []float64 {
	pageW, _ := pdf.GetPageSize()
	usable := pageW - 2*pdfMargin

	if len(weights) != n {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1
		}
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}

	widths := make([]float64, n)
	for i, w := range weights {
		widths[i] = usable * w / total
	}

	return widths
}
