package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/phrazzld/ereuna/internal/domain"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

const (
	pdfFont     = "Helvetica"
	pdfMonoFont = "Courier"
	pdfMargin   = 20.0
	pdfLine     = 6.0
	pdfIndent   = 6.0
	pdfAuthor   = "Ereuna research assistant"
)

// PDF renders the report as a PDF document: a cover page, a table of
// contents, then every section on its own page followed by the sources.
//
// The layout does not depend on page numbers, so a first pass records where
// each section starts and a second pass prints the real numbers in the table
// of contents.
func PDF(report *domain.Report) ([]byte, error) {
	first, pages, err := renderPDF(report, nil)
	if err != nil {
		return nil, err
	}

	final, _, err := renderPDF(report, pages)
	if err != nil {
		return nil, err
	}
	if first.PageNo() != final.PageNo() {
		return nil, fmt.Errorf("rendering report PDF: page count changed between passes (%d, %d)",
			first.PageNo(), final.PageNo())
	}

	var buf bytes.Buffer
	if err := final.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering report PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// tocTitles lists the table of contents in document order.
func tocTitles(report *domain.Report) []string {
	titles := make([]string, 0, len(report.Sections)+1)
	for _, s := range report.Sections {
		titles = append(titles, s.Title)
	}
	if len(report.SourceURLs) > 0 {
		titles = append(titles, "Sources")
	}
	return titles
}

// renderPDF lays out the whole document and returns the start page of every
// table of contents entry.
func renderPDF(report *domain.Report, pages []int) (*fpdf.Fpdf, []int, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetTitle(report.Topic, true)
	pdf.SetAuthor(pdfAuthor, true)
	pdf.SetCreator("ereuna", true)
	if !report.CreatedAt.IsZero() {
		pdf.SetCreationDate(report.CreatedAt)
	}

	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFooterFunc(func() {
		if pdf.PageNo() == 1 {
			return
		}
		pdf.SetY(-12)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.CellFormat(0, 8, strconv.Itoa(pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	w.cover(report)

	titles := tocTitles(report)
	links := w.contents(titles, pages)

	starts := make([]int, 0, len(titles))
	for i, s := range report.Sections {
		starts = append(starts, w.startChapter(s.Title, links[i]))
		w.section(s)
	}
	if len(report.SourceURLs) > 0 {
		starts = append(starts, w.startChapter("Sources", links[len(links)-1]))
		pdf.SetFont(pdfFont, "", 10)
		for _, u := range report.SourceURLs {
			pdf.CellFormat(0, pdfLine, w.tr(u), "", 1, "L", false, 0, u)
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, nil, fmt.Errorf("rendering report PDF: %w", err)
	}
	return pdf, starts, nil
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// text prepares s for the core fonts, which only cover Windows-1252.
func (w *pdfWriter) text(s string) string {
	return w.tr(norm.NFC.String(s))
}

func (w *pdfWriter) cover(report *domain.Report) {
	pdf := w.pdf
	pdf.AddPage()
	pdf.Ln(40)

	pdf.SetFont(pdfFont, "B", 24)
	pdf.CellFormat(0, 20, "Research Report", "", 1, "C", false, 0, "")
	pdf.SetFont(pdfFont, "B", 16)
	pdf.MultiCell(0, 9, w.text(report.Topic), "", "C", false)
	pdf.Ln(6)

	pdf.SetFont(pdfFont, "", 12)
	pdf.CellFormat(0, 8, w.text("Author: "+pdfAuthor), "", 1, "C", false, 0, "")
	if !report.CreatedAt.IsZero() {
		pdf.CellFormat(0, 8, "Date: "+report.CreatedAt.Format("2006-01-02"), "", 1, "C", false, 0, "")
	}

	if len(report.Keywords) > 0 {
		pdf.Ln(10)
		pdf.SetFont(pdfFont, "I", 11)
		pdf.MultiCell(0, pdfLine, w.text("Keywords: "+strings.Join(report.Keywords, ", ")), "", "C", false)
	}
	if len(report.ResearchQuestions) > 0 {
		pdf.Ln(6)
		pdf.SetFont(pdfFont, "B", 11)
		pdf.CellFormat(0, pdfLine, "Research questions", "", 1, "L", false, 0, "")
		pdf.SetFont(pdfFont, "", 11)
		for _, q := range report.ResearchQuestions {
			w.listLine("-", q, 0)
		}
	}
}

// contents writes the table of contents and returns one internal link per
// title, to be pointed at its page by startChapter. pages, when known, are
// the start pages of the titles.
func (w *pdfWriter) contents(titles []string, pages []int) []int {
	pdf := w.pdf
	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 20, "Table of Contents", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pageWidth, _ := pdf.GetPageSize()
	titleWidth := pageWidth - 2*pdfMargin - 10 - 15

	pdf.SetFont(pdfFont, "", 12)
	links := make([]int, len(titles))
	for i, title := range titles {
		links[i] = pdf.AddLink()
		page := 0
		if i < len(pages) {
			page = pages[i]
		}
		pdf.CellFormat(10, 8, strconv.Itoa(i+1)+".", "", 0, "L", false, 0, "")
		pdf.CellFormat(titleWidth, 8, w.text(title), "", 0, "L", false, links[i], "")
		pdf.CellFormat(15, 8, strconv.Itoa(page), "", 1, "R", false, 0, "")
	}
	return links
}

// startChapter opens a new page headed by title, bookmarks it and returns the
// page number.
func (w *pdfWriter) startChapter(title string, link int) int {
	pdf := w.pdf
	pdf.AddPage()
	pdf.SetLink(link, -1, -1)
	pdf.Bookmark(title, 0, -1)

	pdf.SetFont(pdfFont, "B", 16)
	pdf.MultiCell(0, 10, w.text(title), "", "L", false)
	pdf.Ln(3)

	return pdf.PageNo()
}

func (w *pdfWriter) section(s domain.Section) {
	pdf := w.pdf
	switch {
	case s.Status == domain.SectionStatusGenerated && s.GeneratedText != nil:
		src := []byte(*s.GeneratedText)
		doc := markdown.Parser().Parse(text.NewReader(src))
		for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
			w.block(n, src, 0)
		}
	case s.Status == domain.SectionStatusFailed:
		msg := strings.TrimSuffix(s.ErrorMessage, ".")
		if msg == "" {
			msg = "unknown error"
		}
		pdf.SetFont(pdfFont, "I", 11)
		w.paragraph("This section could not be generated: "+msg+".", 0)
	default:
		pdf.SetFont(pdfFont, "I", 11)
		w.paragraph("This section has not been generated yet.", 0)
	}
}

func (w *pdfWriter) block(n ast.Node, src []byte, indent float64) {
	pdf := w.pdf

	switch n := n.(type) {
	case *ast.Heading:
		size := 15.0 - float64(n.Level)
		if size < 11 {
			size = 11
		}
		pdf.Ln(2)
		pdf.SetFont(pdfFont, "B", size)
		w.paragraph(inlineText(n, src), indent)
		pdf.Ln(1)

	case *ast.Paragraph, *ast.TextBlock:
		pdf.SetFont(pdfFont, "", 11)
		w.paragraph(inlineText(n, src), indent)
		pdf.Ln(2)

	case *ast.List:
		pdf.SetFont(pdfFont, "", 11)
		number := n.Start
		if number == 0 {
			number = 1
		}
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "-"
			if n.IsOrdered() {
				marker = strconv.Itoa(number) + "."
				number++
			}
			w.listItem(item, marker, src, indent)
		}
		pdf.Ln(2)

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		pdf.SetFont(pdfMonoFont, "", 9)
		var b strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		w.paragraph(strings.TrimRight(b.String(), "\n"), indent+pdfIndent)
		pdf.Ln(2)

	case *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			pdf.SetFont(pdfFont, "I", 11)
			w.paragraph(inlineText(c, src), indent+pdfIndent)
		}
		pdf.Ln(2)

	case *ast.ThematicBreak:
		pageWidth, _ := pdf.GetPageSize()
		y := pdf.GetY() + 2
		pdf.Line(pdfMargin+indent, y, pageWidth-pdfMargin, y)
		pdf.Ln(5)

	case *east.Table:
		for row := n.FirstChild(); row != nil; row = row.NextSibling() {
			style := ""
			if _, header := row.(*east.TableHeader); header {
				style = "B"
			}
			cells := make([]string, 0, row.ChildCount())
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				cells = append(cells, inlineText(cell, src))
			}
			pdf.SetFont(pdfFont, style, 10)
			w.paragraph(strings.Join(cells, " | "), indent)
		}
		pdf.Ln(2)

	case *ast.HTMLBlock:
		// Raw HTML is dropped, as in the HTML export.

	default:
		pdf.SetFont(pdfFont, "", 11)
		w.paragraph(inlineText(n, src), indent)
	}
}

func (w *pdfWriter) listItem(item ast.Node, marker string, src []byte, indent float64) {
	first := item.FirstChild()
	if first == nil {
		w.listLine(marker, "", indent)
		return
	}

	for c := first; c != nil; c = c.NextSibling() {
		switch c.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			if c == first {
				w.pdf.SetFont(pdfFont, "", 11)
				w.listLine(marker, inlineText(c, src), indent)
				continue
			}
		}
		if c == first {
			w.listLine(marker, "", indent)
		}
		w.block(c, src, indent+pdfIndent)
	}
}

// paragraph writes wrapped text starting indent millimetres in from the left
// margin. Wrapped lines keep the indent.
func (w *pdfWriter) paragraph(s string, indent float64) {
	if s == "" {
		return
	}
	pdf := w.pdf
	pdf.SetLeftMargin(pdfMargin + indent)
	pdf.SetX(pdfMargin + indent)
	pdf.MultiCell(0, pdfLine, w.text(s), "", "L", false)
	pdf.SetLeftMargin(pdfMargin)
}

func (w *pdfWriter) listLine(marker, s string, indent float64) {
	pdf := w.pdf
	pdf.SetX(pdfMargin + indent)
	pdf.CellFormat(pdfIndent, pdfLine, marker, "", 0, "L", false, 0, "")
	if s == "" {
		pdf.Ln(pdfLine)
		return
	}
	pdf.SetLeftMargin(pdfMargin + indent + pdfIndent)
	pdf.MultiCell(0, pdfLine, w.text(s), "", "L", false)
	pdf.SetLeftMargin(pdfMargin)
}

// inlineText flattens the inline content of n. Soft line breaks become spaces
// and raw HTML is skipped.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := node.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(src))
			switch {
			case node.HardLineBreak():
				b.WriteByte('\n')
			case node.SoftLineBreak():
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
