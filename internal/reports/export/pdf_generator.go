package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFGenerator generates PDF statements
type PDFGenerator struct {
	options PDFOptions
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string             `json:"page_size"`   // A4, Letter, Legal
	Orientation    string             `json:"orientation"` // portrait, landscape
	DateFormat     string             `json:"date_format"`
	HeaderColor    PDFColor           `json:"header_color"`
	AlternateRows  bool               `json:"alternate_rows"`
	AlternateColor PDFColor           `json:"alternate_color"`
	FontFamily     string             `json:"font_family"`
	FontSize       float64            `json:"font_size"`
	HeaderFontSize float64            `json:"header_font_size"`
	TitleFontSize  float64            `json:"title_font_size"`
	Margins        PDFMargins         `json:"margins"`
	ColumnWidths   map[string]float64 `json:"column_widths,omitempty"`
	Now            func() time.Time   `json:"-"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "landscape",
		DateFormat:     "2006-01-02 15:04",
		HeaderColor:    PDFColor{R: 68, G: 114, B: 196},
		AlternateRows:  true,
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontFamily:     "Arial",
		FontSize:       9,
		HeaderFontSize: 10,
		TitleFontSize:  16,
		Margins: PDFMargins{
			Left:   12,
			Right:  12,
			Top:    15,
			Bottom: 15,
		},
		Now: time.Now,
	}
}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	if options.Now == nil {
		options.Now = time.Now
	}
	return &PDFGenerator{options: options}
}

func (g *PDFGenerator) ContentType() string { return "application/pdf" }
func (g *PDFGenerator) Extension() string   { return "pdf" }

// Export renders title, summary and table onto as many pages as needed.
func (g *PDFGenerator) Export(w io.Writer, t Table) error {
	orientation := "P"
	if g.options.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", g.options.PageSize, "")
	pdf.SetMargins(g.options.Margins.Left, g.options.Margins.Top, g.options.Margins.Right)
	pdf.SetAutoPageBreak(true, g.options.Margins.Bottom)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(g.options.FontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	g.addTitle(pdf, t)
	if len(t.Summary) > 0 {
		g.addSummary(pdf, t.Summary)
	}
	pdf.Ln(6)

	widths := g.columnWidths(pdf, t)
	labels := t.labels()
	g.addTableHeader(pdf, labels, widths)
	g.addTableData(pdf, t, labels, widths)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf.Output(w)
}

func (g *PDFGenerator) addTitle(pdf *gofpdf.Fpdf, t Table) {
	pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, t.Title, "", 1, "C", false, 0, "")

	if t.Subtitle != "" {
		pdf.SetFont(g.options.FontFamily, "", g.options.FontSize+2)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, t.Subtitle, "", 1, "C", false, 0, "")
	}

	pdf.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	pdf.SetTextColor(128, 128, 128)
	generated := "Generated: " + g.options.Now().UTC().Format(g.options.DateFormat) + " UTC"
	pdf.CellFormat(0, 6, generated, "", 1, "R", false, 0, "")
}

func (g *PDFGenerator) addSummary(pdf *gofpdf.Fpdf, items []SummaryItem) {
	pdf.Ln(2)
	pdf.SetTextColor(0, 0, 0)
	for _, item := range items {
		pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		pdf.CellFormat(45, 6, item.Label+":", "", 0, "L", false, 0, "")
		pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		pdf.CellFormat(0, 6, formatText(item.Value, g.options.DateFormat), "", 1, "L", false, 0, "")
	}
}

// columnWidths sizes columns to their content and scales them down to fit
// the page.
func (g *PDFGenerator) columnWidths(pdf *gofpdf.Fpdf, t Table) []float64 {
	pageWidth, _ := pdf.GetPageSize()
	available := pageWidth - g.options.Margins.Left - g.options.Margins.Right

	widths := make([]float64, len(t.Columns))
	pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	for i, c := range t.Columns {
		if w, ok := g.options.ColumnWidths[c.Key]; ok {
			widths[i] = w
			continue
		}
		widths[i] = pdf.GetStringWidth(c.Label) + 4
	}

	pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	sample := t.Rows
	if len(sample) > 100 {
		sample = sample[:100]
	}
	for _, row := range sample {
		for i, c := range t.Columns {
			if _, fixed := g.options.ColumnWidths[c.Key]; fixed {
				continue
			}
			if w := pdf.GetStringWidth(formatText(row[c.Key], g.options.DateFormat)) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > available {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func (g *PDFGenerator) addTableHeader(pdf *gofpdf.Fpdf, labels []string, widths []float64) {
	pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	pdf.SetTextColor(255, 255, 255)
	for i, label := range labels {
		pdf.CellFormat(widths[i], 8, label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func (g *PDFGenerator) addTableData(pdf *gofpdf.Fpdf, t Table, labels []string, widths []float64) {
	pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	pdf.SetTextColor(0, 0, 0)

	_, pageHeight := pdf.GetPageSize()
	for i, row := range t.Rows {
		if pdf.GetY()+7 > pageHeight-g.options.Margins.Bottom {
			pdf.AddPage()
			g.addTableHeader(pdf, labels, widths)
			pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
			pdf.SetTextColor(0, 0, 0)
		}

		if g.options.AlternateRows && i%2 == 1 {
			pdf.SetFillColor(g.options.AlternateColor.R, g.options.AlternateColor.G, g.options.AlternateColor.B)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}

		for j, c := range t.Columns {
			val := formatText(row[c.Key], g.options.DateFormat)
			// Truncate if too long
			if maxChars := int(widths[j] / 1.8); maxChars > 3 && len(val) > maxChars {
				val = val[:maxChars-3] + "..."
			}
			align := "L"
			switch row[c.Key].(type) {
			case float64, float32, int, int64:
				align = "R"
			}
			pdf.CellFormat(widths[j], 7, val, "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
	}
}
