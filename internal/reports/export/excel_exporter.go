package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter exports data to Excel format
type ExcelExporter struct {
	options ExcelOptions
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string            `json:"sheet_name"`
	SummarySheet string            `json:"summary_sheet"`
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	NumberFormat string            `json:"number_format"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	AutoWidth    bool              `json:"auto_width"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Ledger",
		SummarySheet: "Summary",
		FreezeHeader: true,
		AutoFilter:   true,
		NumberFormat: "#,##0.00",
		AutoWidth:    true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	return &ExcelExporter{options: options}
}

func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *ExcelExporter) Extension() string { return "xlsx" }

// Export writes a workbook with the table on one sheet and, when the table
// has summary items, a second summary sheet.
func (e *ExcelExporter) Export(w io.Writer, t Table) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := e.options.SheetName
	if err := file.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := e.writeHeader(file, sheet, t.labels()); err != nil {
		return err
	}
	if err := e.writeRows(file, sheet, t); err != nil {
		return err
	}
	if len(t.Summary) > 0 && e.options.SummarySheet != "" {
		if err := e.writeSummary(file, t); err != nil {
			return err
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *ExcelExporter) writeHeader(file *excelize.File, sheet string, labels []string) error {
	headerStyleID := 0
	if e.options.HeaderStyle != nil {
		style, err := createStyle(file, e.options.HeaderStyle)
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		headerStyleID = style
	}

	for i, label := range labels {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, label); err != nil {
			return err
		}
		if headerStyleID > 0 {
			file.SetCellStyle(sheet, cell, cell, headerStyleID)
		}
	}

	if e.options.FreezeHeader {
		file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

func (e *ExcelExporter) writeRows(file *excelize.File, sheet string, t Table) error {
	numberStyle := 0
	if e.options.NumberFormat != "" {
		style, err := file.NewStyle(&excelize.Style{CustomNumFmt: &e.options.NumberFormat})
		if err != nil {
			return fmt.Errorf("failed to create number style: %w", err)
		}
		numberStyle = style
	}
	dateStyle, err := file.NewStyle(&excelize.Style{NumFmt: 22}) // m/d/yy h:mm
	if err != nil {
		return fmt.Errorf("failed to create date style: %w", err)
	}

	widths := make([]float64, len(t.Columns))
	for i, label := range t.labels() {
		widths[i] = float64(len(label))
	}

	for rowIdx, row := range t.Rows {
		for colIdx, key := range t.keys() {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			style, width, err := setCellValue(file, sheet, cell, row[key])
			if err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
			switch style {
			case cellNumber:
				if numberStyle > 0 {
					file.SetCellStyle(sheet, cell, cell, numberStyle)
				}
			case cellDate:
				file.SetCellStyle(sheet, cell, cell, dateStyle)
			}
			if width > widths[colIdx] {
				widths[colIdx] = width
			}
		}
	}

	if e.options.AutoFilter && len(t.Rows) > 0 {
		lastCol, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
		file.AutoFilter(sheet, "A1:"+lastCol, nil)
	}

	if e.options.AutoWidth {
		for colIdx, width := range widths {
			col, _ := excelize.ColumnNumberToName(colIdx + 1)
			// Min width 10, max width 50
			width = width*1.2 + 2
			if width < 10 {
				width = 10
			}
			if width > 50 {
				width = 50
			}
			file.SetColWidth(sheet, col, col, width)
		}
	}
	return nil
}

func (e *ExcelExporter) writeSummary(file *excelize.File, t Table) error {
	sheet := e.options.SummarySheet
	if _, err := file.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if t.Title != "" {
		file.SetCellValue(sheet, "A1", t.Title)
	}
	for i, item := range t.Summary {
		row := i + 3
		file.SetCellValue(sheet, fmt.Sprintf("A%d", row), item.Label)
		if _, _, err := setCellValue(file, sheet, fmt.Sprintf("B%d", row), item.Value); err != nil {
			return err
		}
	}
	file.SetColWidth(sheet, "A", "B", 28)
	return nil
}

type cellKind int

const (
	cellText cellKind = iota
	cellNumber
	cellDate
)

// setCellValue writes val with its native Excel type and reports which
// style it needs and roughly how wide it renders.
func setCellValue(file *excelize.File, sheet, cell string, val interface{}) (cellKind, float64, error) {
	switch v := val.(type) {
	case nil:
		return cellText, 0, file.SetCellValue(sheet, cell, "")
	case time.Time:
		if v.IsZero() {
			return cellText, 0, file.SetCellValue(sheet, cell, "")
		}
		return cellDate, 18, file.SetCellValue(sheet, cell, v.UTC())
	case *time.Time:
		if v == nil || v.IsZero() {
			return cellText, 0, file.SetCellValue(sheet, cell, "")
		}
		return cellDate, 18, file.SetCellValue(sheet, cell, v.UTC())
	case float64, float32, int, int64:
		return cellNumber, float64(len(fmt.Sprintf("%v", v))), file.SetCellValue(sheet, cell, v)
	default:
		s := formatText(v, time.RFC3339)
		return cellText, float64(len(s)), file.SetCellValue(sheet, cell, s)
	}
}

// createStyle creates an Excel style from config
func createStyle(file *excelize.File, config *ExcelStyleConfig) (int, error) {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return file.NewStyle(style)
}
