package export

import (
	"fmt"
	"io"
	"time"
)

// Column is one exported field. Key indexes the row maps, Label is what the
// reader sees.
type Column struct {
	Key   string
	Label string
}

// Table is the format-independent shape every exporter renders.
type Table struct {
	Title    string
	Subtitle string
	Summary  []SummaryItem
	Columns  []Column
	Rows     []map[string]interface{}
}

// SummaryItem is a labelled value printed above the table where the format
// allows it.
type SummaryItem struct {
	Label string
	Value interface{}
}

// Exporter writes a table in one file format.
type Exporter interface {
	Export(w io.Writer, t Table) error
	ContentType() string
	Extension() string
}

// Format names an export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ForFormat returns the exporter for f with default options.
func ForFormat(f Format) (Exporter, error) {
	switch f {
	case FormatCSV, "":
		return NewCSVExporter(DefaultCSVOptions()), nil
	case FormatXLSX:
		return NewExcelExporter(DefaultExcelOptions()), nil
	case FormatPDF:
		return NewPDFGenerator(DefaultPDFOptions()), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

func (t Table) keys() []string {
	keys := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		keys[i] = c.Key
	}
	return keys
}

func (t Table) labels() []string {
	labels := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		labels[i] = c.Label
	}
	return labels
}

// formatText renders a value for text formats.
func formatText(val interface{}, timestampFormat string) string {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(timestampFormat)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.UTC().Format(timestampFormat)
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case float64:
		return fmt.Sprintf("%.2f", v)
	case float32:
		return fmt.Sprintf("%.2f", v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
