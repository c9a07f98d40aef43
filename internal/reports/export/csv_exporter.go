package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVExporter exports data to CSV format
type CSVExporter struct {
	options CSVOptions
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter       rune   `json:"delimiter"`
	UseCRLF         bool   `json:"use_crlf"`
	IncludeHeader   bool   `json:"include_header"`
	TimestampFormat string `json:"timestamp_format"`
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:       ',',
		IncludeHeader:   true,
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	}
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(options CSVOptions) *CSVExporter {
	return &CSVExporter{options: options}
}

func (e *CSVExporter) ContentType() string { return "text/csv" }
func (e *CSVExporter) Extension() string   { return "csv" }

// Export writes the header and every row. Summary items are not part of CSV.
func (e *CSVExporter) Export(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	writer.Comma = e.options.Delimiter
	writer.UseCRLF = e.options.UseCRLF

	if e.options.IncludeHeader {
		if err := writer.Write(t.labels()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	keys := t.keys()
	record := make([]string, len(keys))
	for i, row := range t.Rows {
		for j, key := range keys {
			record[j] = formatText(row[key], e.options.TimestampFormat)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
