package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// CSVExporter writes one block per section, separated by a blank record.
type CSVExporter struct{}

// Extension implements Exporter.
func (CSVExporter) Extension() string { return "csv" }

// ContentType implements Exporter.
func (CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

// Export implements Exporter.
func (CSVExporter) Export(doc *Document, w io.Writer) error {
	cw := csv.NewWriter(w)

	records := [][]string{
		{doc.Title},
		{"Generated", doc.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Digest", doc.Digest},
	}

	for _, sec := range doc.Sections {
		records = append(records, []string{}, []string{"## " + sec.Heading})

		switch {
		case len(sec.Fields) > 0:
			for _, f := range sec.Fields {
				records = append(records, []string{f.Name, f.Value})
			}
		case sec.Table != nil:
			records = append(records, sec.Table.Columns)
			records = append(records, sec.Table.Rows...)
		default:
			records = append(records, []string{sec.Statement})
		}
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv report: %w", err)
	}

	return nil
}
