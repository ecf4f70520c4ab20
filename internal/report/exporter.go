package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnknownFormat is returned for an unsupported export format.
var ErrUnknownFormat = errors.New("unknown report format")

// Exporter renders a document in one output format.
type Exporter interface {
	Export(doc *Document, w io.Writer) error
	Extension() string
	ContentType() string
}

// Formats lists the supported export formats.
func Formats() []string {
	return []string{"pdf", "markdown", "json", "csv"}
}

// ExporterFor returns the exporter for format. An empty format means PDF.
func ExporterFor(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "pdf":
		return PDFExporter{}, nil
	case "markdown", "md":
		return MarkdownExporter{}, nil
	case "json":
		return NewJSONExporter(), nil
	case "csv":
		return CSVExporter{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteArtifact exports doc into a new temporary file under dir. The caller
// owns the file and must call cleanup once it has been delivered.
func WriteArtifact(dir string, doc *Document, exp Exporter) (string, func(), error) {
	noop := func() {}

	f, err := os.CreateTemp(dir, "report-*."+exp.Extension())
	if err != nil {
		return "", noop, fmt.Errorf("failed to create report artifact: %w", err)
	}

	path := f.Name()
	cleanup := func() { _ = os.Remove(path) }

	bw := bufio.NewWriter(f)

	if err := exp.Export(doc, bw); err != nil {
		_ = f.Close()

		cleanup()

		return "", noop, fmt.Errorf("failed to export report: %w", err)
	}

	if err := bw.Flush(); err != nil {
		_ = f.Close()

		cleanup()

		return "", noop, fmt.Errorf("failed to write report artifact: %w", err)
	}

	if err := f.Close(); err != nil {
		cleanup()

		return "", noop, fmt.Errorf("failed to close report artifact: %w", err)
	}

	return filepath.Clean(path), cleanup, nil
}
