// Package ingest turns uploaded delimited-text and spreadsheet files into raw tables.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cdrlens/internal/models"
)

// Format is the declared container format of an upload.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Ingestion errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoHeader          = errors.New("file has no header row")
)

// ParseError reports an upload that could not be read into a table.
type ParseError struct {
	Err    error
	Reason string
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}

	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(reason string, err error) *ParseError {
	return &ParseError{Reason: reason, Err: err}
}

// ParseFormat accepts a declared format tag such as "csv", "text/csv",
// "xlsx" or "spreadsheet".
func ParseFormat(tag string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "csv", "text/csv", "txt", "delimited", "text":
		return FormatCSV, nil
	case "xlsx", "xlsm", "excel", "spreadsheet",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX, nil
	}

	return "", parseErr(fmt.Sprintf("unknown format tag %q", tag), ErrUnsupportedFormat)
}

// FormatFromName resolves the format from a file name extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}

	return "", parseErr(fmt.Sprintf("cannot infer format of %q (expected .csv or .xlsx)", filepath.Base(name)), ErrUnsupportedFormat)
}

// Read parses r as the given format.
func Read(r io.Reader, format Format) (*models.RawTable, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r)
	}

	return nil, parseErr(fmt.Sprintf("format %q", format), ErrUnsupportedFormat)
}

// ReadFile opens path and parses it according to its extension.
func ReadFile(path string) (*models.RawTable, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, parseErr("cannot open file", err)
	}
	defer f.Close()

	return Read(f, format)
}

// rectangular pads or truncates every row to the header width.
func rectangular(header []string, rows [][]string) *models.RawTable {
	width := len(header)

	for i, row := range rows {
		switch {
		case len(row) < width:
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		case len(row) > width:
			rows[i] = row[:width]
		}
	}

	return &models.RawTable{Columns: header, Rows: rows}
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}

	return true
}
