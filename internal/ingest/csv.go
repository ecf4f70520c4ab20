package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"cdrlens/internal/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// candidate delimiters, in tie-break order
var delimiters = []rune{',', ';', '\t', '|'}

// ReadCSV parses delimited text. The delimiter is detected from the header
// line; blank lines are skipped and ragged rows are padded or truncated.
func ReadCSV(r io.Reader) (*models.RawTable, error) {
	br := bufio.NewReader(r)

	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	firstLine, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, parseErr("cannot read delimited text", err)
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(string(firstLine))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, parseErr("malformed delimited text", err)
	}

	var header []string

	var rows [][]string

	for _, rec := range records {
		if isBlankRow(rec) {
			continue
		}

		if header == nil {
			header = trimAll(rec)
			continue
		}

		rows = append(rows, rec)
	}

	if header == nil {
		return nil, parseErr("empty file", ErrNoHeader)
	}

	return rectangular(header, rows), nil
}

func detectDelimiter(sample string) rune {
	line := sample
	if i := strings.IndexAny(sample, "\r\n"); i >= 0 {
		line = sample[:i]
	}

	best := delimiters[0]
	bestCount := 0

	for _, d := range delimiters {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}

	return best
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}

	return out
}
