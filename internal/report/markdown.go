package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cdrlens/pkg/metadata"

	"github.com/mattn/go-runewidth"
)

// MarkdownExporter renders a signed Markdown report.
type MarkdownExporter struct{}

// Extension implements Exporter.
func (MarkdownExporter) Extension() string { return "md" }

// ContentType implements Exporter.
func (MarkdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }

// Export implements Exporter.
func (MarkdownExporter) Export(doc *Document, w io.Writer) error {
	_, err := io.WriteString(w, RenderMarkdown(doc)+"\n")
	if err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}

	return nil
}

// RenderMarkdown renders doc with aligned tables and a trailing metadata
// block that metadata.Verify accepts.
func RenderMarkdown(doc *Document) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", doc.Title)
	fmt.Fprintf(&sb, "Generated: %s  \n", doc.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Digest: `%s`\n", doc.Digest)

	for _, sec := range doc.Sections {
		fmt.Fprintf(&sb, "\n## %s\n\n", sec.Heading)

		switch {
		case len(sec.Fields) > 0:
			sb.WriteString("| Field | Value |\n| --- | --- |\n")

			for _, f := range sec.Fields {
				fmt.Fprintf(&sb, "| %s | %s |\n", escapeCell(f.Name), escapeCell(f.Value))
			}
		case sec.Table != nil:
			writeMarkdownRow(&sb, sec.Table.Columns)

			seps := make([]string, len(sec.Table.Columns))
			for i := range seps {
				seps[i] = "---"
			}

			writeMarkdownRow(&sb, seps)

			for _, row := range sec.Table.Rows {
				writeMarkdownRow(&sb, row)
			}
		default:
			sb.WriteString("_" + sec.Statement + "_\n")
		}
	}

	return metadata.Sign(AlignTables(sb.String()), doc.RunID, doc.GeneratedAt)
}

// VerifyMarkdown checks a rendered report's hash and that the RUN_ID in its
// metadata block matches the Run ID row of the report body.
func VerifyMarkdown(content string) (*metadata.Metadata, error) {
	_, body := metadata.Extract(content)

	runID, ok := markdownRunID(body)
	if !ok {
		return nil, ErrNoRun
	}

	return metadata.VerifyRun(content, runID)
}

func markdownRunID(body string) (string, bool) {
	for line := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "|") {
			continue
		}

		if cells := splitRow(line); len(cells) >= 2 && cells[0] == runIDField {
			return cells[1], cells[1] != ""
		}
	}

	return "", false
}

func writeMarkdownRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")

	for _, c := range cells {
		sb.WriteString(" " + escapeCell(c) + " |")
	}

	sb.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)

	return strings.ReplaceAll(s, "|", `\|`)
}

// AlignTables pads every Markdown table in content so that its columns line
// up by display width.
func AlignTables(content string) string {
	lines := strings.Split(content, "\n")

	var (
		out    []string
		buffer []string
	)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") && len(trimmed) > 1 {
			buffer = append(buffer, line)

			continue
		}

		if len(buffer) > 0 {
			out = append(out, alignTable(buffer)...)
			buffer = nil
		}

		out = append(out, line)
	}

	if len(buffer) > 0 {
		out = append(out, alignTable(buffer)...)
	}

	return strings.Join(out, "\n")
}

func alignTable(rows []string) []string {
	// Needs at least header and separator.
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, splitRow(row))
	}

	colCount := 0
	for _, row := range table {
		colCount = max(colCount, len(row))
	}

	sepIdx := -1
	if isSeparatorRow(table[1]) {
		sepIdx = 1
	}

	widths := make([]int, colCount)

	for r, row := range table {
		if r == sepIdx {
			continue
		}

		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for i := range widths {
		widths[i] = max(widths[i], 3)
	}

	result := make([]string, 0, len(table))

	for r, row := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for j := range colCount {
			sb.WriteString(" ")

			if r == sepIdx {
				sb.WriteString(strings.Repeat("-", widths[j]))
			} else {
				cell := ""
				if j < len(row) {
					cell = row[j]
				}

				sb.WriteString(cell)
				sb.WriteString(strings.Repeat(" ", widths[j]-runewidth.StringWidth(cell)))
			}

			sb.WriteString(" |")
		}

		result = append(result, sb.String())
	}

	return result
}

// splitRow splits a table row on unescaped pipes.
func splitRow(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")

	if strings.HasSuffix(row, "|") && !strings.HasSuffix(row, `\|`) {
		row = row[:len(row)-1]
	}

	var (
		cells []string
		cur   strings.Builder
	)

	for i := 0; i < len(row); i++ {
		switch {
		case row[i] == '\\' && i+1 < len(row) && row[i+1] == '|':
			cur.WriteString(`\|`)
			i++
		case row[i] == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(row[i])
		}
	}

	return append(cells, strings.TrimSpace(cur.String()))
}

func isSeparatorRow(cells []string) bool {
	for _, cell := range cells {
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}

	return true
}
