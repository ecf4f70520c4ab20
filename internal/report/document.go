// Package report assembles analysis runs into report documents and exports
// them as Markdown, JSON, CSV or PDF.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"cdrlens/internal/models"
	"cdrlens/pkg/metadata"
	"cdrlens/pkg/utils"
)

// NoAnomalies is stated for a result with no rows.
const NoAnomalies = "No anomalies found under current thresholds."

const runIDField = "Run ID"

// Report errors.
var (
	ErrNoRun          = errors.New("no analysis run to report")
	ErrDigestMismatch = errors.New("report digest mismatch")
)

// SectionKind classifies report sections.
type SectionKind string

// Section kinds, in document order.
const (
	SectionMetadata SectionKind = "metadata"
	SectionSummary  SectionKind = "summary"
	SectionFinding  SectionKind = "finding"
)

// Field is a labelled value.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TableBlock is a rendered result table.
type TableBlock struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Section is one part of a report. A finding carries either a Table or a
// Statement.
type Section struct {
	Kind      SectionKind `json:"kind"`
	Heading   string      `json:"heading"`
	Name      string      `json:"name,omitempty"`
	Fields    []Field     `json:"fields,omitempty"`
	Table     *TableBlock `json:"table,omitempty"`
	Statement string      `json:"statement,omitempty"`
}

// Document is an immutable report of one analysis run.
type Document struct {
	GeneratedAt time.Time `json:"generated_at"`
	Title       string    `json:"title"`
	BaseName    string    `json:"base_name"`
	RunID       string    `json:"run_id"`
	Digest      string    `json:"digest"`
	Sections    []Section `json:"sections"`
}

// Filename returns the download name for the given extension, e.g.
// CDR_Call_Spikes_Analysis_Report.pdf.
func (d *Document) Filename(ext string) string {
	return d.BaseName + "." + ext
}

// Findings returns the finding sections.
func (d *Document) Findings() []Section {
	var out []Section

	for _, s := range d.Sections {
		if s.Kind == SectionFinding {
			out = append(out, s)
		}
	}

	return out
}

// BuildReport builds the document of run, stamped with the current time.
func BuildReport(run *models.AnalysisRun) (*Document, error) {
	return Build(run, time.Now())
}

// Build assembles run into a document generated at now. Everything but
// GeneratedAt depends only on run.
func Build(run *models.AnalysisRun, now time.Time) (*Document, error) {
	if run == nil {
		return nil, ErrNoRun
	}

	doc := &Document{
		GeneratedAt: now.UTC(),
		Title:       fmt.Sprintf("%s %s Analysis Report", run.Family, run.Label),
		BaseName:    fmt.Sprintf("%s_%s_Analysis_Report", run.Family, utils.TitleWords(run.Label)),
		RunID:       run.ID,
	}

	doc.Sections = append(doc.Sections, metadataSection(run), summarySection(run))

	for _, res := range run.Results {
		sec := Section{Kind: SectionFinding, Heading: res.Title, Name: res.Name}

		if res.Empty() {
			sec.Statement = NoAnomalies
		} else {
			rows := make([][]string, len(res.Rows))
			for i, r := range res.Rows {
				rows[i] = append([]string(nil), r...)
			}

			sec.Table = &TableBlock{Columns: append([]string(nil), res.Columns...), Rows: rows}
		}

		doc.Sections = append(doc.Sections, sec)
	}

	digest, err := contentDigest(doc)
	if err != nil {
		return nil, err
	}

	doc.Digest = digest

	return doc, nil
}

// Verify recomputes the content digest and compares it with Digest.
func (d *Document) Verify() error {
	digest, err := contentDigest(d)
	if err != nil {
		return err
	}

	if digest != d.Digest {
		return fmt.Errorf("%w: expected %s, got %s", ErrDigestMismatch, d.Digest, digest)
	}

	return nil
}

// contentDigest hashes the title and sections, leaving out the generation
// time.
func contentDigest(doc *Document) (string, error) {
	body, err := json.Marshal(struct {
		Title    string    `json:"title"`
		Sections []Section `json:"sections"`
	}{doc.Title, doc.Sections})
	if err != nil {
		return "", fmt.Errorf("failed to encode report content: %w", err)
	}

	return metadata.CalculateHash(string(body)), nil
}

func metadataSection(run *models.AnalysisRun) Section {
	fields := []Field{
		{"Source", run.Source},
		{"Case Number", run.Case.CaseNumber},
		{"Investigator", run.Case.Investigator},
		{"Case Name", run.Case.CaseName},
		{"Remarks", run.Case.Remarks},
		{"Record Type", string(run.Family)},
		{"Detector", run.Label},
		{runIDField, run.ID},
		{"Rows Ingested", strconv.Itoa(run.RowCount)},
		{"Rows With Missing Timestamps", strconv.Itoa(run.MissingTimestamps)},
	}

	if run.Enriched > 0 {
		fields = append(fields, Field{"GeoIP Countries Filled", strconv.Itoa(run.Enriched)})
	}

	for _, name := range sortedNames(run.Thresholds) {
		fields = append(fields, Field{"Threshold " + name, strconv.FormatFloat(run.Thresholds[name], 'f', -1, 64)})
	}

	for _, name := range sortedNames(run.Settings) {
		fields = append(fields, Field{"Setting " + name, run.Settings[name]})
	}

	return Section{Kind: SectionMetadata, Heading: "Case and Run Details", Fields: fields}
}

func summarySection(run *models.AnalysisRun) Section {
	fields := make([]Field, 0, len(run.Results)+1)
	total := 0

	for _, res := range run.Results {
		fields = append(fields, Field{res.Title, strconv.Itoa(len(res.Rows))})
		total += len(res.Rows)
	}

	fields = append(fields, Field{"Total Flagged Entries", strconv.Itoa(total)})

	return Section{Kind: SectionSummary, Heading: "Summary", Fields: fields}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}
