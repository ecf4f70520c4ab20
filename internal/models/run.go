package models

import "time"

// Family is the record family a detector works on.
type Family string

// Record families.
const (
	FamilyCDR  Family = "CDR"
	FamilyIPDR Family = "IPDR"
)

// CaseMetadata is passed through verbatim from the caller.
type CaseMetadata struct {
	CaseNumber   string `json:"case_number" yaml:"case_number"`
	Investigator string `json:"investigator" yaml:"investigator"`
	CaseName     string `json:"case_name" yaml:"case_name"`
	Remarks      string `json:"remarks" yaml:"remarks"`
}

// SuspectResult is one table of flagged entities produced by a detector.
// Rows hold rendered values in Columns order; an empty Rows is a valid
// outcome.
type SuspectResult struct {
	Name    string     `json:"name"`
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Empty reports whether the detector flagged nothing.
func (s SuspectResult) Empty() bool {
	return len(s.Rows) == 0
}

// AnalysisRun is the outcome of one detector applied to one uploaded table.
type AnalysisRun struct {
	StartedAt         time.Time          `json:"started_at"`
	CompletedAt       time.Time          `json:"completed_at"`
	Thresholds        map[string]float64 `json:"thresholds"`
	Settings          map[string]string  `json:"settings,omitempty"`
	Case              CaseMetadata       `json:"case"`
	ID                string             `json:"id"`
	Family            Family             `json:"family"`
	Detector          string             `json:"detector"`
	Label             string             `json:"label"`
	Source            string             `json:"source"`
	Results           []SuspectResult    `json:"results"`
	RowCount          int                `json:"row_count"`
	MissingTimestamps int                `json:"missing_timestamps"`
	Enriched          int                `json:"enriched,omitempty"`
}
