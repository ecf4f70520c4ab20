package report

import (
	"errors"
	"strings"
	"testing"

	"cdrlens/pkg/metadata"
)

func TestAlignTables(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name: "Basic table",
			input: `
| Caller | Calls |
| --- | --- |
| 9876543210 | 6 |
`,
			expected: `
| Caller     | Calls |
| ---------- | ----- |
| 9876543210 | 6     |
`,
		},
		{
			name: "Excessive dashes collapse to content width",
			input: `
| A | B |
| ---------------------- | ------------ |
| x | y |
`,
			expected: `
| A   | B   |
| --- | --- |
| x   | y   |
`,
		},
		{
			name: "Escaped pipe stays in its cell",
			input: `
| Domain | Note |
| --- | --- |
| a\|b.com | ok |
`,
			expected: `
| Domain   | Note |
| -------- | ---- |
| a\|b.com | ok   |
`,
		},
		{
			name: "Text around tables is untouched",
			input: `
## Summary

| H1 | H2 |
| -- | -- |
| v1 | v2 |

_No anomalies found under current thresholds._
`,
			expected: `
## Summary

| H1  | H2  |
| --- | --- |
| v1  | v2  |

_No anomalies found under current thresholds._
`,
		},
		{
			name: "Wide characters",
			input: `
| Location | Cell |
| --- | --- |
| 孟买 | C1 |
| Pune | C22 |
`,
			expected: `
| Location | Cell |
| -------- | ---- |
| 孟买     | C1   |
| Pune     | C22  |
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AlignTables(strings.TrimSpace(tt.input))
			if strings.TrimSpace(got) != strings.TrimSpace(tt.expected) {
				t.Errorf("AlignTables() = \n%v\nwant \n%v", got, tt.expected)
			}
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	doc := buildDoc(t, sampleRun())
	out := RenderMarkdown(doc)

	ok, err := metadata.Verify(out)
	if err != nil || !ok {
		t.Fatalf("Verify() = %v, %v", ok, err)
	}

	for _, want := range []string{
		"# CDR Call Spikes Analysis Report",
		"## International Call Suspects",
		"| 9876543210 |",
		"_" + NoAnomalies + "_",
		"RUN_ID: run-42",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestVerifyMarkdown(t *testing.T) {
	out := RenderMarkdown(buildDoc(t, sampleRun()))

	meta, err := VerifyMarkdown(out)
	if err != nil {
		t.Fatalf("VerifyMarkdown() error = %v", err)
	}

	if meta.RunID != "run-42" {
		t.Errorf("RunID = %q, want run-42", meta.RunID)
	}

	relabelled := strings.Replace(out, "RUN_ID: run-42", "RUN_ID: run-43", 1)
	if _, err := VerifyMarkdown(relabelled); !errors.Is(err, metadata.ErrRunMismatch) {
		t.Errorf("relabelled block: error = %v, want ErrRunMismatch", err)
	}

	if _, err := VerifyMarkdown(metadata.Sign("# Notes", "run-42", meta.GeneratedAt)); !errors.Is(err, ErrNoRun) {
		t.Errorf("no run row: error = %v, want ErrNoRun", err)
	}
}
