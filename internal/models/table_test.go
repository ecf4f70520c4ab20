package models

import (
	"testing"
	"time"
)

func sampleTable() *Table {
	ts := time.Date(2025, 1, 2, 9, 15, 0, 0, time.UTC)

	return NewTable(
		[]Column{{Name: "calling_number"}, {Name: "start_time", Kind: KindTimestamp}},
		[][]Cell{
			{{Text: "A"}, {Text: "2025-01-02 09:15:00", Time: NullTime{Time: ts, Valid: true}}},
			{{Text: "B"}, {Text: "garbage"}},
		},
	)
}

func TestTable_Accessors(t *testing.T) {
	tbl := sampleTable()

	if tbl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tbl.Len())
	}

	if !tbl.Has("start_time") || tbl.Has("imei") {
		t.Error("Has() returned unexpected result")
	}

	if tbl.Index("imei") != -1 {
		t.Error("Index() of absent column should be -1")
	}

	if got := tbl.Text(1, 0); got != "B" {
		t.Errorf("Text(1,0) = %q, want B", got)
	}

	if got := tbl.Text(5, 0); got != "" {
		t.Errorf("Text out of range = %q, want empty", got)
	}

	if _, ok := tbl.Time(1, 1); ok {
		t.Error("unparsable timestamp must be reported as missing")
	}

	if tbl.NullCount("start_time") != 1 {
		t.Errorf("NullCount() = %d, want 1", tbl.NullCount("start_time"))
	}

	if tbl.NullCount("calling_number") != 0 {
		t.Error("NullCount() of a text column must be 0")
	}
}

func TestTable_WithColumn(t *testing.T) {
	tbl := sampleTable()

	added := tbl.WithColumn("geo_country", []string{"IN", "US"})
	if tbl.Has("geo_country") {
		t.Fatal("WithColumn must not modify the receiver")
	}

	if got := added.Text(1, added.Index("geo_country")); got != "US" {
		t.Errorf("added value = %q, want US", got)
	}

	replaced := added.WithColumn("calling_number", []string{"X"})
	if replaced.Text(0, 0) != "X" || replaced.Text(1, 0) != "" {
		t.Errorf("replacement = %q/%q", replaced.Text(0, 0), replaced.Text(1, 0))
	}

	if added.Text(0, 0) != "A" {
		t.Error("WithColumn must not modify the source table")
	}
}
