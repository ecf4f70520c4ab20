package normalizer

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"cdrlens/internal/models"
)

func canonical(names ...string) *models.Table {
	cols := make([]models.Column, len(names))
	for i, n := range names {
		cols[i] = models.Column{Name: n}
	}

	return models.NewTable(cols, nil)
}

func TestValidate(t *testing.T) {
	required := []string{"calling_number", "called_number", "start_time", "call_direction"}

	tests := []struct {
		name    string
		present []string
		missing []string
	}{
		{"complete", []string{"call_direction", "start_time", "called_number", "calling_number", "extra"}, nil},
		{"one missing", []string{"calling_number", "called_number", "start_time"}, []string{"call_direction"}},
		{"subset missing", []string{"called_number"}, []string{"calling_number", "start_time", "call_direction"}},
		{"all missing", nil, required},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := canonical(tt.present...)

			got, err := Validate(table, required)
			if tt.missing == nil {
				if err != nil {
					t.Fatalf("Validate returned unexpected error: %v", err)
				}

				if got != table {
					t.Error("Validate must return the same table")
				}

				return
			}

			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("Validate error = %v, want *SchemaError", err)
			}

			if !reflect.DeepEqual(se.Missing, tt.missing) {
				t.Errorf("Missing = %v, want %v", se.Missing, tt.missing)
			}

			if got != nil {
				t.Error("Validate must not return a table on failure")
			}
		})
	}
}

func TestSchemaError_Message(t *testing.T) {
	err := &SchemaError{Missing: []string{"start_time", "call_direction"}}

	if !strings.Contains(err.Error(), "start_time, call_direction") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestMissingColumns_Duplicates(t *testing.T) {
	got := MissingColumns(canonical(), []string{"a", "a", "b"})

	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("MissingColumns = %v", got)
	}
}

func TestValidator_Method(t *testing.T) {
	v := NewValidator()

	if _, err := v.Validate(canonical("a"), []string{"a"}); err != nil {
		t.Errorf("Validate returned unexpected error: %v", err)
	}
}
