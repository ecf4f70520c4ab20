package normalizer

import (
	"strings"

	"cdrlens/internal/models"
)

// SchemaError reports canonical columns a table lacks. Missing keeps the
// order in which the columns were required.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// Validator gates a canonical table on a required column set.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns t unchanged when every required column is present.
func (v *Validator) Validate(t *models.Table, required []string) (*models.Table, error) {
	return Validate(t, required)
}

// Validate returns t unchanged when every required column is present and a
// *SchemaError listing the absent ones otherwise.
func Validate(t *models.Table, required []string) (*models.Table, error) {
	if missing := MissingColumns(t, required); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	return t, nil
}

// MissingColumns returns the required columns absent from t, in order and
// without duplicates.
func MissingColumns(t *models.Table, required []string) []string {
	var missing []string

	seen := make(map[string]bool, len(required))

	for _, name := range required {
		if seen[name] {
			continue
		}

		seen[name] = true

		if t == nil || !t.Has(name) {
			missing = append(missing, name)
		}
	}

	return missing
}
