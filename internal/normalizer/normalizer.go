// Package normalizer reconciles uploaded column names into canonical
// fields and checks that a table carries what a detector needs.
package normalizer

import (
	"cdrlens/internal/models"
	"cdrlens/pkg/utils"
)

// Normalize renames the source columns of raw onto the canonical fields of
// aliases and coerces timestamp fields. For each field the first alias, in
// declared order, that folds to a source column wins; a source column is
// claimed at most once. Unmatched columns are kept as text. raw is not
// modified.
func Normalize(raw *models.RawTable, aliases AliasMap, opts CoerceOptions) *models.Table {
	if raw == nil {
		return models.NewTable(nil, nil)
	}

	folded := make(map[string]int, len(raw.Columns))

	for i, name := range raw.Columns {
		key := utils.FoldKey(name)
		if _, dup := folded[key]; !dup {
			folded[key] = i
		}
	}

	columns := make([]models.Column, len(raw.Columns))
	for i, name := range raw.Columns {
		columns[i] = models.Column{Name: name, Kind: models.KindText}
	}

	claimed := make(map[int]bool, len(aliases))

	for _, field := range aliases {
		for _, alias := range field.Aliases {
			src, ok := folded[utils.FoldKey(alias)]
			if !ok || claimed[src] {
				continue
			}

			claimed[src] = true
			columns[src] = models.Column{Name: field.Field, Kind: field.Kind}

			break
		}
	}

	rows := make([][]models.Cell, len(raw.Rows))

	for r, src := range raw.Rows {
		row := make([]models.Cell, len(columns))

		for c := range columns {
			if c >= len(src) {
				continue
			}

			row[c].Text = src[c]

			if columns[c].Kind == models.KindTimestamp {
				ts, ok := ParseTimestamp(src[c], opts)
				row[c].Time = models.NullTime{Time: ts, Valid: ok}
			}
		}

		rows[r] = row
	}

	return models.NewTable(columns, rows)
}
