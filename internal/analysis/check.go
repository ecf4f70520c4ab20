package analysis

import (
	"context"
	"errors"

	"cdrlens/internal/normalizer"
)

// SchemaCheck tells whether an upload fits a detector, without running it.
type SchemaCheck struct {
	Detector string   `json:"detector"`
	Columns  []string `json:"columns"`
	Missing  []string `json:"missing_columns"`
	Rows     int      `json:"rows"`
	Ready    bool     `json:"ready"`
}

// Check ingests and normalizes req and reports which canonical columns the
// selected detector would be missing. A schema mismatch is reported in the
// result, not as an error.
func (o *Orchestrator) Check(ctx context.Context, req Request) (*SchemaCheck, error) {
	spec, err := o.registry.Lookup(req.Detector)
	if err != nil {
		return nil, stageErr(StageResolve, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageIngest, err)
	}

	raw, err := readRequest(req)
	if err != nil {
		return nil, stageErr(StageIngest, err)
	}

	table, err := normalizer.NewProcessor(spec.Family, o.coerce).Process(raw, spec.Required)

	check := &SchemaCheck{
		Detector: spec.Name,
		Columns:  table.ColumnNames(),
		Missing:  []string{},
		Rows:     table.Len(),
		Ready:    err == nil,
	}

	var se *normalizer.SchemaError
	if errors.As(err, &se) {
		check.Missing = se.Missing
	} else if err != nil {
		return nil, stageErr(StageValidate, err)
	}

	return check, nil
}
