package normalizer

import (
	"fmt"

	"cdrlens/internal/models"
)

// Transformer applies one family's alias map to raw tables.
type Transformer struct {
	aliases AliasMap
	opts    CoerceOptions
}

// NewTransformer creates a transformer for the given alias map.
func NewTransformer(aliases AliasMap, opts CoerceOptions) *Transformer {
	return &Transformer{aliases: aliases, opts: opts}
}

// Transform normalizes raw into a canonical table.
func (t *Transformer) Transform(raw *models.RawTable) *models.Table {
	return Normalize(raw, t.aliases, t.opts)
}

// Processor normalizes a raw table and validates the result.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a processor for one record family.
func NewProcessor(family models.Family, opts CoerceOptions) *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(AliasesFor(family), opts),
	}
}

// Process transforms raw and checks it carries the required columns. The
// normalized table is returned even when validation fails so callers can
// report what was found.
func (p *Processor) Process(raw *models.RawTable, required []string) (*models.Table, error) {
	table := p.transformer.Transform(raw)

	if _, err := p.validator.Validate(table, required); err != nil {
		return table, fmt.Errorf("validation failed: %w", err)
	}

	return table, nil
}
