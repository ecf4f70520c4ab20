package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/report.schema.json
var reportSchema []byte

const reportSchemaURL = "report.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	errSchema      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true

		if err := compiler.AddResource(reportSchemaURL, bytes.NewReader(reportSchema)); err != nil {
			errSchema = fmt.Errorf("failed to load report schema: %w", err)

			return
		}

		compiledSchema, errSchema = compiler.Compile(reportSchemaURL)
		if errSchema != nil {
			errSchema = fmt.Errorf("failed to compile report schema: %w", errSchema)
		}
	})

	return compiledSchema, errSchema
}

// ValidateJSON checks an encoded report against the report schema.
func ValidateJSON(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("invalid report json: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("report does not match schema: %w", err)
	}

	return nil
}

// JSONExporter writes the document as indented JSON, validated before it is
// written.
type JSONExporter struct {
	Indent string
}

// NewJSONExporter returns a JSONExporter with two-space indentation.
func NewJSONExporter() JSONExporter {
	return JSONExporter{Indent: "  "}
}

// Extension implements Exporter.
func (JSONExporter) Extension() string { return "json" }

// ContentType implements Exporter.
func (JSONExporter) ContentType() string { return "application/json" }

// Export implements Exporter.
func (e JSONExporter) Export(doc *Document, w io.Writer) error {
	data, err := json.MarshalIndent(doc, "", e.Indent)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := ValidateJSON(data); err != nil {
		return err
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write json report: %w", err)
	}

	return nil
}
