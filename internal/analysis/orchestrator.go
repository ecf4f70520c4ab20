// Package analysis runs one detector over one uploaded table and packages
// the outcome.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"cdrlens/internal/config"
	"cdrlens/internal/detector"
	"cdrlens/internal/enrich"
	"cdrlens/internal/ingest"
	"cdrlens/internal/logger"
	"cdrlens/internal/models"
	"cdrlens/internal/normalizer"
)

// ErrNoInput is returned when a request carries neither a reader nor a table.
var ErrNoInput = errors.New("request has no input table")

// Request is one user-initiated analysis.
type Request struct {
	// Table, when set, is used instead of reading Reader.
	Table  *models.RawTable
	Reader io.Reader
	// Format of Reader; resolved from Source when empty.
	Format     ingest.Format
	Source     string
	Detector   string
	Thresholds map[string]float64
	Case       models.CaseMetadata
}

// Options configure an Orchestrator.
type Options struct {
	Registry *detector.Registry
	Settings detector.Settings
	// Thresholds are deployment overrides per detector, applied before the
	// request's own.
	Thresholds map[string]map[string]float64
	Coerce     normalizer.CoerceOptions
	Lookup     enrich.CountryLookup
	Logger     *logger.Logger
	Now        func() time.Time
}

// Orchestrator drives the ingest, normalize, enrich, validate and detect
// stages. It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	registry   *detector.Registry
	settings   detector.Settings
	thresholds map[string]map[string]float64
	coerce     normalizer.CoerceOptions
	lookup     enrich.CountryLookup
	log        *logger.Logger
	now        func() time.Time
}

// New creates an orchestrator. A nil registry selects the built-in one.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		registry:   opts.Registry,
		settings:   opts.Settings,
		thresholds: opts.Thresholds,
		coerce:     opts.Coerce,
		lookup:     opts.Lookup,
		log:        opts.Logger,
		now:        opts.Now,
	}

	if o.registry == nil {
		o.registry = detector.Default()
	}

	if o.log == nil {
		o.log = logger.Discard()
	}

	if o.now == nil {
		o.now = time.Now
	}

	o.log = o.log.With("component", "orchestrator")

	return o
}

// FromConfig builds an orchestrator from the deployment configuration.
func FromConfig(cfg *config.Config, lookup enrich.CountryLookup, log *logger.Logger) (*Orchestrator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	blacklist, err := cfg.BlacklistEntries()
	if err != nil {
		return nil, err
	}

	o := New(Options{
		Settings: detector.Settings{
			HomePrefix:       cfg.Analysis.HomePrefix,
			TollFreePrefixes: cfg.Analysis.TollFreePrefixes,
			HomeLocations:    cfg.Analysis.HomeLocations,
			VoIPPorts:        cfg.Analysis.VoIPPorts,
			VoIPDomains:      cfg.Analysis.VoIPDomains,
			Blacklist:        blacklist,
		},
		Thresholds: cfg.Analysis.Thresholds,
		Coerce: normalizer.CoerceOptions{
			Location: loc,
			Layouts:  cfg.Analysis.TimestampLayouts,
		},
		Lookup: lookup,
		Logger: log,
	})

	if err := o.checkThresholds(); err != nil {
		return nil, fmt.Errorf("analysis.thresholds: %w", err)
	}

	return o, nil
}

// checkThresholds resolves every configured override layer against the
// registry.
func (o *Orchestrator) checkThresholds() error {
	names := make([]string, 0, len(o.thresholds))
	for name := range o.thresholds {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		spec, err := o.registry.Lookup(name)
		if err != nil {
			return err
		}

		if _, err := spec.Resolve(o.thresholds[name]); err != nil {
			return err
		}
	}

	return nil
}

// Registry returns the detector catalogue in use.
func (o *Orchestrator) Registry() *detector.Registry {
	return o.registry
}

// Resolve returns the detector and the thresholds a request would run with.
func (o *Orchestrator) Resolve(name string, overrides map[string]float64) (*detector.Spec, detector.Thresholds, error) {
	spec, err := o.registry.Lookup(name)
	if err != nil {
		return nil, nil, err
	}

	th, err := spec.Resolve(o.thresholds[spec.Name], overrides)
	if err != nil {
		return nil, nil, err
	}

	return spec, th, nil
}

// Run executes req. On failure it returns a *StageError and no run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.AnalysisRun, error) {
	started := o.now()
	runID := uuid.NewString()
	log := o.log.With("run_id", runID, "detector", req.Detector)

	spec, th, err := o.Resolve(req.Detector, req.Thresholds)
	if err != nil {
		log.Warn("analysis rejected", "error", err)
		return nil, stageErr(StageResolve, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageIngest, err)
	}

	raw, err := readRequest(req)
	if err != nil {
		log.Warn("ingestion failed", "source", req.Source, "error", err)
		return nil, stageErr(StageIngest, err)
	}

	log.Debug("ingested", "source", req.Source, "columns", len(raw.Columns), "rows", len(raw.Rows))

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageNormalize, err)
	}

	table := normalizer.NewTransformer(normalizer.AliasesFor(spec.Family), o.coerce).Transform(raw)

	enriched := 0

	if o.wantsGeoIP(spec, table) {
		if err := ctx.Err(); err != nil {
			return nil, stageErr(StageEnrich, err)
		}

		out, stats, err := enrich.FillCountry(table, "destination_ip", "geo_country", o.lookup)
		if err != nil {
			return nil, stageErr(StageEnrich, err)
		}

		if stats.Failed > 0 {
			log.Warn("geoip lookups failed", "failed", stats.Failed)
		}

		table, enriched = out, stats.Filled
	}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageValidate, err)
	}

	if _, err := normalizer.NewValidator().Validate(table, spec.Required); err != nil {
		log.Warn("schema validation failed", "error", err)
		return nil, stageErr(StageValidate, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, stageErr(StageDetect, err)
	}

	detectStart := time.Now()

	results, err := o.detect(spec, table, detector.Input{Thresholds: th, Settings: o.settings})
	if err != nil {
		log.Warn("detector failed", "error", err)
		return nil, stageErr(StageDetect, err)
	}

	run := &models.AnalysisRun{
		ID:                runID,
		Case:              req.Case,
		Family:            spec.Family,
		Detector:          spec.Name,
		Label:             spec.Label,
		Source:            req.Source,
		Thresholds:        th,
		Settings:          o.settings.Map(),
		RowCount:          table.Len(),
		MissingTimestamps: table.NullCount("start_time"),
		Enriched:          enriched,
		Results:           results,
		StartedAt:         started,
		CompletedAt:       o.now(),
	}

	log.Info("analysis completed",
		"rows", run.RowCount,
		"results", len(results),
		"flagged", flagged(results),
		"duration", time.Since(detectStart))

	return run, nil
}

// RunFile analyses a file on disk; its format comes from the extension.
func (o *Orchestrator) RunFile(ctx context.Context, path, name string, thresholds map[string]float64, meta models.CaseMetadata) (*models.AnalysisRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, stageErr(StageIngest, &ingest.ParseError{Reason: "cannot open file", Err: err})
	}
	defer f.Close()

	return o.Run(ctx, Request{
		Reader:     f,
		Source:     filepath.Base(path),
		Detector:   name,
		Thresholds: thresholds,
		Case:       meta,
	})
}

// detect runs the detector, turning panics and unexpected errors into an
// *AnalysisError. Schema errors pass through unchanged.
func (o *Orchestrator) detect(spec *detector.Spec, table *models.Table, in detector.Input) (results []models.SuspectResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("detector panicked", "detector", spec.Name, "panic", r)
			results, err = nil, &AnalysisError{Detector: spec.Name, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	results, err = spec.Detect(table, in)
	if err != nil {
		var se *normalizer.SchemaError
		if errors.As(err, &se) {
			return nil, err
		}

		return nil, &AnalysisError{Detector: spec.Name, Cause: err}
	}

	return results, nil
}

func (o *Orchestrator) wantsGeoIP(spec *detector.Spec, table *models.Table) bool {
	return o.lookup != nil &&
		spec.Family == models.FamilyIPDR &&
		slices.Contains(spec.Required, "geo_country") &&
		table.Has("destination_ip")
}

func readRequest(req Request) (*models.RawTable, error) {
	if req.Table != nil {
		return req.Table, nil
	}

	if req.Reader == nil {
		return nil, &ingest.ParseError{Reason: "no file supplied", Err: ErrNoInput}
	}

	format := req.Format
	if format == "" {
		f, err := ingest.FormatFromName(req.Source)
		if err != nil {
			return nil, err
		}

		format = f
	}

	return ingest.Read(req.Reader, format)
}

func flagged(results []models.SuspectResult) int {
	n := 0
	for _, r := range results {
		n += len(r.Rows)
	}

	return n
}
