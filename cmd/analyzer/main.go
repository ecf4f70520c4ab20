// Package main provides the analyzer command-line tool for running one detector over a CDR or IPDR file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"cdrlens/internal/analysis"
	"cdrlens/internal/config"
	"cdrlens/internal/enrich"
	"cdrlens/internal/logger"
	"cdrlens/internal/models"
	"cdrlens/internal/report"
	"cdrlens/pkg/utils"
)

// thresholdFlags collects repeated -threshold name=value flags.
type thresholdFlags map[string]float64

func (t thresholdFlags) String() string {
	parts := make([]string, 0, len(t))
	for k, v := range t {
		parts = append(parts, k+"="+strconv.FormatFloat(v, 'f', -1, 64))
	}

	return strings.Join(parts, ",")
}

func (t thresholdFlags) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("threshold %s: %w", name, err)
	}

	t[strings.TrimSpace(name)] = v

	return nil
}

// options carries the parsed command line.
type options struct {
	configPath   string
	input        string
	detector     string
	format       string
	outDir       string
	list         bool
	maxRows      int
	thresholds   thresholdFlags
	caseMetadata models.CaseMetadata
}

var errUsage = errors.New("missing -input or -detector")

func main() {
	opts := options{thresholds: thresholdFlags{}}

	flag.StringVar(&opts.configPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&opts.input, "input", "", "Path to the CDR/IPDR file (.csv or .xlsx)")
	flag.StringVar(&opts.detector, "detector", "", "Detector to run (see -list)")
	flag.StringVar(&opts.format, "format", "", "Report format: pdf, markdown, json, csv (default from config)")
	flag.StringVar(&opts.outDir, "out", "", "Directory for the report (default from config)")
	flag.BoolVar(&opts.list, "list", false, "List detectors and exit")
	flag.IntVar(&opts.maxRows, "rows", 20, "Rows to print per result table (0 prints all)")
	flag.StringVar(&opts.caseMetadata.CaseNumber, "case-number", "", "Case number")
	flag.StringVar(&opts.caseMetadata.Investigator, "investigator", "", "Investigator name")
	flag.StringVar(&opts.caseMetadata.CaseName, "case-name", "", "Case name")
	flag.StringVar(&opts.caseMetadata.Remarks, "remarks", "", "Remarks")
	flag.Var(opts.thresholds, "threshold", "Threshold override name=value (repeatable)")
	flag.Parse()

	if err := run(opts); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println("Usage: analyzer -input <file> -detector <name> [-threshold name=value ...]")
			flag.PrintDefaults()
		} else {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		}

		os.Exit(1)
	}
}

// run does the work of main so deferred cleanups finish before the exit code
// is set.
func run(opts options) error {
	cfg := config.DefaultConfig()

	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}

		cfg = loaded
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	lookup, closeLookup := openGeoIP(cfg, log)
	defer closeLookup()

	orch, err := analysis.FromConfig(cfg, lookup, log)
	if err != nil {
		return fmt.Errorf("invalid analysis configuration: %w", err)
	}

	if opts.list {
		printDetectors(os.Stdout, orch)

		return nil
	}

	if opts.input == "" || opts.detector == "" {
		return errUsage
	}

	if opts.format == "" {
		opts.format = cfg.Report.Format
	}

	if opts.outDir == "" {
		opts.outDir = cfg.Report.OutputDir
	}

	exp, err := report.ExporterFor(opts.format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("📂 Reading: %s\n", opts.input)

	result, err := orch.RunFile(ctx, opts.input, opts.detector, opts.thresholds, opts.caseMetadata)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	fmt.Printf("🔍 %s on %d rows (%d without timestamp)\n", result.Label, result.RowCount, result.MissingTimestamps)
	printResults(os.Stdout, result.Results, opts.maxRows)

	doc, err := report.BuildReport(result)
	if err != nil {
		return fmt.Errorf("report assembly failed: %w", err)
	}

	if err := os.MkdirAll(opts.outDir, 0755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}

	tmp, cleanup, err := report.WriteArtifact(opts.outDir, doc, exp)
	if err != nil {
		return fmt.Errorf("report export failed: %w", err)
	}

	target := filepath.Join(opts.outDir, doc.Filename(exp.Extension()))
	if err := os.Rename(tmp, target); err != nil {
		cleanup()

		return fmt.Errorf("cannot save report: %w", err)
	}

	fmt.Printf("✅ Saved to: %s\n", target)

	return nil
}

// openGeoIP opens the configured GeoLite2 database. Without one, country
// enrichment is skipped.
func openGeoIP(cfg *config.Config, log *logger.Logger) (enrich.CountryLookup, func()) {
	if cfg.Enrichment.GeoIPDB == "" {
		return nil, func() {}
	}

	db, err := enrich.OpenGeoIP(cfg.Enrichment.GeoIPDB)
	if err != nil {
		log.Warn("geoip database unavailable, enrichment disabled", "path", cfg.Enrichment.GeoIPDB, "error", err)

		return nil, func() {}
	}

	return db, func() { _ = db.Close() }
}

func printDetectors(out io.Writer, orch *analysis.Orchestrator) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFAMILY\tLABEL\tTHRESHOLDS")

	for _, spec := range orch.Registry().List("") {
		names := make([]string, 0, len(spec.Params))
		for _, p := range spec.Params {
			names = append(names, fmt.Sprintf("%s=%v", p.Name, p.Default))
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", spec.Name, spec.Family, spec.Label, strings.Join(names, " "))
	}

	_ = w.Flush()
}

// maxCellWidth bounds a console cell; the report keeps the full value.
const maxCellWidth = 48

// printResults writes every result as an aligned table. Tables longer than
// maxRows are cut with a count of the rows left out.
func printResults(out io.Writer, results []models.SuspectResult, maxRows int) {
	sh := utils.NewStringHelper()

	for _, res := range results {
		fmt.Fprintf(out, "\n== %s (%d) ==\n", res.Title, len(res.Rows))

		if res.Empty() {
			fmt.Fprintln(out, report.NoAnomalies)

			continue
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, strings.Join(res.Columns, "\t"))

		rows := res.Rows
		if maxRows > 0 && len(rows) > maxRows {
			rows = rows[:maxRows]
		}

		for _, row := range rows {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = sh.TruncateString(sh.NormalizeWhitespace(cell), maxCellWidth)
			}

			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}

		_ = w.Flush()

		if skipped := len(res.Rows) - len(rows); skipped > 0 {
			fmt.Fprintf(out, "... %d more rows in the report\n", skipped)
		}
	}
}
