package analysis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdrlens/internal/config"
	"cdrlens/internal/detector"
	"cdrlens/internal/ingest"
	"cdrlens/internal/models"
	"cdrlens/internal/normalizer"
)

const scenarioCSV = `Calling_Number,Callee,Timestamp,Direction
A,9180000001,2025-01-01 08:00:00,MO
A,4420000001,2025-01-01 08:10:00,MO
A,4420000002,2025-01-01 08:20:00,MO
A,1202000003,not a time,MO
A,3361000004,2025-01-01 08:40:00,MO
A,4930000005,2025-01-01 08:50:00,MO
A,6190000006,2025-01-01 09:00:00,MO
`

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestOrchestrator(opts Options) *Orchestrator {
	if opts.Settings.HomePrefix == "" {
		opts.Settings = detector.DefaultSettings()
	}

	opts.Now = fixedNow

	return New(opts)
}

func TestRun_CallSpikesScenario(t *testing.T) {
	o := newTestOrchestrator(Options{})

	meta := models.CaseMetadata{CaseNumber: "CR-7", Investigator: "R. Rao", CaseName: "Spike", Remarks: "as is"}

	run, err := o.Run(context.Background(), Request{
		Reader:   strings.NewReader(scenarioCSV),
		Source:   "upload.csv",
		Detector: "call_spikes",
		Case:     meta,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.FamilyCDR, run.Family)
	assert.Equal(t, "Call Spikes", run.Label)
	assert.Equal(t, "upload.csv", run.Source)
	assert.Equal(t, meta, run.Case)
	assert.Equal(t, 7, run.RowCount)
	assert.Equal(t, 1, run.MissingTimestamps)
	assert.Equal(t, map[string]float64{"intl_threshold": 5, "spike_threshold": 10}, run.Thresholds)
	assert.Equal(t, "91", run.Settings["home_prefix"])
	assert.Equal(t, fixedNow(), run.StartedAt)

	require.Len(t, run.Results, 2)
	assert.Equal(t, [][]string{{"A", "6"}}, run.Results[0].Rows)
	assert.True(t, run.Results[1].Empty())
}

func TestRun_ThresholdLayers(t *testing.T) {
	o := newTestOrchestrator(Options{
		Thresholds: map[string]map[string]float64{
			"call_spikes": {"intl_threshold": 6, "spike_threshold": 1},
		},
	})

	run, err := o.Run(context.Background(), Request{
		Reader:   strings.NewReader(scenarioCSV),
		Format:   ingest.FormatCSV,
		Detector: "call_spikes",
	})
	require.NoError(t, err)

	assert.Equal(t, 6.0, run.Thresholds["intl_threshold"])
	assert.True(t, run.Results[0].Empty())
	assert.Equal(t, [][]string{{"A", "2025-01-01 08:00:00", "5"}}, run.Results[1].Rows)

	run, err = o.Run(context.Background(), Request{
		Reader:     strings.NewReader(scenarioCSV),
		Format:     ingest.FormatCSV,
		Detector:   "call_spikes",
		Thresholds: map[string]float64{"intl_threshold": 5},
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"A", "6"}}, run.Results[0].Rows)
}

func TestRun_Errors(t *testing.T) {
	o := newTestOrchestrator(Options{})

	tests := []struct {
		name  string
		req   Request
		stage Stage
		check func(t *testing.T, err error)
	}{
		{
			name:  "unknown detector",
			req:   Request{Detector: "data_transfer", Reader: strings.NewReader(scenarioCSV), Format: ingest.FormatCSV},
			stage: StageResolve,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, detector.ErrUnknownDetector) },
		},
		{
			name:  "threshold below minimum",
			req:   Request{Detector: "call_spikes", Thresholds: map[string]float64{"intl_threshold": -2}},
			stage: StageResolve,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, detector.ErrThresholdBelowMin) },
		},
		{
			name:  "unsupported file",
			req:   Request{Detector: "call_spikes", Reader: strings.NewReader("x"), Source: "evidence.pdf"},
			stage: StageIngest,
			check: func(t *testing.T, err error) {
				var pe *ingest.ParseError
				assert.ErrorAs(t, err, &pe)
			},
		},
		{
			name:  "no input",
			req:   Request{Detector: "call_spikes"},
			stage: StageIngest,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrNoInput) },
		},
		{
			name: "missing columns",
			req: Request{
				Detector: "call_spikes",
				Table:    &models.RawTable{Columns: []string{"caller", "direction"}},
			},
			stage: StageValidate,
			check: func(t *testing.T, err error) {
				var se *normalizer.SchemaError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, []string{"called_number", "start_time"}, se.Missing)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, err := o.Run(context.Background(), tt.req)
			assert.Nil(t, run)

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.stage, stageErr.Stage)
			tt.check(t, err)
		})
	}
}

func panickingRegistry(t *testing.T) *detector.Registry {
	t.Helper()

	reg, err := detector.NewRegistry(
		&detector.Spec{
			Name:     "explodes",
			Label:    "Explodes",
			Family:   models.FamilyCDR,
			Required: []string{"calling_number"},
			Run: func(*models.Table, detector.Input) ([]models.SuspectResult, error) {
				var m map[string]int
				m["boom"]++

				return nil, nil
			},
		},
		&detector.Spec{
			Name:     "fails",
			Label:    "Fails",
			Family:   models.FamilyCDR,
			Required: []string{"calling_number"},
			Run: func(*models.Table, detector.Input) ([]models.SuspectResult, error) {
				return nil, errors.New("division by zero")
			},
		},
	)
	require.NoError(t, err)

	return reg
}

func TestRun_DetectorFailures(t *testing.T) {
	o := newTestOrchestrator(Options{Registry: panickingRegistry(t)})
	table := &models.RawTable{Columns: []string{"caller"}, Rows: [][]string{{"A"}}}

	for _, name := range []string{"explodes", "fails"} {
		t.Run(name, func(t *testing.T) {
			run, err := o.Run(context.Background(), Request{Detector: name, Table: table})
			assert.Nil(t, run)

			var ae *AnalysisError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, name, ae.Detector)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, StageDetect, se.Stage)
		})
	}

	// the orchestrator stays usable after a failed run
	_, err := o.Run(context.Background(), Request{Detector: "fails", Table: table})
	assert.Error(t, err)
}

func TestRun_Cancelled(t *testing.T) {
	o := newTestOrchestrator(Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, Request{Detector: "call_spikes", Reader: strings.NewReader(scenarioCSV), Format: ingest.FormatCSV})
	assert.ErrorIs(t, err, context.Canceled)
}

type staticLookup map[string]string

func (s staticLookup) Country(ip net.IP) (string, error) {
	return s[ip.String()], nil
}

func TestRun_GeoIPEnrichment(t *testing.T) {
	csv := "dst_ip,whois_country\n8.8.8.8,IN\n8.8.8.8,IN\n1.1.1.1,AU\n"

	o := newTestOrchestrator(Options{Lookup: staticLookup{"8.8.8.8": "US", "1.1.1.1": "AU"}})

	run, err := o.Run(context.Background(), Request{
		Reader:   strings.NewReader(csv),
		Source:   "sessions.csv",
		Detector: "geoip_mismatch",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, run.Enriched)
	assert.Equal(t, [][]string{{"8.8.8.8", "US", "IN", "2"}}, run.Results[0].Rows)

	// without a lookup the column must come from the file
	_, err = newTestOrchestrator(Options{}).Run(context.Background(), Request{
		Reader:   strings.NewReader(csv),
		Source:   "sessions.csv",
		Detector: "geoip_mismatch",
	})

	var se *normalizer.SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"geo_country"}, se.Missing)
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cdr.csv")
	require.NoError(t, os.WriteFile(path, []byte(scenarioCSV), 0644))

	o := newTestOrchestrator(Options{})

	run, err := o.RunFile(context.Background(), path, "call_spikes", nil, models.CaseMetadata{})
	require.NoError(t, err)
	assert.Equal(t, "cdr.csv", run.Source)

	_, err = o.RunFile(context.Background(), filepath.Join(dir, "missing.csv"), "call_spikes", nil, models.CaseMetadata{})

	var pe *ingest.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestRun_DistinctIDs(t *testing.T) {
	o := newTestOrchestrator(Options{})
	ids := map[string]bool{}

	for i := 0; i < 3; i++ {
		run, err := o.Run(context.Background(), Request{Detector: "call_spikes", Reader: strings.NewReader(scenarioCSV), Format: ingest.FormatCSV})
		require.NoError(t, err)

		ids[run.ID] = true
	}

	assert.Len(t, ids, 3, fmt.Sprint(ids))
}

func TestCheck(t *testing.T) {
	o := newTestOrchestrator(Options{})

	check, err := o.Check(context.Background(), Request{
		Detector: "tower_jumping",
		Reader:   strings.NewReader("caller,timestamp,lat\nA,2025-01-01 10:00:00,1\n"),
		Format:   ingest.FormatCSV,
	})
	require.NoError(t, err)

	assert.False(t, check.Ready)
	assert.Equal(t, []string{"longitude"}, check.Missing)
	assert.Equal(t, []string{"calling_number", "start_time", "latitude"}, check.Columns)
	assert.Equal(t, 1, check.Rows)

	check, err = o.Check(context.Background(), Request{
		Detector: "call_spikes",
		Reader:   strings.NewReader(scenarioCSV),
		Format:   ingest.FormatCSV,
	})
	require.NoError(t, err)
	assert.True(t, check.Ready)
	assert.Empty(t, check.Missing)
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	blacklist := filepath.Join(dir, "blacklist.txt")
	require.NoError(t, os.WriteFile(blacklist, []byte("# bad hosts\n203.0.113.0/24\n"), 0644))

	cfg := config.DefaultConfig()
	cfg.Analysis.BlacklistFile = blacklist
	cfg.Analysis.Timezone = "Asia/Kolkata"

	o, err := FromConfig(cfg, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"203.0.113.0/24"}, o.settings.Blacklist)
	assert.Equal(t, "Asia/Kolkata", o.coerce.Location.String())

	cfg.Analysis.Timezone = "Mars/Olympus"
	_, err = FromConfig(cfg, nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidTimezone)
}

func TestFromConfig_RejectsBadThresholds(t *testing.T) {
	tests := []struct {
		name       string
		thresholds map[string]map[string]float64
		want       error
	}{
		{"misspelled detector", map[string]map[string]float64{"call_spike": {"intl_threshold": 3}}, detector.ErrUnknownDetector},
		{"unknown threshold", map[string]map[string]float64{"call_spikes": {"intl_treshold": 3}}, detector.ErrUnknownThreshold},
		{"hour out of range", map[string]map[string]float64{"unusual_hours": {"end_hour": 30}}, detector.ErrThresholdAboveMax},
		{"inverted rtp range", map[string]map[string]float64{"voip_identifier": {"rtp_port_min": 40000, "rtp_port_max": 1000}}, detector.ErrThresholdConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Analysis.Thresholds = tt.thresholds

			o, err := FromConfig(cfg, nil, nil)
			assert.Nil(t, o)
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "analysis.thresholds")
		})
	}

	cfg := config.DefaultConfig()
	cfg.Analysis.Thresholds = map[string]map[string]float64{"call_spikes": {"intl_threshold": 2}}

	o, err := FromConfig(cfg, nil, nil)
	require.NoError(t, err)

	_, th, err := o.Resolve("call_spikes", nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, th.Get("intl_threshold"))
}
