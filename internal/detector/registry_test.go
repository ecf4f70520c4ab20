package detector

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdrlens/internal/models"
	"cdrlens/internal/normalizer"
)

// canonicalTable normalizes rows through the alias map of family, the way
// an analysis run does.
func canonicalTable(family models.Family, columns []string, rows ...[]string) *models.Table {
	raw := &models.RawTable{Columns: columns, Rows: rows}
	return normalizer.Normalize(raw, normalizer.AliasesFor(family), normalizer.CoerceOptions{})
}

// detect runs a registered detector with optional threshold overrides and
// the default settings.
func detect(t *testing.T, name string, table *models.Table, overrides map[string]float64) []models.SuspectResult {
	t.Helper()

	return detectWith(t, name, table, overrides, DefaultSettings())
}

func detectWith(t *testing.T, name string, table *models.Table, overrides map[string]float64, settings Settings) []models.SuspectResult {
	t.Helper()

	spec, err := Default().Lookup(name)
	require.NoError(t, err)

	th, err := spec.Resolve(overrides)
	require.NoError(t, err)

	results, err := spec.Detect(table, Input{Thresholds: th, Settings: settings})
	require.NoError(t, err)

	return results
}

func resultNamed(t *testing.T, results []models.SuspectResult, name string) models.SuspectResult {
	t.Helper()

	for _, r := range results {
		if r.Name == name {
			return r
		}
	}

	t.Fatalf("no result named %q", name)

	return models.SuspectResult{}
}

func TestDefault_Catalogue(t *testing.T) {
	reg := Default()

	assert.Len(t, reg.List(""), 22)
	assert.Len(t, reg.List(models.FamilyCDR), 12)
	assert.Len(t, reg.List(models.FamilyIPDR), 10)

	seen := map[string]bool{}

	for _, s := range reg.List("") {
		assert.False(t, seen[s.Name], "duplicate %s", s.Name)
		seen[s.Name] = true

		assert.NotEmpty(t, s.Label, s.Name)
		assert.NotEmpty(t, s.Required, s.Name)
		assert.NotNil(t, s.Run, s.Name)

		for _, p := range s.Params {
			assert.GreaterOrEqual(t, p.Default, p.Min, "%s.%s", s.Name, p.Name)
			assert.NotEmpty(t, p.Description, "%s.%s", s.Name, p.Name)
		}

		aliases := normalizer.AliasesFor(s.Family)
		for _, col := range s.Required {
			assert.Contains(t, aliases.Fields(), col, "%s requires a non-canonical column", s.Name)
		}
	}

	assert.Same(t, reg, Default())
}

func TestRegistry_Lookup(t *testing.T) {
	spec, err := Default().Lookup(" call_spikes ")
	require.NoError(t, err)
	assert.Equal(t, "Call Spikes", spec.Label)

	_, err = Default().Lookup("data_transfer")
	assert.ErrorIs(t, err, ErrUnknownDetector)
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(callSpikes(), callSpikes())
	assert.ErrorIs(t, err, ErrDuplicateDetector)
}

func TestSpec_Resolve(t *testing.T) {
	spec := callSpikes()

	th, err := spec.Resolve()
	require.NoError(t, err)
	assert.Equal(t, Thresholds{"intl_threshold": 5, "spike_threshold": 10}, th)

	th, err = spec.Resolve(map[string]float64{"intl_threshold": 2}, map[string]float64{"intl_threshold": 3, "spike_threshold": 0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, th.Get("intl_threshold"))
	assert.Equal(t, 0.0, th.Get("spike_threshold"))

	tests := []struct {
		name     string
		override map[string]float64
		want     error
	}{
		{"unknown", map[string]float64{"burst_threshold": 1}, ErrUnknownThreshold},
		{"below min", map[string]float64{"intl_threshold": -1}, ErrThresholdBelowMin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := spec.Resolve(tt.override)
			if !errors.Is(err, tt.want) {
				t.Errorf("Resolve error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSpec_ResolveBounds(t *testing.T) {
	tests := []struct {
		name     string
		spec     *Spec
		override map[string]float64
		want     error
	}{
		{"start hour past midnight", unusualHours(), map[string]float64{"start_hour": 24}, ErrThresholdAboveMax},
		{"end hour past day", unusualHours(), map[string]float64{"end_hour": 25}, ErrThresholdAboveMax},
		{"off hours start", timeBasedAccess(), map[string]float64{"off_hours_start": 30}, ErrThresholdAboveMax},
		{"off hours end", timeBasedAccess(), map[string]float64{"off_hours_end": 48}, ErrThresholdAboveMax},
		{"port out of range", voipIdentifier(), map[string]float64{"rtp_port_max": 70000}, ErrThresholdAboveMax},
		{"inverted rtp range", voipIdentifier(), map[string]float64{"rtp_port_min": 40000, "rtp_port_max": 20000}, ErrThresholdConflict},
		{"inverted across layers", voipIdentifier(), map[string]float64{"rtp_port_min": 40000}, ErrThresholdConflict},
		{"end hour at limit", unusualHours(), map[string]float64{"end_hour": 24}, nil},
		{"equal rtp bounds", voipIdentifier(), map[string]float64{"rtp_port_min": 5004, "rtp_port_max": 5004}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.spec.Resolve(tt.override)
			if tt.want == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSpec_ResolveDoesNotShareDefaults(t *testing.T) {
	spec := burstCalls()

	th, err := spec.Resolve(map[string]float64{"burst_threshold": 1})
	require.NoError(t, err)

	th["burst_threshold"] = 99

	again, err := spec.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 5.0, again.Get("burst_threshold"))
}

func TestEveryDetector_EmptyTable(t *testing.T) {
	for _, s := range Default().List("") {
		t.Run(s.Name, func(t *testing.T) {
			table := canonicalTable(s.Family, s.Required)

			results := detect(t, s.Name, table, nil)
			require.NotEmpty(t, results)

			for _, r := range results {
				assert.True(t, r.Empty(), r.Name)
				assert.NotNil(t, r.Rows, r.Name)
				assert.NotEmpty(t, r.Columns, r.Name)
				assert.NotEmpty(t, r.Title, r.Name)
			}
		})
	}
}

func TestEveryDetector_MissingColumns(t *testing.T) {
	for _, s := range Default().List("") {
		t.Run(s.Name, func(t *testing.T) {
			th, err := s.Resolve()
			require.NoError(t, err)

			_, err = s.Detect(models.NewTable(nil, nil), Input{Thresholds: th, Settings: DefaultSettings()})

			var se *normalizer.SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, s.Required, se.Missing)
		})
	}
}

func TestSettings_Map(t *testing.T) {
	m := DefaultSettings().Map()

	assert.Equal(t, "91", m["home_prefix"])
	assert.Equal(t, "1800,1860", m["toll_free_prefixes"])
	assert.Equal(t, "0", m["blacklist_entries"])
}
