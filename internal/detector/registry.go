// Package detector holds the catalogue of rule-based anomaly detectors that
// run over canonical CDR and IPDR tables.
package detector

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"cdrlens/internal/models"
)

// Registry errors.
var (
	ErrUnknownDetector    = errors.New("unknown detector")
	ErrDuplicateDetector  = errors.New("duplicate detector name")
	ErrUnknownThreshold   = errors.New("unknown threshold")
	ErrThresholdBelowMin  = errors.New("threshold below minimum")
	ErrThresholdAboveMax  = errors.New("threshold above maximum")
	ErrThresholdConflict  = errors.New("thresholds conflict")
	ErrThresholdNotNumber = errors.New("threshold is not a finite number")
)

// Param documents one numeric threshold of a detector. A zero Max means
// no upper bound.
type Param struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Default     float64 `json:"default"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max,omitempty"`
}

// Thresholds are resolved threshold values keyed by parameter name.
type Thresholds map[string]float64

// Get returns a threshold value, zero when absent.
func (t Thresholds) Get(name string) float64 {
	return t[name]
}

// Int returns a threshold truncated to an int.
func (t Thresholds) Int(name string) int {
	return int(t[name])
}

// Settings are the non-numeric, per-deployment inputs some detectors use.
type Settings struct {
	HomePrefix       string
	TollFreePrefixes []string
	HomeLocations    []string
	VoIPPorts        []int
	VoIPDomains      []string
	Blacklist        []string
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		HomePrefix:       "91",
		TollFreePrefixes: []string{"1800", "1860"},
		HomeLocations:    []string{"IN", "INDIA", "HOME"},
		VoIPPorts:        []int{1719, 1720, 3478, 3479, 4569, 5060, 5061},
		VoIPDomains: []string{
			"whatsapp.net", "whatsapp.com", "skype.com", "viber.com",
			"telegram.org", "signal.org", "zoom.us", "discord.gg",
		},
	}
}

// Map renders the settings for run traceability.
func (s Settings) Map() map[string]string {
	ports := make([]string, len(s.VoIPPorts))
	for i, p := range s.VoIPPorts {
		ports[i] = strconv.Itoa(p)
	}

	return map[string]string{
		"home_prefix":        s.HomePrefix,
		"toll_free_prefixes": strings.Join(s.TollFreePrefixes, ","),
		"home_locations":     strings.Join(s.HomeLocations, ","),
		"voip_ports":         strings.Join(ports, ","),
		"voip_domains":       strings.Join(s.VoIPDomains, ","),
		"blacklist_entries":  strconv.Itoa(len(s.Blacklist)),
	}
}

// Input is everything a detector may read besides the table.
type Input struct {
	Thresholds Thresholds
	Settings   Settings
}

// Func is the analysis function of a detector. It must not retain or
// modify the table.
type Func func(t *models.Table, in Input) ([]models.SuspectResult, error)

// Spec describes one registered detector.
type Spec struct {
	Name     string
	Label    string
	Summary  string
	Family   models.Family
	Required []string
	Params   []Param
	// Check, when set, validates the resolved thresholds as a whole.
	Check func(Thresholds) error
	Run   Func
}

// Param returns the parameter of the given name.
func (s *Spec) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}

	return Param{}, false
}

// Defaults returns the default thresholds.
func (s *Spec) Defaults() Thresholds {
	out := make(Thresholds, len(s.Params))
	for _, p := range s.Params {
		out[p.Name] = p.Default
	}

	return out
}

// Resolve fills the defaults and applies each override map in turn. Names
// the detector does not declare and values outside a parameter's bounds are
// rejected, then the detector's Check runs on the result.
func (s *Spec) Resolve(overrides ...map[string]float64) (Thresholds, error) {
	out := s.Defaults()

	for _, layer := range overrides {
		names := make([]string, 0, len(layer))
		for name := range layer {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			value := layer[name]

			p, ok := s.Param(name)
			if !ok {
				return nil, fmt.Errorf("%w %q for detector %s", ErrUnknownThreshold, name, s.Name)
			}

			if math.IsNaN(value) || math.IsInf(value, 0) {
				return nil, fmt.Errorf("%w: %s", ErrThresholdNotNumber, name)
			}

			if value < p.Min {
				return nil, fmt.Errorf("%w: %s=%v (minimum %v)", ErrThresholdBelowMin, name, value, p.Min)
			}

			if p.Max != 0 && value > p.Max {
				return nil, fmt.Errorf("%w: %s=%v (maximum %v)", ErrThresholdAboveMax, name, value, p.Max)
			}

			out[name] = value
		}
	}

	if s.Check != nil {
		if err := s.Check(out); err != nil {
			return nil, fmt.Errorf("%w for detector %s: %w", ErrThresholdConflict, s.Name, err)
		}
	}

	return out, nil
}

// Detect checks the required columns and runs the detector.
func (s *Spec) Detect(t *models.Table, in Input) ([]models.SuspectResult, error) {
	if err := requireColumns(t, s.Required...); err != nil {
		return nil, err
	}

	return s.Run(t, in)
}

// Registry is an immutable catalogue of detectors.
type Registry struct {
	specs  []*Spec
	byName map[string]*Spec
}

// NewRegistry builds a registry, keeping the given order for listing.
func NewRegistry(specs ...*Spec) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Spec, len(specs))}

	for _, s := range specs {
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDetector, s.Name)
		}

		r.byName[s.Name] = s
		r.specs = append(r.specs, s)
	}

	return r, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of every built-in detector.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(builtin()...)
		if err != nil {
			panic(err)
		}

		defaultRegistry = r
	})

	return defaultRegistry
}

func builtin() []*Spec {
	return []*Spec{
		callSpikes(),
		towerJumping(),
		strangeSIMUse(),
		simSwapping(),
		tollFreeAbuse(),
		simCloning(),
		unusualHours(),
		scatteredCalls(),
		repeatedCalls(),
		numberMorphing(),
		burstCalls(),
		roamingMismatch(),
		geoIPMismatch(),
		voipIdentifier(),
		sharedIP(),
		imeiMultiMSISDN(),
		portProtocolAnomaly(),
		frequentDomain(),
		blacklistIP(),
		dnsAnomaly(),
		httpStatus(),
		timeBasedAccess(),
	}
}

// Lookup returns the detector registered under name.
func (r *Registry) Lookup(name string) (*Spec, error) {
	s, ok := r.byName[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, name)
	}

	return s, nil
}

// List returns the detectors of a family in registration order. An empty
// family lists all of them.
func (r *Registry) List(family models.Family) []*Spec {
	if family == "" {
		return slices.Clone(r.specs)
	}

	var out []*Spec

	for _, s := range r.specs {
		if s.Family == family {
			out = append(out, s)
		}
	}

	return out
}
