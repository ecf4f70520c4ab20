// Package config provides configuration management for the analysis engine.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidLogLevel        = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("logging.format must be 'text' or 'json'")
	ErrInvalidHomePrefix      = errors.New("analysis.home_prefix must be a non-empty string of digits")
	ErrInvalidTimezone        = errors.New("analysis.timezone is not a known IANA time zone")
	ErrInvalidTollFreePrefix  = errors.New("analysis.toll_free_prefixes entries must be digits")
	ErrInvalidVoIPPort        = errors.New("analysis.voip_ports entries must be between 1 and 65535")
	ErrInvalidBlacklistEntry  = errors.New("blacklist entry is neither an IP address nor a CIDR block")
	ErrNegativeThreshold      = errors.New("analysis.thresholds values must be non-negative")
	ErrInvalidReportFormat    = errors.New("report.format must be one of: pdf, markdown, json, csv")
	ErrMissingServerAddr      = errors.New("server.addr is required")
	ErrInvalidMaxUploadSizeMb = errors.New("server.max_upload_mb must be at least 1")
)

// Config represents the complete engine configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Report     ReportConfig     `yaml:"report"`
	Server     ServerConfig     `yaml:"server"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AnalysisConfig holds per-deployment detector inputs. Thresholds map a
// detector name to threshold overrides applied before per-run overrides.
type AnalysisConfig struct {
	Thresholds       map[string]map[string]float64 `yaml:"thresholds"`
	HomePrefix       string                        `yaml:"home_prefix"`
	Timezone         string                        `yaml:"timezone"`
	BlacklistFile    string                        `yaml:"blacklist_file"`
	TimestampLayouts []string                      `yaml:"timestamp_layouts"`
	TollFreePrefixes []string                      `yaml:"toll_free_prefixes"`
	HomeLocations    []string                      `yaml:"home_locations"`
	VoIPDomains      []string                      `yaml:"voip_domains"`
	Blacklist        []string                      `yaml:"blacklist"`
	VoIPPorts        []int                         `yaml:"voip_ports"`
}

// EnrichmentConfig configures optional lookups applied before detection.
type EnrichmentConfig struct {
	GeoIPDB string `yaml:"geoip_db"`
}

// ReportConfig defines report export behavior.
type ReportConfig struct {
	Format    string `yaml:"format"`
	OutputDir string `yaml:"output_dir"`
}

// ServerConfig defines the HTTP adapter.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMb int    `yaml:"max_upload_mb"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Analysis: AnalysisConfig{
			HomePrefix:       "91",
			Timezone:         "UTC",
			TollFreePrefixes: []string{"1800", "1860"},
			HomeLocations:    []string{"IN", "INDIA", "HOME"},
			VoIPPorts:        []int{1719, 1720, 3478, 3479, 4569, 5060, 5061},
			VoIPDomains: []string{
				"whatsapp.net", "whatsapp.com", "skype.com", "viber.com",
				"telegram.org", "signal.org", "zoom.us", "discord.gg",
			},
		},
		Report: ReportConfig{
			Format:    "pdf",
			OutputDir: "./reports",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMb: 50,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	if c.Analysis.HomePrefix == "" || !isDigits(c.Analysis.HomePrefix) {
		return ErrInvalidHomePrefix
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	for i, p := range c.Analysis.TollFreePrefixes {
		if p == "" || !isDigits(p) {
			return fmt.Errorf("%w: toll_free_prefixes[%d]", ErrInvalidTollFreePrefix, i)
		}
	}

	for i, port := range c.Analysis.VoIPPorts {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%w: voip_ports[%d]=%d", ErrInvalidVoIPPort, i, port)
		}
	}

	for i, entry := range c.Analysis.Blacklist {
		if !ValidBlacklistEntry(entry) {
			return fmt.Errorf("%w: blacklist[%d]=%q", ErrInvalidBlacklistEntry, i, entry)
		}
	}

	for detector, values := range c.Analysis.Thresholds {
		for name, v := range values {
			if v < 0 {
				return fmt.Errorf("%w: %s.%s", ErrNegativeThreshold, detector, name)
			}
		}
	}

	validFormats := map[string]bool{"pdf": true, "markdown": true, "json": true, "csv": true}
	if !validFormats[c.Report.Format] {
		return ErrInvalidReportFormat
	}

	if c.Server.Addr == "" {
		return ErrMissingServerAddr
	}

	if c.Server.MaxUploadMb < 1 {
		return ErrInvalidMaxUploadSizeMb
	}

	return nil
}

// Location returns the zone used for timestamps that carry no offset.
func (c *Config) Location() (*time.Location, error) {
	if c.Analysis.Timezone == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(c.Analysis.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, c.Analysis.Timezone)
	}

	return loc, nil
}

// BlacklistEntries returns the inline blacklist followed by the entries of
// blacklist_file. File lines are trimmed; blank lines and '#' comments are
// skipped.
func (c *Config) BlacklistEntries() ([]string, error) {
	entries := append([]string(nil), c.Analysis.Blacklist...)

	if c.Analysis.BlacklistFile == "" {
		return entries, nil
	}

	f, err := os.Open(c.Analysis.BlacklistFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open blacklist file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	line := 0

	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if !ValidBlacklistEntry(text) {
			return nil, fmt.Errorf("%w: %s:%d %q", ErrInvalidBlacklistEntry, c.Analysis.BlacklistFile, line, text)
		}

		entries = append(entries, text)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read blacklist file: %w", err)
	}

	return entries, nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMb) << 20
}

// ThresholdsFor returns the configured overrides for a detector, or nil.
func (c *Config) ThresholdsFor(detector string) map[string]float64 {
	return c.Analysis.Thresholds[detector]
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{HomePrefix: %s, Timezone: %s, Report: %s, Addr: %s}",
		c.Analysis.HomePrefix,
		c.Analysis.Timezone,
		c.Report.Format,
		c.Server.Addr,
	)
}

// ValidBlacklistEntry reports whether s is an IP address or CIDR block.
func ValidBlacklistEntry(s string) bool {
	if net.ParseIP(s) != nil {
		return true
	}

	_, _, err := net.ParseCIDR(s)

	return err == nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
