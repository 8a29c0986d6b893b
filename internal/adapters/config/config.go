// Package config implements the read-only configuration mapping
// (spec.md §4.8 Config, §6 Configuration surface), parsed with strict
// yaml.v3 field checking in the style of the teacher's cmd/default_config.go
// loadDefaultsConfig.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SimulationConfig is the structured "simulation" view (spec.md §4.8
// Config: "two structured views — simulation ... and map").
type SimulationConfig struct {
	InitialVehicles          int     `yaml:"initial_vehicles"`
	TimeAcceleration         float64 `yaml:"time_acceleration"`
	TargetFPS                int     `yaml:"target_fps"`
	TransmissionRadiusM      int     `yaml:"transmission_radius_m"`
	InterferenceIntervalTick int     `yaml:"interference_interval_ticks"`
	CamHz                    float64 `yaml:"cam_hz"`
}

// MapConfig is the structured "map" view.
type MapConfig struct {
	CenterLat float64 `yaml:"lat"`
	CenterLon float64 `yaml:"lon"`
	Zoom      int     `yaml:"zoom"`
	OSMFile   string  `yaml:"osm_file"`
}

// CommunicationConfig holds the channel model parameters.
type CommunicationConfig struct {
	PacketLossRate float64 `yaml:"packet_loss_rate"`
	BaseLatencyMS  float64 `yaml:"base_latency_ms"`
	JitterSigmaMS  float64 `yaml:"jitter_sigma_ms"`
	MaxAgeS        float64 `yaml:"max_age_s"`
}

type mapSection struct {
	Center struct {
		Lat float64 `yaml:"lat"`
		Lon float64 `yaml:"lon"`
	} `yaml:"center"`
	Zoom    int    `yaml:"zoom"`
	OSMFile string `yaml:"osm_file"`
}

// document mirrors the on-disk YAML shape exactly; all top-level
// sections must be listed to satisfy KnownFields(true) strict parsing,
// the same discipline the teacher's cmd/default_config.go Config follows.
type document struct {
	Simulation  SimulationConfig     `yaml:"simulation"`
	Communication CommunicationConfig `yaml:"communication"`
	Map         mapSection           `yaml:"map"`
}

// Defaults returns the configuration surface's documented defaults
// (spec.md §6 Configuration surface).
func Defaults() *Config {
	cfg := &Config{doc: document{
		Simulation: SimulationConfig{
			InitialVehicles:          50,
			TimeAcceleration:         1.0,
			TargetFPS:                30,
			TransmissionRadiusM:      300,
			InterferenceIntervalTick: 10,
			CamHz:                    5.0,
		},
		Communication: CommunicationConfig{
			PacketLossRate: 0.05,
			BaseLatencyMS:  10.0,
			JitterSigmaMS:  2.0,
			MaxAgeS:        5.0,
		},
	}}
	cfg.doc.Map.Center.Lat = 47.7508
	cfg.doc.Map.Center.Lon = 7.3359
	return cfg
}

// Config is the read-only mapping with typed getters plus the two
// structured views (spec.md §4.8 Config).
type Config struct {
	doc document
}

// Load reads and strictly parses path, filling in any section the file
// omits with the documented default (spec.md §7 ConfigMissing: "Defaulted;
// warning surfaced").
func Load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Defaults()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg.doc); err != nil {
		return nil, nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.missingFieldWarnings(data), nil
}

// missingFieldWarnings reports which top-level sections the file omitted
// entirely, surfaced as warnings rather than errors (spec.md §7
// ConfigMissing).
func (c *Config) missingFieldWarnings(raw []byte) []string {
	var probe map[string]interface{}
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return nil
	}
	var warnings []string
	for _, section := range []string{"simulation", "communication", "map"} {
		if _, ok := probe[section]; !ok {
			warnings = append(warnings, fmt.Sprintf("config section %q missing, using defaults", section))
		}
	}
	return warnings
}

// Simulation returns the structured simulation view.
func (c *Config) Simulation() SimulationConfig { return c.doc.Simulation }

// Communication returns the structured communication view.
func (c *Config) Communication() CommunicationConfig { return c.doc.Communication }

// Map returns the structured map view.
func (c *Config) Map() MapConfig {
	return MapConfig{
		CenterLat: c.doc.Map.Center.Lat,
		CenterLon: c.doc.Map.Center.Lon,
		Zoom:      c.doc.Map.Zoom,
		OSMFile:   c.doc.Map.OSMFile,
	}
}

// Int returns an arbitrary top-level.section.key as an int, for callers
// that want the untyped getter contract (spec.md §4.8: "typed getters").
func (c *Config) Int(section, key string) (int, bool) {
	v, ok := c.raw(section, key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Float returns an arbitrary top-level.section.key as a float64.
func (c *Config) Float(section, key string) (float64, bool) {
	v, ok := c.raw(section, key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// String returns an arbitrary top-level.section.key as a string.
func (c *Config) String(section, key string) (string, bool) {
	v, ok := c.raw(section, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns an arbitrary top-level.section.key as a bool.
func (c *Config) Bool(section, key string) (bool, bool) {
	v, ok := c.raw(section, key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (c *Config) raw(section, key string) (interface{}, bool) {
	out, err := yaml.Marshal(c.doc)
	if err != nil {
		return nil, false
	}
	var probe map[string]map[string]interface{}
	if err := yaml.Unmarshal(out, &probe); err != nil {
		return nil, false
	}
	sec, ok := probe[section]
	if !ok {
		return nil, false
	}
	v, ok := sec[key]
	return v, ok
}
