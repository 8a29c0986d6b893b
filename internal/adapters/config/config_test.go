package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
simulation:
  initial_vehicles: 200
  time_acceleration: 2.0
  target_fps: 60
  transmission_radius_m: 250
  interference_interval_ticks: 5
  cam_hz: 10.0
communication:
  packet_loss_rate: 0.1
  base_latency_ms: 20.0
  jitter_sigma_ms: 3.0
  max_age_s: 8.0
map:
  center:
    lat: 47.7508
    lon: 7.3359
  zoom: 14
  osm_file: mulhouse.osm
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesAllSections(t *testing.T) {
	cfg, warnings, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Empty(t, warnings, "a complete config should produce no warnings")

	sim := cfg.Simulation()
	assert.Equal(t, 200, sim.InitialVehicles)
	assert.Equal(t, 60, sim.TargetFPS)

	comm := cfg.Communication()
	assert.Equal(t, 0.1, comm.PacketLossRate)
	assert.Equal(t, 20.0, comm.BaseLatencyMS)

	m := cfg.Map()
	assert.Equal(t, 47.7508, m.CenterLat)
	assert.Equal(t, "mulhouse.osm", m.OSMFile)
}

// TestLoad_MissingSectionDefaultsAndWarns mirrors spec.md §7
// ConfigMissing: "Defaulted; warning surfaced".
func TestLoad_MissingSectionDefaultsAndWarns(t *testing.T) {
	partial := `
simulation:
  initial_vehicles: 10
`
	cfg, warnings, err := Load(writeConfig(t, partial))
	require.NoError(t, err)
	assert.NotEmpty(t, warnings, "omitted sections should warn")

	comm := cfg.Communication()
	assert.Equal(t, Defaults().Communication().BaseLatencyMS, comm.BaseLatencyMS)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	bad := `
simulation:
  initial_vehicles: 10
  bogus_field: 1
`
	_, _, err := Load(writeConfig(t, bad))
	assert.Error(t, err, "strict decoding should reject an unknown field")
}

func TestDefaults_MatchConfigurationSurface(t *testing.T) {
	d := Defaults()
	sim := d.Simulation()
	assert.Equal(t, 50, sim.InitialVehicles)
	assert.Equal(t, 1.0, sim.TimeAcceleration)
	assert.Equal(t, 30, sim.TargetFPS)

	comm := d.Communication()
	assert.Equal(t, 0.05, comm.PacketLossRate)
	assert.Equal(t, 5.0, comm.MaxAgeS)
}

func TestTypedGetters(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	v, ok := cfg.Int("simulation", "initial_vehicles")
	assert.True(t, ok)
	assert.Equal(t, 200, v)

	f, ok := cfg.Float("communication", "packet_loss_rate")
	assert.True(t, ok)
	assert.Equal(t, 0.1, f)

	s, ok := cfg.String("map", "osm_file")
	assert.True(t, ok)
	assert.Equal(t, "mulhouse.osm", s)

	_, ok = cfg.Bool("simulation", "does_not_exist")
	assert.False(t, ok, "missing key should report not-ok")
}
