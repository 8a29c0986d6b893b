package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/v2vsim/v2vsim/internal/adapters/config"
	"github.com/v2vsim/v2vsim/internal/adapters/osm"
	"github.com/v2vsim/v2vsim/internal/comms"
	"github.com/v2vsim/v2vsim/internal/engine"
	"github.com/v2vsim/v2vsim/internal/roadgraph"
)

var (
	configFile string
	logLevel   string

	initialVehicles     int
	timeAcceleration    float64
	targetFPS           int
	transmissionRadiusM int
	interferenceTicks   int
	camHz               float64

	packetLossRate float64
	baseLatencyMS  float64
	jitterSigmaMS  float64
	maxAgeS        float64

	mapCenterLat float64
	mapCenterLon float64
	osmFile      string

	seed  int64
	ticks int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "v2vsim",
	Short: "V2V network simulator: vehicle kinematics, interference graph, and message delivery",
}

// loadEngineConfig resolves the configuration file (if any) and layers
// CLI flag overrides on top of it, the same precedence the teacher's run
// command applies to coefficients (flags win; config supplies defaults).
func loadEngineConfig(cmd *cobra.Command) engine.Config {
	cfg := config.Defaults()
	if configFile != "" {
		loaded, warnings, err := config.Load(configFile)
		if err != nil {
			logrus.Fatalf("loading config %s: %v", configFile, err)
		}
		for _, w := range warnings {
			logrus.Warn(w)
		}
		cfg = loaded
	}

	sim := cfg.Simulation()
	comm := cfg.Communication()
	mapCfg := cfg.Map()

	if !cmd.Flags().Changed("vehicles") {
		initialVehicles = sim.InitialVehicles
	}
	if !cmd.Flags().Changed("time-scale") {
		timeAcceleration = sim.TimeAcceleration
	}
	if !cmd.Flags().Changed("fps") {
		targetFPS = sim.TargetFPS
	}
	if !cmd.Flags().Changed("tx-radius") {
		transmissionRadiusM = sim.TransmissionRadiusM
	}
	if !cmd.Flags().Changed("interference-interval") {
		interferenceTicks = sim.InterferenceIntervalTick
	}
	if !cmd.Flags().Changed("cam-hz") {
		camHz = sim.CamHz
	}
	if !cmd.Flags().Changed("packet-loss") {
		packetLossRate = comm.PacketLossRate
	}
	if !cmd.Flags().Changed("base-latency") {
		baseLatencyMS = comm.BaseLatencyMS
	}
	if !cmd.Flags().Changed("jitter-sigma") {
		jitterSigmaMS = comm.JitterSigmaMS
	}
	if !cmd.Flags().Changed("max-age") {
		maxAgeS = comm.MaxAgeS
	}
	if !cmd.Flags().Changed("center-lat") {
		mapCenterLat = mapCfg.CenterLat
	}
	if !cmd.Flags().Changed("center-lon") {
		mapCenterLon = mapCfg.CenterLon
	}
	if !cmd.Flags().Changed("osm-file") {
		osmFile = mapCfg.OSMFile
	}

	return engine.Config{
		InitialVehicles:          initialVehicles,
		TimeScale:                timeAcceleration,
		TargetFPS:                targetFPS,
		TransmissionRadiusM:      float64(transmissionRadiusM),
		InterferenceIntervalTick: interferenceTicks,
		CamHz:                    camHz,
		Comms: comms.Config{
			PacketLossRate: packetLossRate,
			BaseLatencyMS:  baseLatencyMS,
			JitterSigmaMS:  jitterSigmaMS,
			MaxAgeS:        maxAgeS,
		},
		Seed: seed,
	}
}

// loadRoadGraph builds the road graph for a run: from the configured OSM
// file if one is set, otherwise a synthetic grid centred on the
// configured map center (spec.md §4.8). Either way the engine gets a
// non-empty graph and runs in routed mode, not simple mode.
func loadRoadGraph() *roadgraph.RoadGraph {
	g := roadgraph.New()
	if osmFile == "" {
		osm.SynthesizeGrid(g, mapCenterLat, mapCenterLon)
		return g
	}
	if err := osm.Load(osmFile, g, mapCenterLat, mapCenterLon); err != nil {
		logrus.Fatalf("loading road graph: %v", err)
	}
	return g
}

// runCmd runs the simulation for a fixed number of ticks and prints the
// resulting statistics.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation for a fixed number of ticks",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := loadEngineConfig(cmd)
		graph := loadRoadGraph()

		e := engine.New(cfg, graph)
		created := e.CreatePopulation(cfg.InitialVehicles)
		logrus.Infof("population ready: %d/%d vehicles", created, cfg.InitialVehicles)

		e.Start()
		dt := 1.0 / float64(cfg.TargetFPS)
		for i := 0; i < ticks; i++ {
			e.TickWithDt(dt)
		}

		stats := e.Stats()
		logrus.Infof("ran %d ticks, sim_time=%.2fs: sent=%d received=%d dropped=%d active_links=%d avg_neighbors=%.2f",
			ticks, e.SimTime(), stats.Sent, stats.Received, stats.Dropped, stats.ActiveLinks, stats.AvgNeighbors)
	},
}

// Execute runs the CLI root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file (spec.md §6 configuration surface)")

	for _, c := range []*cobra.Command{runCmd, replayCmd} {
		c.Flags().IntVar(&initialVehicles, "vehicles", 50, "simulation.initial_vehicles")
		c.Flags().Float64Var(&timeAcceleration, "time-scale", 1.0, "simulation.time_acceleration (0.1-10.0)")
		c.Flags().IntVar(&targetFPS, "fps", 30, "simulation.target_fps (30-120)")
		c.Flags().IntVar(&transmissionRadiusM, "tx-radius", 300, "simulation.transmission_radius_m (100-500)")
		c.Flags().IntVar(&interferenceTicks, "interference-interval", 10, "simulation.interference_interval_ticks")
		c.Flags().Float64Var(&camHz, "cam-hz", 5.0, "simulation.cam_hz")

		c.Flags().Float64Var(&packetLossRate, "packet-loss", 0.05, "communication.packet_loss_rate (0.0-1.0)")
		c.Flags().Float64Var(&baseLatencyMS, "base-latency", 10.0, "communication.base_latency_ms")
		c.Flags().Float64Var(&jitterSigmaMS, "jitter-sigma", 2.0, "communication.jitter_sigma_ms")
		c.Flags().Float64Var(&maxAgeS, "max-age", 5.0, "communication.max_age_s")

		c.Flags().Float64Var(&mapCenterLat, "center-lat", 47.7508, "map.center.lat")
		c.Flags().Float64Var(&mapCenterLon, "center-lon", 7.3359, "map.center.lon")
		c.Flags().StringVar(&osmFile, "osm-file", "", "map.osm_file (empty = synthetic grid)")

		c.Flags().Int64Var(&seed, "seed", 42, "RNG master seed (spec.md §5 RNG)")
		c.Flags().IntVar(&ticks, "ticks", 300, "number of ticks to run")
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
}
