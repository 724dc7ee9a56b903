package cmd

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgeplane/edgeplane/client"
	"github.com/edgeplane/edgeplane/infer"
	"github.com/edgeplane/edgeplane/server"
	"github.com/edgeplane/edgeplane/sim"
)

// SimulationSection configures the telemetry walk.
type SimulationSection struct {
	TickIntervalMs           int                             `yaml:"tick_interval_ms"`
	TotalMemoryMB            int                             `yaml:"total_memory_mb"`
	BootUsedMB               int                             `yaml:"boot_used_mb"`
	DefragFragmentationDelta float64                         `yaml:"defrag_fragmentation_delta"`
	DefragPressureDelta      float64                         `yaml:"defrag_pressure_delta"`
	FragmentationFloorPct    float64                         `yaml:"fragmentation_floor_pct"`
	PressureFloorPct         float64                         `yaml:"pressure_floor_pct"`
	LatencyMinMs             int                             `yaml:"latency_min_ms"`
	LatencyMaxMs             int                             `yaml:"latency_max_ms"`
	FrequencyTable           map[string]sim.FrequencyRow     `yaml:"frequency_table"`
	Alerts                   sim.AlertThresholds             `yaml:"alerts"`
}

// InferenceSection configures the mock pipeline.
type InferenceSection struct {
	LatencyMinMs        int     `yaml:"latency_min_ms"`
	LatencyMaxMs        int     `yaml:"latency_max_ms"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	ConfidenceFloor     float64 `yaml:"confidence_floor"`
	MaxDetections       int     `yaml:"max_detections"`
	MaxWidth            int     `yaml:"max_width"`
	MaxHeight           int     `yaml:"max_height"`
	TimeoutMs           int     `yaml:"timeout_ms"`
}

// ClientSection configures the watch subcommand.
type ClientSection struct {
	URL                string `yaml:"url"`
	BackoffBaseMs      int    `yaml:"backoff_base_ms"`
	BackoffMaxMs       int    `yaml:"backoff_max_ms"`
	MaxAttempts        int    `yaml:"max_attempts"`
	RenderWindowMs     int    `yaml:"render_window_ms"`
	LivenessIntervalMs int    `yaml:"liveness_interval_ms"`
}

// FileConfig is the full YAML config file structure. All top-level sections
// must be listed to satisfy KnownFields(true) strict parsing: typos must
// cause errors, not silent defaults.
type FileConfig struct {
	ListenAddr string            `yaml:"listen_addr"`
	Seed       int64             `yaml:"seed"`
	TraceFile  string            `yaml:"trace_file"`
	Simulation SimulationSection `yaml:"simulation"`
	Inference  InferenceSection  `yaml:"inference"`
	Client     ClientSection     `yaml:"client"`
}

// DefaultFileConfig returns the reference configuration.
func DefaultFileConfig() FileConfig {
	simCfg := sim.DefaultSimConfig()
	inferCfg := infer.DefaultConfig()
	table := make(map[string]sim.FrequencyRow, len(simCfg.FrequencyTable))
	for mode, row := range simCfg.FrequencyTable {
		table[string(mode)] = row
	}

	return FileConfig{
		ListenAddr: ":8080",
		Seed:       42,
		Simulation: SimulationSection{
			TickIntervalMs:           int(simCfg.TickInterval / time.Millisecond),
			TotalMemoryMB:            simCfg.TotalMemoryMB,
			BootUsedMB:               simCfg.BootUsedMB,
			DefragFragmentationDelta: simCfg.DefragFragmentationDelta,
			DefragPressureDelta:      simCfg.DefragPressureDelta,
			FragmentationFloorPct:    simCfg.FragmentationFloorPct,
			PressureFloorPct:         simCfg.PressureFloorPct,
			LatencyMinMs:             simCfg.LatencyMinMs,
			LatencyMaxMs:             simCfg.LatencyMaxMs,
			FrequencyTable:           table,
			Alerts:                   simCfg.Alerts,
		},
		Inference: InferenceSection{
			LatencyMinMs:        int(inferCfg.LatencyMin / time.Millisecond),
			LatencyMaxMs:        int(inferCfg.LatencyMax / time.Millisecond),
			ConfidenceThreshold: inferCfg.ConfidenceThreshold,
			ConfidenceFloor:     inferCfg.ConfidenceFloor,
			MaxDetections:       inferCfg.MaxDetections,
			MaxWidth:            800,
			MaxHeight:           600,
			TimeoutMs:           5000,
		},
		Client: ClientSection{
			URL:                "ws://localhost:8080/ws",
			BackoffBaseMs:      1000,
			BackoffMaxMs:       30000,
			MaxAttempts:        10,
			RenderWindowMs:     500,
			LivenessIntervalMs: 60000,
		},
	}
}

// LoadFileConfig reads path on top of the defaults. An empty path returns
// the defaults unchanged. Uses strict field checking so unknown keys fail.
func LoadFileConfig(path string) (FileConfig, error) {
	cfg := DefaultFileConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// ServerOptions maps the file config onto server startup options.
func (c FileConfig) ServerOptions() server.Options {
	table := make(map[sim.FrequencyMode]sim.FrequencyRow, len(c.Simulation.FrequencyTable))
	for mode, row := range c.Simulation.FrequencyTable {
		table[sim.FrequencyMode(mode)] = row
	}

	return server.Options{
		Addr: c.ListenAddr,
		Seed: c.Seed,
		Sim: sim.SimConfig{
			TickInterval:             time.Duration(c.Simulation.TickIntervalMs) * time.Millisecond,
			TotalMemoryMB:            c.Simulation.TotalMemoryMB,
			BootUsedMB:               c.Simulation.BootUsedMB,
			DefragFragmentationDelta: c.Simulation.DefragFragmentationDelta,
			DefragPressureDelta:      c.Simulation.DefragPressureDelta,
			FragmentationFloorPct:    c.Simulation.FragmentationFloorPct,
			PressureFloorPct:         c.Simulation.PressureFloorPct,
			LatencyMinMs:             c.Simulation.LatencyMinMs,
			LatencyMaxMs:             c.Simulation.LatencyMaxMs,
			FrequencyTable:           table,
			Alerts:                   c.Simulation.Alerts,
		},
		Infer: infer.Config{
			LatencyMin:          time.Duration(c.Inference.LatencyMinMs) * time.Millisecond,
			LatencyMax:          time.Duration(c.Inference.LatencyMaxMs) * time.Millisecond,
			ConfidenceThreshold: c.Inference.ConfidenceThreshold,
			ConfidenceFloor:     c.Inference.ConfidenceFloor,
			MaxDetections:       c.Inference.MaxDetections,
		},
		InferOpts: infer.Options{
			MaxWidth:  c.Inference.MaxWidth,
			MaxHeight: c.Inference.MaxHeight,
			Timeout:   time.Duration(c.Inference.TimeoutMs) * time.Millisecond,
		},
		TracePath: c.TraceFile,
	}
}

// ClientConfig maps the file config onto session parameters.
func (c FileConfig) ClientConfig() client.Config {
	return client.Config{
		URL: c.Client.URL,
		Backoff: client.Backoff{
			Base:        time.Duration(c.Client.BackoffBaseMs) * time.Millisecond,
			Max:         time.Duration(c.Client.BackoffMaxMs) * time.Millisecond,
			MaxAttempts: c.Client.MaxAttempts,
		},
		RenderWindow: time.Duration(c.Client.RenderWindowMs) * time.Millisecond,
	}
}

// LivenessInterval is the wait before a fully disconnected session retries.
func (c FileConfig) LivenessInterval() time.Duration {
	return time.Duration(c.Client.LivenessIntervalMs) * time.Millisecond
}
