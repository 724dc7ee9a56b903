package sim

import (
	"fmt"
	"time"
)

// FrequencyRow holds the per-class core frequencies for one mode.
type FrequencyRow struct {
	BigMHz    int `yaml:"big_mhz" json:"bigMHz"`
	LittleMHz int `yaml:"little_mhz" json:"littleMHz"`
}

// AlertThresholds are the levels past which a tick degrades driver status
// and logs a warning.
type AlertThresholds struct {
	TemperatureC float64 `yaml:"temperature_c"`
	PressurePct  float64 `yaml:"pressure_pct"`
}

// SimConfig groups the simulation parameters. Immutable after startup.
type SimConfig struct {
	TickInterval  time.Duration
	TotalMemoryMB int
	BootUsedMB    int

	// Defragment deltas and floors.
	DefragFragmentationDelta float64
	DefragPressureDelta      float64
	FragmentationFloorPct    float64
	PressureFloorPct         float64

	// Inference-latency redraw range while running, in milliseconds.
	LatencyMinMs int
	LatencyMaxMs int

	FrequencyTable map[FrequencyMode]FrequencyRow
	Alerts         AlertThresholds
}

// DefaultSimConfig returns the reference parameters: a 2 s tick, 8 GB of
// memory, the RK3588 frequency table, and the defragment floors at 5% / 10%.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		TickInterval:             2 * time.Second,
		TotalMemoryMB:            8192,
		BootUsedMB:               2048,
		DefragFragmentationDelta: 8,
		DefragPressureDelta:      5,
		FragmentationFloorPct:    5,
		PressureFloorPct:         10,
		LatencyMinMs:             15,
		LatencyMaxMs:             45,
		FrequencyTable: map[FrequencyMode]FrequencyRow{
			FrequencyHigh:   {BigMHz: 2400, LittleMHz: 1800},
			FrequencyNormal: {BigMHz: 1608, LittleMHz: 1416},
			FrequencyLow:    {BigMHz: 816, LittleMHz: 600},
		},
		Alerts: AlertThresholds{
			TemperatureC: 80,
			PressurePct:  90,
		},
	}
}

// Validate rejects parameter combinations that would break the state
// invariants before any mutation runs.
func (c SimConfig) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.TickInterval)
	}
	if c.TotalMemoryMB <= 0 {
		return fmt.Errorf("total memory must be positive, got %d MB", c.TotalMemoryMB)
	}
	if c.BootUsedMB < 0 || c.BootUsedMB > c.TotalMemoryMB {
		return fmt.Errorf("boot used memory %d MB outside [0,%d]", c.BootUsedMB, c.TotalMemoryMB)
	}
	if c.LatencyMinMs <= 0 || c.LatencyMaxMs < c.LatencyMinMs {
		return fmt.Errorf("latency range [%d,%d] ms is invalid", c.LatencyMinMs, c.LatencyMaxMs)
	}
	if c.FragmentationFloorPct < 0 || c.PressureFloorPct < 0 {
		return fmt.Errorf("defragment floors must be non-negative")
	}
	for _, mode := range []FrequencyMode{FrequencyHigh, FrequencyNormal, FrequencyLow} {
		row, ok := c.FrequencyTable[mode]
		if !ok {
			return fmt.Errorf("frequency table missing %q row", mode)
		}
		if row.BigMHz <= 0 || row.LittleMHz <= 0 {
			return fmt.Errorf("frequency table row %q has non-positive entries", mode)
		}
	}
	return nil
}
