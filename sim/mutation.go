package sim

import "math/rand"

// Mutation is one entry of the closed mutation set the Store accepts.
// Apply must be a pure function of the prior state plus the injected RNG:
// no I/O, no global entropy, no failure path. Inputs are validated before
// they reach the Store, so mutations are total.
type Mutation interface {
	apply(s *SystemState, cfg SimConfig, rng *rand.Rand)
}

// Tick applies one simulation step: bounded random walks on per-core usage
// and temperature and on the memory counters, and, only while inference is
// running, NPU drift toward its ceiling plus a latency/detection redraw.
type Tick struct{}

const (
	npuIdlePct    = 5.0
	npuCeilingPct = 95.0

	usageJitterPct = 8.0
	tempJitterC    = 1.5
	minCoreTempC   = 30.0
	maxCoreTempC   = 95.0
	memJitterMB    = 128
	pressureJitter = 3.0
	fragJitter     = 1.5
)

func (Tick) apply(s *SystemState, cfg SimConfig, rng *rand.Rand) {
	for id, core := range s.CPU.Cores {
		core.UsagePct = clamp(core.UsagePct+jitter(rng, usageJitterPct), 0, 100)
		core.TemperatureC = clamp(core.TemperatureC+jitter(rng, tempJitterC), minCoreTempC, maxCoreTempC)
		s.CPU.Cores[id] = core
	}

	used := s.Memory.UsedMB + int(jitter(rng, memJitterMB))
	s.Memory.UsedMB = clampInt(used, 0, s.Memory.TotalMB)
	s.Memory.PressurePct = clamp(s.Memory.PressurePct+jitter(rng, pressureJitter), 0, 100)
	s.Memory.FragmentationPct = clamp(s.Memory.FragmentationPct+jitter(rng, fragJitter), 0, 100)
	s.Memory.AllocationCount += uint64(rng.Intn(64))

	if s.AI.IsRunning {
		// Drift a third of the remaining headroom per tick, so usage
		// approaches the ceiling without overshooting it.
		headroom := npuCeilingPct - s.AI.NPUUsagePct
		s.AI.NPUUsagePct = clamp(s.AI.NPUUsagePct+headroom/3+jitter(rng, 2), 0, npuCeilingPct)
		s.AI.InferenceLatencyMs = cfg.LatencyMinMs + rng.Intn(cfg.LatencyMaxMs-cfg.LatencyMinMs+1)
		s.AI.DetectionCount = 1 + rng.Intn(8)
	} else if s.AI.NPUUsagePct > npuIdlePct {
		s.AI.NPUUsagePct = clamp(s.AI.NPUUsagePct/2, npuIdlePct, 100)
	}

	applyAlerts(s, cfg.Alerts)
}

// SetFrequencyMode rewrites every core's frequency from the configured
// table row. Idempotent: applying the same mode twice is a no-op.
type SetFrequencyMode struct {
	Mode FrequencyMode
}

func (m SetFrequencyMode) apply(s *SystemState, cfg SimConfig, _ *rand.Rand) {
	row := cfg.FrequencyTable[m.Mode]
	for id, core := range s.CPU.Cores {
		if IsBigCore(id) {
			core.FrequencyMHz = row.BigMHz
		} else {
			core.FrequencyMHz = row.LittleMHz
		}
		s.CPU.Cores[id] = core
	}
}

// Defragment reduces fragmentation and pressure by the configured deltas,
// floored at the configured minimums. Never increases either field.
type Defragment struct{}

func (Defragment) apply(s *SystemState, cfg SimConfig, _ *rand.Rand) {
	frag := s.Memory.FragmentationPct - cfg.DefragFragmentationDelta
	if frag < cfg.FragmentationFloorPct {
		frag = cfg.FragmentationFloorPct
	}
	if frag < s.Memory.FragmentationPct {
		s.Memory.FragmentationPct = frag
	}

	pressure := s.Memory.PressurePct - cfg.DefragPressureDelta
	if pressure < cfg.PressureFloorPct {
		pressure = cfg.PressureFloorPct
	}
	if pressure < s.Memory.PressurePct {
		s.Memory.PressurePct = pressure
	}
}

// SetRunning toggles inference. Stopping resets the NPU drift to idle and
// clears detectionCount (the field has no meaning while inference is off).
type SetRunning struct {
	Running bool
}

func (m SetRunning) apply(s *SystemState, _ SimConfig, _ *rand.Rand) {
	if s.AI.IsRunning == m.Running {
		return
	}
	s.AI.IsRunning = m.Running
	if m.Running {
		s.Drivers["npu0"] = DriverActive
		return
	}
	s.AI.NPUUsagePct = npuIdlePct
	s.AI.DetectionCount = 0
	s.Drivers["npu0"] = DriverIdle
}

// SetDetectionCount records the length of a successful inference result.
type SetDetectionCount struct {
	Count int
}

func (m SetDetectionCount) apply(s *SystemState, _ SimConfig, _ *rand.Rand) {
	if m.Count < 0 {
		return
	}
	s.AI.DetectionCount = m.Count
}

// applyAlerts degrades driver status when a walk crosses a threshold and
// restores it on recovery. The dht22 sensor mirrors thermal health; the
// display loses its frame buffer under memory pressure.
func applyAlerts(s *SystemState, t AlertThresholds) {
	overheated := false
	for _, core := range s.CPU.Cores {
		if core.TemperatureC > t.TemperatureC {
			overheated = true
			break
		}
	}
	if overheated {
		s.Drivers["dht22"] = DriverError
	} else if s.Drivers["dht22"] == DriverError {
		s.Drivers["dht22"] = DriverActive
	}

	if s.Memory.PressurePct > t.PressurePct {
		s.Drivers["oled_ssd1306"] = DriverError
	} else if s.Drivers["oled_ssd1306"] == DriverError {
		s.Drivers["oled_ssd1306"] = DriverActive
	}
}

func jitter(rng *rand.Rand, amplitude float64) float64 {
	return (rng.Float64()*2 - 1) * amplitude
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
