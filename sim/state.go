// Package sim holds the simulated device document and the closed set of
// mutations that evolve it. The document models an RK3588-class board:
// four Cortex-A76 big cores, four Cortex-A55 little cores, one NPU, and a
// fixed peripheral inventory.
package sim

import "strings"

// DriverStatus is the reported health of one simulated peripheral.
type DriverStatus string

const (
	DriverConnected DriverStatus = "connected"
	DriverActive    DriverStatus = "active"
	DriverIdle      DriverStatus = "idle"
	DriverError     DriverStatus = "error"
)

// FrequencyMode selects one row of the frequency table.
type FrequencyMode string

const (
	FrequencyHigh   FrequencyMode = "high"
	FrequencyNormal FrequencyMode = "normal"
	FrequencyLow    FrequencyMode = "low"
)

// ValidFrequencyMode reports whether m is one of the table rows.
func ValidFrequencyMode(m FrequencyMode) bool {
	switch m {
	case FrequencyHigh, FrequencyNormal, FrequencyLow:
		return true
	}
	return false
}

// CoreState is the telemetry of one CPU core.
type CoreState struct {
	UsagePct     float64 `json:"usagePct"`
	FrequencyMHz int     `json:"frequencyMHz"`
	TemperatureC float64 `json:"temperatureC"`
}

// CPUState groups the per-core telemetry, keyed by core id ("A76-0".."A55-3").
type CPUState struct {
	Cores map[string]CoreState `json:"cores"`
}

// MemoryState is the memory subsystem telemetry.
type MemoryState struct {
	TotalMB          int     `json:"totalMB"`
	UsedMB           int     `json:"usedMB"`
	PressurePct      float64 `json:"pressurePct"`
	FragmentationPct float64 `json:"fragmentationPct"`
	AllocationCount  uint64  `json:"allocationCount"`
}

// AIState is the NPU and inference telemetry. DetectionCount is meaningful
// only while IsRunning; stopping resets it to zero.
type AIState struct {
	NPUUsagePct        float64 `json:"npuUsagePct"`
	InferenceLatencyMs int     `json:"inferenceLatencyMs"`
	BatchSize          int     `json:"batchSize"`
	DetectionCount     int     `json:"detectionCount"`
	IsRunning          bool    `json:"isRunning"`
}

// SystemState is the full device document. It is only ever handed out as a
// clone, so holders can never write through to the Store's copy.
type SystemState struct {
	CPU     CPUState                `json:"cpu"`
	Memory  MemoryState             `json:"memory"`
	AI      AIState                 `json:"ai"`
	Drivers map[string]DriverStatus `json:"drivers"`
}

// Clone returns a deep copy of the document.
func (s SystemState) Clone() SystemState {
	out := s
	out.CPU.Cores = make(map[string]CoreState, len(s.CPU.Cores))
	for id, core := range s.CPU.Cores {
		out.CPU.Cores[id] = core
	}
	out.Drivers = make(map[string]DriverStatus, len(s.Drivers))
	for name, status := range s.Drivers {
		out.Drivers[name] = status
	}
	return out
}

// IsBigCore reports whether a core id names a Cortex-A76 core.
func IsBigCore(id string) bool {
	return strings.HasPrefix(id, "A76")
}

const (
	bootBigUsagePct      = 10.0
	bootLittleUsagePct   = 8.0
	bootBigTempC         = 38.0
	bootLittleTempC      = 35.0
	bootFragmentationPct = 12.0
	bootPressurePct      = 25.0
)

// defaultDrivers is the simulated peripheral inventory. Sensors and codecs
// come up active, the radio link reports connected, and the NPU idles until
// inference starts.
var defaultDrivers = map[string]DriverStatus{
	"dht22":        DriverActive,
	"oled_ssd1306": DriverActive,
	"wifi_esp32":   DriverConnected,
	"can0":         DriverActive,
	"microphone":   DriverActive,
	"speaker":      DriverActive,
	"npu0":         DriverIdle,
}

// NewSystemState builds the boot-time document: eight cores at their normal
// frequencies, boot memory counters, the NPU idle, and the full driver
// inventory.
func NewSystemState(cfg SimConfig) SystemState {
	normal := cfg.FrequencyTable[FrequencyNormal]

	cores := make(map[string]CoreState, 8)
	for i := 0; i < 4; i++ {
		cores["A76-"+string(rune('0'+i))] = CoreState{
			UsagePct:     bootBigUsagePct,
			FrequencyMHz: normal.BigMHz,
			TemperatureC: bootBigTempC,
		}
		cores["A55-"+string(rune('0'+i))] = CoreState{
			UsagePct:     bootLittleUsagePct,
			FrequencyMHz: normal.LittleMHz,
			TemperatureC: bootLittleTempC,
		}
	}

	drivers := make(map[string]DriverStatus, len(defaultDrivers))
	for name, status := range defaultDrivers {
		drivers[name] = status
	}

	return SystemState{
		CPU: CPUState{Cores: cores},
		Memory: MemoryState{
			TotalMB:          cfg.TotalMemoryMB,
			UsedMB:           cfg.BootUsedMB,
			PressurePct:      bootPressurePct,
			FragmentationPct: bootFragmentationPct,
		},
		AI: AIState{
			NPUUsagePct: npuIdlePct,
			BatchSize:   1,
		},
		Drivers: drivers,
	}
}
