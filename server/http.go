package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edgeplane/edgeplane/infer"
	"github.com/edgeplane/edgeplane/sim"
)

// PlatformInfo is the static descriptor served by GET /api/system/info.
type PlatformInfo struct {
	Platform     string `json:"platform"`
	CPU          string `json:"cpu"`
	NPU          string `json:"npu"`
	MemoryMB     int    `json:"memoryMB"`
	OSName       string `json:"os"`
	KernelDriver string `json:"kernelDriver"`
}

// DefaultPlatformInfo describes the RK3588 target this simulator models.
func DefaultPlatformInfo(memoryMB int) PlatformInfo {
	return PlatformInfo{
		Platform:     "Rockchip RK3588",
		CPU:          "4x Cortex-A76 @ 2.4GHz + 4x Cortex-A55 @ 1.8GHz",
		NPU:          "6 TOPS (3 cores)",
		MemoryMB:     memoryMB,
		OSName:       "edgeplane-sim",
		KernelDriver: "rknpu2 (simulated)",
	}
}

// API serves the REST surface. Every response is {success,data} on success
// and {success:false,message} with a 4xx/5xx status on failure.
type API struct {
	engine *Engine
	info   PlatformInfo
}

// NewAPI creates the REST handler set.
func NewAPI(engine *Engine, info PlatformInfo) *API {
	return &API{engine: engine, info: info}
}

// Routes registers every endpoint on a fresh mux, including /ws.
func (a *API) Routes(ws *WSHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/system/status", a.GetSystemStatus)
	mux.HandleFunc("GET /api/cpu/status", a.GetCPUStatus)
	mux.HandleFunc("GET /api/memory/status", a.GetMemoryStatus)
	mux.HandleFunc("GET /api/ai/status", a.GetAIStatus)
	mux.HandleFunc("GET /api/system/info", a.GetSystemInfo)

	mux.HandleFunc("POST /api/ai/control", a.ControlAI)
	mux.HandleFunc("POST /api/cpu/frequency", a.SetFrequency)
	mux.HandleFunc("POST /api/memory/defragment", a.Defragment)
	mux.HandleFunc("POST /api/ai/inference", a.Inference)

	mux.Handle("GET /ws", ws)

	return mux
}

// GetSystemStatus returns the full telemetry document.
func (a *API) GetSystemStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := a.engine.Snapshot(r.Context())
	if err != nil {
		writeEngineUnavailable(w, err)
		return
	}
	writeData(w, snap)
}

// GetCPUStatus returns the cpu section.
func (a *API) GetCPUStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := a.engine.Snapshot(r.Context())
	if err != nil {
		writeEngineUnavailable(w, err)
		return
	}
	writeData(w, snap.CPU)
}

// GetMemoryStatus returns the memory section.
func (a *API) GetMemoryStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := a.engine.Snapshot(r.Context())
	if err != nil {
		writeEngineUnavailable(w, err)
		return
	}
	writeData(w, snap.Memory)
}

// GetAIStatus returns the ai section.
func (a *API) GetAIStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := a.engine.Snapshot(r.Context())
	if err != nil {
		writeEngineUnavailable(w, err)
		return
	}
	writeData(w, snap.AI)
}

// GetSystemInfo returns the static platform descriptor.
func (a *API) GetSystemInfo(w http.ResponseWriter, r *http.Request) {
	writeData(w, a.info)
}

// ControlAI starts or stops inference.
func (a *API) ControlAI(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var cmd Command
	switch body.Action {
	case "start":
		cmd = Command{Type: CmdStartInference}
	case "stop":
		cmd = Command{Type: CmdStopInference}
	default:
		writeError(w, "action must be \"start\" or \"stop\"", http.StatusBadRequest)
		return
	}

	snap, err := a.engine.Execute(r.Context(), cmd)
	if err != nil {
		writeEngineUnavailable(w, err)
		return
	}
	writeData(w, snap.AI)
}

// SetFrequency rewrites the per-core frequencies from the table.
func (a *API) SetFrequency(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !sim.ValidFrequencyMode(sim.FrequencyMode(body.Mode)) {
		writeError(w, "mode must be \"high\", \"normal\" or \"low\"", http.StatusBadRequest)
		return
	}

	snap, err := a.engine.Execute(r.Context(), Command{Type: CmdAdjustFrequency, Mode: body.Mode})
	if err != nil {
		writeEngineUnavailable(w, err)
		return
	}
	writeData(w, snap.CPU)
}

// Defragment applies the defragment deltas.
func (a *API) Defragment(w http.ResponseWriter, r *http.Request) {
	snap, err := a.engine.Execute(r.Context(), Command{Type: CmdDefragmentMem})
	if err != nil {
		writeEngineUnavailable(w, err)
		return
	}
	writeData(w, snap.Memory)
}

// Inference runs one synchronous pipeline pass for a REST caller.
func (a *API) Inference(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ImageData string `json:"imageData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	payload, err := DecodeImageData(body.ImageData)
	if err != nil {
		writeError(w, "imageData is not valid base64", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if timeout := a.engine.InferenceTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	res, err := a.engine.RunInference(ctx, payload)
	switch {
	case errors.Is(err, infer.ErrInvalidInput):
		writeError(w, "payload is not a decodable image", http.StatusBadRequest)
		return
	case errors.Is(err, infer.ErrTimeout):
		writeError(w, "inference timed out", http.StatusGatewayTimeout)
		return
	case err != nil:
		writeError(w, "inference failed", http.StatusInternalServerError)
		return
	}

	writeData(w, InferencePayload{
		Detections:    res.Detections,
		InferenceTime: res.InferenceTimeMs,
	})
}

// WithRequestLog logs each request the way the access path expects.
func WithRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.Debugf("%s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

// writeEngineUnavailable maps an engine request/reply failure onto the 503
// envelope. A full inbox answers immediately instead of holding the request.
func writeEngineUnavailable(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrEngineBusy) {
		writeError(w, "engine busy, retry shortly", http.StatusServiceUnavailable)
		return
	}
	writeError(w, "engine unavailable", http.StatusServiceUnavailable)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
