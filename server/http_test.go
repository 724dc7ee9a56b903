package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiResponse is the {success,data}/{success,message} envelope every
// endpoint returns.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func getJSON(t *testing.T, url string) (int, apiResponse) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func postJSON(t *testing.T, url string, payload any) (int, apiResponse) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestAPI_StatusEndpoints(t *testing.T) {
	f := newFixture(t, fastInferConfig())

	for _, path := range []string{
		"/api/system/status",
		"/api/cpu/status",
		"/api/memory/status",
		"/api/ai/status",
		"/api/system/info",
	} {
		t.Run(path, func(t *testing.T) {
			status, body := getJSON(t, f.srv.URL+path)
			assert.Equal(t, http.StatusOK, status)
			assert.True(t, body.Success)
			assert.NotEmpty(t, body.Data)
		})
	}
}

func TestAPI_SystemStatusShape(t *testing.T) {
	f := newFixture(t, fastInferConfig())

	_, body := getJSON(t, f.srv.URL+"/api/system/status")

	var snap struct {
		CPU struct {
			Cores map[string]struct {
				FrequencyMHz int `json:"frequencyMHz"`
			} `json:"cores"`
		} `json:"cpu"`
		Memory struct {
			TotalMB int `json:"totalMB"`
			UsedMB  int `json:"usedMB"`
		} `json:"memory"`
		Drivers map[string]string `json:"drivers"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &snap))

	assert.Len(t, snap.CPU.Cores, 8)
	assert.Equal(t, 8192, snap.Memory.TotalMB)
	assert.Contains(t, snap.Drivers, "npu0")
	assert.Contains(t, snap.Drivers, "dht22")
}

func TestAPI_ControlAI(t *testing.T) {
	f := newFixture(t, fastInferConfig())

	// GIVEN a start action
	status, body := postJSON(t, f.srv.URL+"/api/ai/control", map[string]string{"action": "start"})
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)

	var ai struct {
		IsRunning bool `json:"isRunning"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &ai))
	assert.True(t, ai.IsRunning)

	// WHEN an unknown action arrives
	status, body = postJSON(t, f.srv.URL+"/api/ai/control", map[string]string{"action": "pause"})

	// THEN it is rejected with the error envelope
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Message)
}

func TestAPI_SetFrequency(t *testing.T) {
	f := newFixture(t, fastInferConfig())

	status, body := postJSON(t, f.srv.URL+"/api/cpu/frequency", map[string]string{"mode": "low"})
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)

	var cpu struct {
		Cores map[string]struct {
			FrequencyMHz int `json:"frequencyMHz"`
		} `json:"cores"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &cpu))
	assert.Equal(t, 816, cpu.Cores["A76-0"].FrequencyMHz)
	assert.Equal(t, 600, cpu.Cores["A55-0"].FrequencyMHz)

	status, body = postJSON(t, f.srv.URL+"/api/cpu/frequency", map[string]string{"mode": "turbo"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, body.Success)
}

func TestAPI_Defragment(t *testing.T) {
	f := newFixture(t, fastInferConfig())

	status, body := postJSON(t, f.srv.URL+"/api/memory/defragment", struct{}{})
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)

	var mem struct {
		FragmentationPct float64 `json:"fragmentationPct"`
		PressurePct      float64 `json:"pressurePct"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &mem))
	// Boot document starts at fragmentation 12 / pressure 25.
	assert.Equal(t, 5.0, mem.FragmentationPct)
	assert.Equal(t, 20.0, mem.PressurePct)
}

func TestAPI_Inference(t *testing.T) {
	f := newFixture(t, fastInferConfig())

	status, body := postJSON(t, f.srv.URL+"/api/ai/inference",
		map[string]string{"imageData": pngBase64(t, 64, 48)})
	require.Equal(t, http.StatusOK, status)
	require.True(t, body.Success)

	var payload InferencePayload
	require.NoError(t, json.Unmarshal(body.Data, &payload))
	assert.GreaterOrEqual(t, len(payload.Detections), 1)
	assert.LessOrEqual(t, len(payload.Detections), 8)
	for _, d := range payload.Detections {
		assert.GreaterOrEqual(t, d.Confidence, 0.5)
	}
}

func TestAPI_InferenceRejectsBadPayloads(t *testing.T) {
	f := newFixture(t, fastInferConfig())

	t.Run("not base64", func(t *testing.T) {
		status, body := postJSON(t, f.srv.URL+"/api/ai/inference",
			map[string]string{"imageData": "!!!"})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, body.Success)
	})

	t.Run("base64 but not an image", func(t *testing.T) {
		status, body := postJSON(t, f.srv.URL+"/api/ai/inference",
			map[string]string{"imageData": "aGVsbG8gd29ybGQ="})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, body.Success)
	})
}

func TestAPI_SystemInfo(t *testing.T) {
	f := newFixture(t, fastInferConfig())

	_, body := getJSON(t, f.srv.URL+"/api/system/info")

	var info PlatformInfo
	require.NoError(t, json.Unmarshal(body.Data, &info))
	assert.Contains(t, info.Platform, "RK3588")
	assert.Equal(t, 8192, info.MemoryMB)
}
