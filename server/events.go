package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/edgeplane/edgeplane/infer"
	"github.com/edgeplane/edgeplane/sim"
)

// CommandType tags an inbound client frame.
type CommandType string

const (
	CmdStartInference  CommandType = "start_inference"
	CmdStopInference   CommandType = "stop_inference"
	CmdAdjustFrequency CommandType = "adjust_frequency"
	CmdDefragmentMem   CommandType = "defragment_memory"
	CmdRunInference    CommandType = "run_inference"
)

// Command is the decoded form of one client frame. Consumed exactly once by
// the engine's dispatch loop.
type Command struct {
	Type      CommandType `json:"type"`
	Mode      string      `json:"mode,omitempty"`
	ImageData string      `json:"imageData,omitempty"`
}

var (
	// ErrUnknownCommand guards forward compatibility: unrecognized tags are
	// logged and dropped, never fatal.
	ErrUnknownCommand = errors.New("unknown command type")
	// ErrMalformedCommand marks a frame that failed validation.
	ErrMalformedCommand = errors.New("malformed command")
)

// ParseCommand decodes and validates one inbound frame.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}

	switch cmd.Type {
	case CmdStartInference, CmdStopInference, CmdDefragmentMem:
	case CmdAdjustFrequency:
		if !sim.ValidFrequencyMode(sim.FrequencyMode(cmd.Mode)) {
			return Command{}, fmt.Errorf("%w: bad frequency mode %q", ErrMalformedCommand, cmd.Mode)
		}
	case CmdRunInference:
		if cmd.ImageData == "" {
			return Command{}, fmt.Errorf("%w: run_inference without imageData", ErrMalformedCommand)
		}
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return cmd, nil
}

// DecodeImageData unwraps an optional data-URL prefix and base64-decodes the
// payload.
func DecodeImageData(imageData string) ([]byte, error) {
	raw := imageData
	if strings.HasPrefix(raw, "data:") {
		idx := strings.Index(raw, ",")
		if idx < 0 {
			return nil, fmt.Errorf("%w: data URL without payload", ErrMalformedCommand)
		}
		raw = raw[idx+1:]
	}
	payload, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return payload, nil
}

// EventType tags an outbound server frame.
type EventType string

const (
	EventSystemStatus    EventType = "system_status"
	EventInferenceResult EventType = "ai_inference_result"
	EventError           EventType = "error"
)

// Event is one outbound frame. Immutable once constructed; broadcast or
// unicast, never retained after delivery.
type Event struct {
	Type EventType `json:"type"`
	Seq  uint64    `json:"seq,omitempty"`
	Data any       `json:"data,omitempty"`
}

// InferencePayload is the data field of an ai_inference_result frame.
type InferencePayload struct {
	Detections []infer.Detection `json:"detections"`
	// InferenceTime is the simulated latency in milliseconds.
	InferenceTime int64 `json:"inferenceTime"`
}

// ErrorPayload is the data field of an error frame.
type ErrorPayload struct {
	Reason string `json:"reason"`
}

// StatusEvent wraps a snapshot with its global sequence number.
func StatusEvent(seq uint64, state sim.SystemState) Event {
	return Event{Type: EventSystemStatus, Seq: seq, Data: state}
}

// ResultEvent wraps an inference result for unicast delivery.
func ResultEvent(res *infer.Result) Event {
	return Event{Type: EventInferenceResult, Data: InferencePayload{
		Detections:    res.Detections,
		InferenceTime: res.InferenceTimeMs,
	}}
}

// ErrorEvent wraps a failure reason for unicast delivery.
func ErrorEvent(reason string) Event {
	return Event{Type: EventError, Data: ErrorPayload{Reason: reason}}
}
