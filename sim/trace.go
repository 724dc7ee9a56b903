package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SnapshotRecord is one line of a snapshot trace: the broadcast sequence
// number, the wall-clock time of the broadcast, and the full document.
type SnapshotRecord struct {
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	State     SystemState `json:"state"`
}

// Trace appends one JSON line per broadcast snapshot to a file. Disabled
// tracing is represented by a nil *Trace; all methods are nil-safe so
// callers never branch on whether tracing is on.
type Trace struct {
	f        *os.File
	enc      *json.Encoder
	count    int
	firstSeq uint64
	lastSeq  uint64
}

// OpenTrace creates (or truncates) the trace file at path.
func OpenTrace(path string) (*Trace, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return &Trace{f: f, enc: json.NewEncoder(f)}, nil
}

// Record appends one snapshot record.
func (t *Trace) Record(seq uint64, state SystemState) error {
	if t == nil {
		return nil
	}
	if t.count == 0 {
		t.firstSeq = seq
	}
	t.lastSeq = seq
	t.count++
	return t.enc.Encode(SnapshotRecord{Seq: seq, Timestamp: time.Now(), State: state})
}

// Summary returns a one-line description of what was recorded.
func (t *Trace) Summary() string {
	if t == nil || t.count == 0 {
		return "trace: no snapshots recorded"
	}
	return fmt.Sprintf("trace: %d snapshots recorded, seq %d..%d", t.count, t.firstSeq, t.lastSeq)
}

// Close flushes and closes the trace file.
func (t *Trace) Close() error {
	if t == nil {
		return nil
	}
	return t.f.Close()
}
