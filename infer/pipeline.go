package infer

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidInput marks a payload that is empty or not a decodable image.
	ErrInvalidInput = errors.New("invalid image payload")
	// ErrTimeout marks a run whose deadline elapsed before the simulated
	// inference window completed. No result is delivered.
	ErrTimeout = errors.New("inference deadline exceeded")
)

// Detection is one synthesized inference result. Created per run, never
// mutated, discarded after delivery.
type Detection struct {
	ClassID    int        `json:"classId"`
	ClassName  string     `json:"className"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"` // x, y, w, h, normalized to [0,1]
}

// Options bounds one run.
type Options struct {
	MaxWidth  int
	MaxHeight int
	Timeout   time.Duration
}

// Result is the outcome of one successful run.
type Result struct {
	Detections      []Detection `json:"detections"`
	InferenceTimeMs int64       `json:"inferenceTime"`
	Input           Dimensions  `json:"input"`
	Resized         Dimensions  `json:"resized"`
}

// Config groups the pipeline parameters. Immutable after startup.
type Config struct {
	// Simulated-latency window, drawn uniformly per run.
	LatencyMin time.Duration
	LatencyMax time.Duration
	// Detections below this confidence are dropped.
	ConfidenceThreshold float64
	// Synthesized confidences are drawn from [ConfidenceFloor, 1.0].
	ConfidenceFloor float64
	// Detection count is drawn from [1, MaxDetections].
	MaxDetections int
}

// DefaultConfig returns the reference parameters: 500-1500 ms latency,
// confidence floor 0.7, filter threshold 0.5, at most 8 detections.
func DefaultConfig() Config {
	return Config{
		LatencyMin:          500 * time.Millisecond,
		LatencyMax:          1500 * time.Millisecond,
		ConfidenceThreshold: 0.5,
		ConfidenceFloor:     0.7,
		MaxDetections:       8,
	}
}

// Pipeline synthesizes detection results after a simulated latency window.
// It performs no model invocation and touches no hardware; the contract is
// the externally observable shape, latency, and cancellation behavior.
//
// Safe for concurrent Run calls; the injected RNG is mutex-guarded.
type Pipeline struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Pipeline drawing randomness from rng. The RNG is injected,
// never global, so a fixed seed replays identical results.
func New(cfg Config, rng *rand.Rand) *Pipeline {
	return &Pipeline{cfg: cfg, rng: rng}
}

// Run executes one inference: validate, resize, wait out the simulated
// latency, synthesize detections. Cancellable via ctx and opts.Timeout; a
// cancelled run returns ErrTimeout and delivers nothing.
func (p *Pipeline) Run(ctx context.Context, payload []byte, opts Options) (*Result, error) {
	if len(payload) == 0 {
		return nil, ErrInvalidInput
	}
	src, err := decodeDimensions(payload)
	if err != nil {
		return nil, ErrInvalidInput
	}

	resized := src
	if opts.MaxWidth > 0 && opts.MaxHeight > 0 {
		resized = FitWithin(src, opts.MaxWidth, opts.MaxHeight)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	delay := p.drawLatency()
	logrus.Debugf("inference: %dx%d -> %dx%d, simulated latency %v",
		src.Width, src.Height, resized.Width, resized.Height, delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ErrTimeout
	case <-timer.C:
	}

	return &Result{
		Detections:      p.synthesize(),
		InferenceTimeMs: delay.Milliseconds(),
		Input:           src,
		Resized:         resized,
	}, nil
}

func (p *Pipeline) drawLatency() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	window := p.cfg.LatencyMax - p.cfg.LatencyMin
	if window <= 0 {
		return p.cfg.LatencyMin
	}
	return p.cfg.LatencyMin + time.Duration(p.rng.Int63n(int64(window)+1))
}

// synthesize draws 1..MaxDetections labeled boxes and filters out those
// below the confidence threshold.
func (p *Pipeline) synthesize() []Detection {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 1 + p.rng.Intn(p.cfg.MaxDetections)
	out := make([]Detection, 0, n)
	for i := 0; i < n; i++ {
		label := labels[p.rng.Intn(len(labels))]
		confidence := p.cfg.ConfidenceFloor + p.rng.Float64()*(1-p.cfg.ConfidenceFloor)
		if confidence < p.cfg.ConfidenceThreshold {
			continue
		}

		x := p.rng.Float64() * 0.8
		y := p.rng.Float64() * 0.8
		w := p.rng.Float64() * (1 - x)
		h := p.rng.Float64() * (1 - y)
		out = append(out, Detection{
			ClassID:    label.ClassID,
			ClassName:  label.Name,
			Confidence: confidence,
			BBox:       [4]float64{x, y, w, h},
		})
	}
	return out
}
