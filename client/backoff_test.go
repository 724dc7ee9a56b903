package client

import (
	"testing"
	"time"
)

func TestBackoff_GrowthAndCap(t *testing.T) {
	// GIVEN the reference backoff (1s base, 30s cap, 10 attempts)
	b := DefaultBackoff()

	// WHEN delays for attempts 0..9 are computed
	var prev time.Duration
	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		d := b.Delay(attempt)

		// THEN delays are non-decreasing and capped
		if d < prev {
			t.Errorf("attempt %d: delay %v decreased from %v", attempt, d, prev)
		}
		if d > b.Max {
			t.Errorf("attempt %d: delay %v exceeds cap %v", attempt, d, b.Max)
		}
		prev = d
	}
}

func TestBackoff_DoublesUntilCap(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 30 * time.Second, MaxAttempts: 10}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{9, 30 * time.Second},
		{40, 30 * time.Second}, // far past the cap, no overflow
	}
	for _, tc := range cases {
		if got := b.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d): got %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestBackoff_Exhausted(t *testing.T) {
	// GIVEN a 10-attempt budget
	b := DefaultBackoff()

	// THEN attempts 0..9 are allowed and the 11th is not
	if b.Exhausted(9) {
		t.Error("attempt 9 should be allowed")
	}
	if !b.Exhausted(10) {
		t.Error("attempt 10 should be exhausted")
	}
}

func TestBackoff_NegativeAttemptClamped(t *testing.T) {
	b := DefaultBackoff()
	if got := b.Delay(-3); got != b.Base {
		t.Errorf("Delay(-3): got %v, want base %v", got, b.Base)
	}
}
