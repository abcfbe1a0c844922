// Package observe defines the observation stream that feeds the timeline.
//
// The design principle: every observation source (the idle probe, a replay
// script, an external classifier) implements the same Source interface.
// This lets the daemon drive any of them with the same loop. Between the
// source and the timeline sits the Debouncer, which decides when a raw
// sample becomes a confirmed state change.
package observe

import (
	"context"
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

// Observation is one classified sample from a source: at this instant the
// user looked like this, with this much certainty.
type Observation struct {
	// Timestamp is when the sample was taken.
	Timestamp time.Time

	// Label is the classifier's verdict for the sample.
	Label timeline.Label

	// Confidence is the classifier's certainty in [0, 1]. Samples below
	// the configured threshold are inconclusive and get dropped by the
	// Debouncer.
	Confidence float64
}

// Source yields observations at a roughly fixed cadence.
type Source interface {
	// Name returns the source identifier (e.g., "idle", "replay"),
	// used in logs.
	Name() string

	// Next blocks until the next observation is due and returns it.
	// It returns io.EOF when the stream is cleanly exhausted and
	// ctx.Err() when the context is done. Any other error means this
	// sample failed; the caller logs it and keeps reading.
	Next(ctx context.Context) (Observation, error)
}
