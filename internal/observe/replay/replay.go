// Package replay plays observations back from a JSONL script.
//
// Each line describes a stretch of classifier output: the label, its
// confidence, and how long it holds:
//
//	{"label": "present", "confidence": 0.95, "hold_seconds": 30}
//	{"label": "away", "confidence": 0.9, "hold_seconds": 25}
//
// The source emits one observation per cadence tick, stamped from the
// injected clock, until the hold elapses, then moves to the next line.
// It stands in for a live classifier during development and demos.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/observe"
	"github.com/Atharva-Kanherkar/vigil/internal/platform"
	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

// entry is one parsed script line.
type entry struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	HoldSeconds float64 `json:"hold_seconds"`
}

// Source replays a script as an observation stream.
type Source struct {
	clock   platform.Clock
	cadence time.Duration

	entries []entry
	idx     int
	held    time.Duration // how much of the current entry has been emitted
	started bool
}

// New parses the script at path. cadence is the spacing between emitted
// observations. The whole script is validated up front; a typo on line 40
// should fail the start, not the fortieth sample.
func New(path string, cadence time.Duration, clock platform.Clock) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay script: %w", err)
	}
	defer f.Close()

	var entries []entry
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var e entry
		if err := json.Unmarshal([]byte(text), &e); err != nil {
			return nil, fmt.Errorf("replay script line %d: %w", line, err)
		}
		if !timeline.Label(e.Label).Valid() {
			return nil, fmt.Errorf("replay script line %d: unknown label %q", line, e.Label)
		}
		if e.HoldSeconds <= 0 {
			return nil, fmt.Errorf("replay script line %d: hold_seconds must be positive", line)
		}
		if e.Confidence == 0 {
			// Omitted confidence means fully conclusive.
			e.Confidence = 1
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read replay script: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("replay script %s has no entries", path)
	}

	if clock == nil {
		clock = platform.SystemClock{}
	}
	if cadence <= 0 {
		cadence = 3 * time.Second
	}
	return &Source{clock: clock, cadence: cadence, entries: entries}, nil
}

// Name returns the source identifier.
func (s *Source) Name() string { return "replay" }

// Next emits the next scripted observation, pacing itself on the cadence.
// The first call returns immediately.
func (s *Source) Next(ctx context.Context) (observe.Observation, error) {
	if s.idx >= len(s.entries) {
		return observe.Observation{}, io.EOF
	}

	if s.started {
		timer := time.NewTimer(s.cadence)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return observe.Observation{}, ctx.Err()
		case <-timer.C:
		}
	}
	s.started = true

	e := s.entries[s.idx]
	obs := observe.Observation{
		Timestamp:  s.clock.Now(),
		Label:      timeline.Label(e.Label),
		Confidence: e.Confidence,
	}

	s.held += s.cadence
	if s.held >= time.Duration(e.HoldSeconds*float64(time.Second)) {
		s.idx++
		s.held = 0
	}
	return obs, nil
}
