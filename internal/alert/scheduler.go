// Package alert watches the timeline for sustained unfocused time and
// fires staged alerts.
//
// The Scheduler is deliberately dumb about observations: it never sees
// them. On every tick it takes a timeline snapshot, derives the trailing
// run of unfocused intervals, and compares the run's age against its
// thresholds. Deriving the streak from the snapshot (instead of keeping a
// private counter) means the scheduler can never disagree with the record
// it alerts about.
package alert

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/platform"
	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

// Phase is where the scheduler sits in its streak state machine.
type Phase string

const (
	// PhaseIdle: the trailing label is focused (or there is no session);
	// nothing is accumulating.
	PhaseIdle Phase = "idle"

	// PhaseAccumulating: an unfocused run is live and thresholds are
	// still ahead of it.
	PhaseAccumulating Phase = "accumulating"

	// PhaseExhausted: every stage has fired for the current run; alerts
	// are suppressed until the streak resets.
	PhaseExhausted Phase = "exhausted"
)

// State is a copy of the scheduler's counters, for status display and tests.
type State struct {
	Phase                Phase
	ConsecutiveUnfocused time.Duration
	NextThreshold        int
	LastResetAt          time.Time
}

// Config wires a Scheduler.
type Config struct {
	// Thresholds are the consecutive-unfocused durations at which the
	// stages fire, in ascending order. Stage i fires once per streak,
	// when the streak's age reaches Thresholds[i].
	Thresholds []time.Duration

	// Unfocused is the label set that accumulates toward the thresholds.
	// Labels outside the set (present, paused) reset the streak.
	Unfocused map[timeline.Label]bool

	// TickEvery is the wall-clock evaluation interval. Defaults to 1s.
	TickEvery time.Duration

	// Clock supplies the tick timestamps. Defaults to the system clock.
	Clock platform.Clock

	// OnAlert receives (stage, label) for every stage that fires. It is
	// called outside the scheduler's lock and should not block for long.
	OnAlert func(stage int, label timeline.Label)
}

// DefaultUnfocused returns the label set that counts as unfocused.
func DefaultUnfocused() map[timeline.Label]bool {
	return map[timeline.Label]bool{
		timeline.LabelAway:              true,
		timeline.LabelGadgetSuspected:   true,
		timeline.LabelScreenDistraction: true,
	}
}

// Scheduler fires staged alerts after sustained unfocused time. It only
// ever reads timeline snapshots; mutation stays with the timeline's writer.
type Scheduler struct {
	cfg Config
	tl  *timeline.Timeline

	mu          sync.Mutex
	phase       Phase
	streakStart time.Time // identity of the run being tracked
	next        int       // index of the next threshold to fire
	lastReset   time.Time
}

// NewScheduler creates a Scheduler reading from the given timeline.
func NewScheduler(cfg Config, tl *timeline.Timeline) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = platform.SystemClock{}
	}
	if cfg.TickEvery <= 0 {
		cfg.TickEvery = time.Second
	}
	if cfg.Unfocused == nil {
		cfg.Unfocused = DefaultUnfocused()
	}
	return &Scheduler{cfg: cfg, tl: tl, phase: PhaseIdle}
}

// Run evaluates the timeline on the configured interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickEvery)
	defer ticker.Stop()

	log.Printf("[alert] Starting scheduler (tick: %s, thresholds: %v)", s.cfg.TickEvery, s.cfg.Thresholds)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[alert] Stopping scheduler")
			return
		case <-ticker.C:
			s.Tick(s.cfg.Clock.Now())
		}
	}
}

// Tick evaluates the timeline as of the given instant. It is exported so
// tests (and anything else that owns time) can drive the scheduler
// directly instead of waiting on the ticker.
func (s *Scheduler) Tick(now time.Time) {
	snap := s.tl.Snapshot(now)

	type firing struct {
		stage int
		label timeline.Label
	}
	var fire []firing

	s.mu.Lock()
	start, label, live := trailingUnfocused(snap, s.cfg.Unfocused)
	switch {
	case !live:
		if s.phase != PhaseIdle {
			s.phase = PhaseIdle
			s.streakStart = time.Time{}
			s.next = 0
			s.lastReset = now
		}
	case !start.Equal(s.streakStart):
		// A different run than the one we were tracking: restart from
		// stage 0 no matter what already fired.
		s.phase = PhaseAccumulating
		s.streakStart = start
		s.next = 0
	}

	if s.phase == PhaseAccumulating {
		elapsed := now.Sub(s.streakStart)
		// A late tick can straddle several thresholds; fire each stage
		// in order rather than skipping ahead.
		for s.next < len(s.cfg.Thresholds) && elapsed >= s.cfg.Thresholds[s.next] {
			fire = append(fire, firing{stage: s.next, label: label})
			s.next++
		}
		if s.next >= len(s.cfg.Thresholds) {
			s.phase = PhaseExhausted
		}
	}
	s.mu.Unlock()

	for _, f := range fire {
		log.Printf("[alert] Stage %d fired after %s of %s", f.stage+1, s.cfg.Thresholds[f.stage], f.label)
		if s.cfg.OnAlert != nil {
			s.cfg.OnAlert(f.stage, f.label)
		}
	}
}

// State returns a copy of the current counters. ConsecutiveUnfocused is
// measured against the scheduler's clock at the moment of the call.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Phase:         s.phase,
		NextThreshold: s.next,
		LastResetAt:   s.lastReset,
	}
	if s.phase != PhaseIdle {
		st.ConsecutiveUnfocused = s.cfg.Clock.Now().Sub(s.streakStart)
	}
	return st
}

// trailingUnfocused finds the contiguous suffix of unfocused intervals in
// the snapshot. It returns the suffix's start, the label of its newest
// interval, and whether such a suffix exists. Label changes inside the
// unfocused set do not break the run; a finalized session never counts as
// a live run.
func trailingUnfocused(snap timeline.Snapshot, unfocused map[timeline.Label]bool) (time.Time, timeline.Label, bool) {
	if snap.Empty() || snap.Finalized {
		return time.Time{}, "", false
	}
	ivs := snap.Intervals
	if len(ivs) == 0 || !unfocused[ivs[len(ivs)-1].Label] {
		return time.Time{}, "", false
	}

	start := ivs[len(ivs)-1].Start
	for i := len(ivs) - 2; i >= 0 && unfocused[ivs[i].Label]; i-- {
		start = ivs[i].Start
	}
	return start, ivs[len(ivs)-1].Label, true
}
