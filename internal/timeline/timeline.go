// Package timeline owns the interval record of a single focus session.
//
// A Timeline records exactly one session: Start opens it, Transition closes
// the currently open interval and begins the next, Finalize seals it.
// Intervals are contiguous by construction - the end of one interval is the
// start of the next - so summed durations always account for the whole
// session. Every other component reads the record through Snapshot copies;
// the Timeline is the only writer.
package timeline

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Label classifies what the user was doing during an interval.
// Exactly one label is active at any instant of an open session.
type Label string

const (
	LabelPresent           Label = "present"
	LabelAway              Label = "away"
	LabelGadgetSuspected   Label = "gadget_suspected"
	LabelScreenDistraction Label = "screen_distraction"
	LabelPaused            Label = "paused"
)

// Labels returns every known label.
func Labels() []Label {
	return []Label{
		LabelPresent,
		LabelAway,
		LabelGadgetSuspected,
		LabelScreenDistraction,
		LabelPaused,
	}
}

// Valid reports whether l is one of the known labels.
func (l Label) Valid() bool {
	switch l {
	case LabelPresent, LabelAway, LabelGadgetSuspected, LabelScreenDistraction, LabelPaused:
		return true
	}
	return false
}

var (
	// ErrAlreadyStarted is returned by Start when this timeline already
	// holds a session (open or finalized).
	ErrAlreadyStarted = errors.New("session already started")

	// ErrNotStarted is returned when an operation needs an open session
	// and there is none.
	ErrNotStarted = errors.New("no open session")

	// ErrInvalidTransition is returned for timestamps that would break
	// interval ordering. The caller should drop the observation and
	// continue; the timeline is left untouched.
	ErrInvalidTransition = errors.New("invalid transition")
)

// Interval is a span of time with one confirmed label.
// End is the zero time while the interval is open.
type Interval struct {
	Label Label
	Start time.Time
	End   time.Time
}

// Open reports whether the interval has not been closed yet.
func (iv Interval) Open() bool {
	return iv.End.IsZero()
}

// Duration returns the interval's length, or 0 for an open interval.
func (iv Interval) Duration() time.Duration {
	if iv.Open() {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

// Session is one tracked sitting. EndedAt is the zero time until the
// session is finalized.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Intervals []Interval
}

// Finalized reports whether the session has been sealed.
func (s *Session) Finalized() bool {
	return !s.EndedAt.IsZero()
}

// Duration returns the session's total span, or 0 if not yet finalized.
func (s *Session) Duration() time.Duration {
	if !s.Finalized() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Snapshot is an immutable point-in-time copy of the timeline. If the
// session had an open interval it appears here closed synthetically at
// AsOf, so every interval in a snapshot has a definite duration.
type Snapshot struct {
	SessionID string
	StartedAt time.Time
	AsOf      time.Time
	Finalized bool
	Intervals []Interval
}

// Empty reports whether the snapshot was taken before any session started.
func (sn Snapshot) Empty() bool {
	return sn.StartedAt.IsZero()
}

// Timeline is the single-writer owner of the current session. All methods
// are safe for concurrent use; mutation and snapshotting happen under the
// same lock, so readers never observe a half-applied transition.
type Timeline struct {
	mu      sync.Mutex
	session *Session
	sealed  bool

	// lastAt is the timestamp of the last accepted event. Observations
	// must not move backwards relative to it.
	lastAt time.Time
}

// New creates an empty timeline with no session.
func New() *Timeline {
	return &Timeline{}
}

// Start opens the session at the given instant.
func (t *Timeline) Start(at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		return ErrAlreadyStarted
	}
	t.session = &Session{
		ID:        newSessionID(at),
		StartedAt: at,
	}
	t.lastAt = at
	return nil
}

// Transition confirms a new label at the given instant: the open interval
// is closed at `at` and a new open interval begins there. Re-confirming
// the label of the open interval is a no-op. The very first transition
// anchors its interval to the session's StartedAt so the record stays
// contiguous with the session bounds.
func (t *Timeline) Transition(label Label, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil || t.sealed {
		return ErrNotStarted
	}
	s := t.session

	if len(s.Intervals) == 0 {
		if at.Before(s.StartedAt) {
			return fmt.Errorf("%w: %s is before session start %s",
				ErrInvalidTransition, at.Format(time.RFC3339), s.StartedAt.Format(time.RFC3339))
		}
		s.Intervals = append(s.Intervals, Interval{Label: label, Start: s.StartedAt})
		t.lastAt = at
		return nil
	}

	open := &s.Intervals[len(s.Intervals)-1]
	if label == open.Label {
		return nil
	}
	if at.Before(t.lastAt) || !at.After(open.Start) {
		return fmt.Errorf("%w: %s does not advance past %s",
			ErrInvalidTransition, at.Format(time.RFC3339), t.lastAt.Format(time.RFC3339))
	}

	open.End = at
	s.Intervals = append(s.Intervals, Interval{Label: label, Start: at})
	t.lastAt = at
	return nil
}

// Finalize closes the open interval at the given instant and seals the
// session. A sealed session is immutable; further mutations return
// ErrNotStarted.
func (t *Timeline) Finalize(at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil || t.sealed {
		return ErrNotStarted
	}
	s := t.session

	if len(s.Intervals) > 0 {
		open := &s.Intervals[len(s.Intervals)-1]
		if at.Before(t.lastAt) || !at.After(open.Start) {
			return fmt.Errorf("%w: finalize at %s does not advance past %s",
				ErrInvalidTransition, at.Format(time.RFC3339), t.lastAt.Format(time.RFC3339))
		}
		open.End = at
	} else if at.Before(s.StartedAt) {
		return fmt.Errorf("%w: finalize at %s is before session start",
			ErrInvalidTransition, at.Format(time.RFC3339))
	}

	s.EndedAt = at
	t.lastAt = at
	t.sealed = true
	return nil
}

// Snapshot returns an immutable copy of the record evaluated at asOf.
// The open interval, if any, is closed synthetically at asOf; an asOf at
// or before the interval's own start yields a zero-length tail. Before
// Start it returns an empty snapshot, after Finalize the final record.
func (t *Timeline) Snapshot(asOf time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		return Snapshot{AsOf: asOf}
	}
	s := t.session

	snap := Snapshot{
		SessionID: s.ID,
		StartedAt: s.StartedAt,
		AsOf:      asOf,
		Finalized: t.sealed,
		Intervals: make([]Interval, len(s.Intervals)),
	}
	copy(snap.Intervals, s.Intervals)

	if !t.sealed && len(snap.Intervals) > 0 {
		open := &snap.Intervals[len(snap.Intervals)-1]
		if open.Open() {
			end := asOf
			if end.Before(open.Start) {
				end = open.Start
			}
			open.End = end
		}
	}
	return snap
}

// Started reports whether a session has been opened on this timeline.
func (t *Timeline) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session != nil
}

// Finalized reports whether the session has been sealed.
func (t *Timeline) Finalized() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sealed
}

// FinalizedSession returns a copy of the sealed session, or ErrNotStarted
// while the session is still open (or never started).
func (t *Timeline) FinalizedSession() (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil || !t.sealed {
		return nil, ErrNotStarted
	}
	cp := *t.session
	cp.Intervals = append([]Interval(nil), t.session.Intervals...)
	return &cp, nil
}

// newSessionID builds a human-readable session name like
// "Vigil Monday 2.45 PM".
func newSessionID(at time.Time) string {
	return "Vigil " + at.Format("Monday 3.04 PM")
}
