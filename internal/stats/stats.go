// Package stats reduces timeline snapshots into per-session aggregates.
package stats

import (
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

// AggregateStats summarizes one snapshot. Total is defined as the sum of
// all interval durations - never wall-clock elapsed time - so
// sum(PerLabel) == Total holds exactly, to the nanosecond.
type AggregateStats struct {
	PerLabel   map[timeline.Label]time.Duration
	Total      time.Duration
	FocusRatio float64
}

// Compute reduces a snapshot into aggregates. It is a pure function with
// no cached state: callers re-invoke it per report, choosing the snapshot
// instant, because the open interval keeps growing.
//
// FocusRatio is present time over total minus paused time, and 0 when
// that denominator is 0.
func Compute(snap timeline.Snapshot) AggregateStats {
	st := AggregateStats{
		PerLabel: make(map[timeline.Label]time.Duration),
	}
	for _, iv := range snap.Intervals {
		d := iv.Duration()
		st.PerLabel[iv.Label] += d
		st.Total += d
	}

	denom := st.Total - st.PerLabel[timeline.LabelPaused]
	if denom > 0 {
		st.FocusRatio = float64(st.PerLabel[timeline.LabelPresent]) / float64(denom)
	}
	return st
}

// ComputeSession reduces a session's record directly, a convenience for
// callers holding a finalized Session rather than a live Timeline.
func ComputeSession(s *timeline.Session) AggregateStats {
	return Compute(timeline.Snapshot{
		SessionID: s.ID,
		StartedAt: s.StartedAt,
		AsOf:      s.EndedAt,
		Finalized: s.Finalized(),
		Intervals: s.Intervals,
	})
}
