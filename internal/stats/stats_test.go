package stats

import (
	"testing"
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

var base = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

// helper: a finalized present/away/present session, the canonical shape
func sessionTimeline(t *testing.T) *timeline.Timeline {
	t.Helper()
	tl := timeline.New()
	steps := []struct {
		label timeline.Label
		sec   int
	}{
		{timeline.LabelPresent, 0},
		{timeline.LabelAway, 10},
		{timeline.LabelPresent, 40},
	}
	if err := tl.Start(at(0)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, st := range steps {
		if err := tl.Transition(st.label, at(st.sec)); err != nil {
			t.Fatalf("Transition(%s): %v", st.label, err)
		}
	}
	return tl
}

func TestComputeFinalizedSession(t *testing.T) {
	tl := sessionTimeline(t)
	if err := tl.Finalize(at(50)); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	st := Compute(tl.Snapshot(at(50)))

	if st.Total != 50*time.Second {
		t.Errorf("Total: got %v, want 50s", st.Total)
	}
	if got := st.PerLabel[timeline.LabelPresent]; got != 20*time.Second {
		t.Errorf("present: got %v, want 20s", got)
	}
	if got := st.PerLabel[timeline.LabelAway]; got != 30*time.Second {
		t.Errorf("away: got %v, want 30s", got)
	}
	if st.FocusRatio != 0.4 {
		t.Errorf("FocusRatio: got %v, want 0.4", st.FocusRatio)
	}
}

func TestSumEqualsTotal(t *testing.T) {
	tl := sessionTimeline(t)

	// Mid-session snapshots include the open interval up to asOf.
	for _, sec := range []int{0, 7, 10, 23, 41, 45} {
		st := Compute(tl.Snapshot(at(sec)))
		var sum time.Duration
		for _, d := range st.PerLabel {
			sum += d
		}
		if sum != st.Total {
			t.Errorf("asOf=%ds: sum of per-label %v != total %v", sec, sum, st.Total)
		}
	}
}

func TestOpenIntervalGrowsBetweenComputes(t *testing.T) {
	tl := sessionTimeline(t)

	early := Compute(tl.Snapshot(at(42)))
	late := Compute(tl.Snapshot(at(48)))

	if late.Total-early.Total != 6*time.Second {
		t.Errorf("total growth: got %v, want 6s", late.Total-early.Total)
	}
	if late.PerLabel[timeline.LabelPresent]-early.PerLabel[timeline.LabelPresent] != 6*time.Second {
		t.Error("open present interval did not grow with asOf")
	}
}

func TestPausedExcludedFromFocusRatio(t *testing.T) {
	tl := timeline.New()
	if err := tl.Start(at(0)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, st := range []struct {
		label timeline.Label
		sec   int
	}{
		{timeline.LabelPresent, 0},
		{timeline.LabelPaused, 20},
		{timeline.LabelAway, 30},
	} {
		if err := tl.Transition(st.label, at(st.sec)); err != nil {
			t.Fatalf("Transition(%s): %v", st.label, err)
		}
	}
	if err := tl.Finalize(at(40)); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	st := Compute(tl.Snapshot(at(40)))

	// 20s present / (40s total - 10s paused)
	want := float64(20) / float64(30)
	if st.FocusRatio != want {
		t.Errorf("FocusRatio: got %v, want %v", st.FocusRatio, want)
	}
}

func TestZeroDenominator(t *testing.T) {
	empty := Compute(timeline.Snapshot{})
	if empty.FocusRatio != 0 || empty.Total != 0 {
		t.Errorf("empty snapshot: got ratio=%v total=%v, want zeros", empty.FocusRatio, empty.Total)
	}

	// A session that was paused throughout has denominator 0, not an error.
	tl := timeline.New()
	if err := tl.Start(at(0)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := tl.Transition(timeline.LabelPaused, at(0)); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	st := Compute(tl.Snapshot(at(30)))
	if st.FocusRatio != 0 {
		t.Errorf("all-paused FocusRatio: got %v, want 0", st.FocusRatio)
	}
	if st.Total != 30*time.Second {
		t.Errorf("all-paused Total: got %v, want 30s", st.Total)
	}
}
