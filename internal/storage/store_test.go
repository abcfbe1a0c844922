package storage

import (
	"math"
	"testing"
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/stats"
	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

var base = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

// helper: base plus n seconds
func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

// helper: a finalized 50s session with a present/away/present record
func testSession(id string, startSec int) *timeline.Session {
	start := at(startSec)
	return &timeline.Session{
		ID:        id,
		StartedAt: start,
		EndedAt:   start.Add(50 * time.Second),
		Intervals: []timeline.Interval{
			{Label: timeline.LabelPresent, Start: start, End: start.Add(10 * time.Second)},
			{Label: timeline.LabelAway, Start: start.Add(10 * time.Second), End: start.Add(40 * time.Second)},
			{Label: timeline.LabelPresent, Start: start.Add(40 * time.Second), End: start.Add(50 * time.Second)},
		},
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newStore(t)
	want := testSession("Vigil Monday 9.00 AM", 0)

	if err := s.SaveSession(want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := s.GetSession(want.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("ID = %q, want %q", got.ID, want.ID)
	}
	if !got.StartedAt.Equal(want.StartedAt) || !got.EndedAt.Equal(want.EndedAt) {
		t.Errorf("bounds = [%s, %s], want [%s, %s]",
			got.StartedAt, got.EndedAt, want.StartedAt, want.EndedAt)
	}
	if len(got.Intervals) != len(want.Intervals) {
		t.Fatalf("intervals = %d, want %d", len(got.Intervals), len(want.Intervals))
	}
	for i, iv := range got.Intervals {
		w := want.Intervals[i]
		if iv.Label != w.Label || !iv.Start.Equal(w.Start) || !iv.End.Equal(w.End) {
			t.Errorf("interval %d = {%s %s %s}, want {%s %s %s}",
				i, iv.Label, iv.Start, iv.End, w.Label, w.Start, w.End)
		}
	}
}

func TestSaveTimelineSession(t *testing.T) {
	s := newStore(t)

	tl := timeline.New()
	if err := tl.Start(at(0)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, step := range []struct {
		label timeline.Label
		sec   int
	}{
		{timeline.LabelPresent, 0},
		{timeline.LabelGadgetSuspected, 12},
		{timeline.LabelPresent, 18},
	} {
		if err := tl.Transition(step.label, at(step.sec)); err != nil {
			t.Fatalf("Transition(%s): %v", step.label, err)
		}
	}
	if err := tl.Finalize(at(30)); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	sess, err := tl.FinalizedSession()
	if err != nil {
		t.Fatalf("FinalizedSession: %v", err)
	}

	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}

	// The reloaded record reduces to the same aggregates.
	st := stats.ComputeSession(got)
	if st.Total != 30*time.Second {
		t.Errorf("Total = %s, want 30s", st.Total)
	}
	if st.PerLabel[timeline.LabelGadgetSuspected] != 6*time.Second {
		t.Errorf("gadget time = %s, want 6s", st.PerLabel[timeline.LabelGadgetSuspected])
	}
}

func TestSaveRejectsOpenSession(t *testing.T) {
	s := newStore(t)

	open := &timeline.Session{ID: "open", StartedAt: at(0)}
	if err := s.SaveSession(open); err == nil {
		t.Fatal("SaveSession accepted a session without an end time")
	}
}

func TestSaveDuplicateID(t *testing.T) {
	s := newStore(t)
	sess := testSession("dup", 0)

	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("first SaveSession: %v", err)
	}
	if err := s.SaveSession(sess); err == nil {
		t.Fatal("second SaveSession with the same ID should error")
	}
}

func TestGetSessionMissing(t *testing.T) {
	s := newStore(t)
	if _, err := s.GetSession("nope"); err == nil {
		t.Fatal("GetSession on a missing ID should error")
	}
}

func TestListSessionsNewestFirst(t *testing.T) {
	s := newStore(t)

	if err := s.SaveSession(testSession("older", 0)); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := s.SaveSession(testSession("newer", 3600)); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	list, err := s.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != "newer" || list[1].ID != "older" {
		t.Errorf("order = [%s, %s], want [newer, older]", list[0].ID, list[1].ID)
	}
	if list[0].Total != 50*time.Second {
		t.Errorf("Total = %s, want 50s", list[0].Total)
	}

	limited, err := s.ListSessions(1)
	if err != nil {
		t.Fatalf("ListSessions(1): %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "newer" {
		t.Errorf("limit 1 = %v, want just the newest", limited)
	}
}

func TestStatColumnsExcludePaused(t *testing.T) {
	s := newStore(t)

	start := at(0)
	sess := &timeline.Session{
		ID:        "with-pause",
		StartedAt: start,
		EndedAt:   start.Add(50 * time.Second),
		Intervals: []timeline.Interval{
			{Label: timeline.LabelPresent, Start: start, End: start.Add(20 * time.Second)},
			{Label: timeline.LabelPaused, Start: start.Add(20 * time.Second), End: start.Add(30 * time.Second)},
			{Label: timeline.LabelAway, Start: start.Add(30 * time.Second), End: start.Add(50 * time.Second)},
		},
	}
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	list, err := s.ListSessions(1)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	// 20s present over 40s unpaused time.
	if math.Abs(list[0].FocusRatio-0.5) > 1e-9 {
		t.Errorf("FocusRatio = %g, want 0.5", list[0].FocusRatio)
	}
}

func TestTotals(t *testing.T) {
	s := newStore(t)

	if err := s.SaveSession(testSession("a", 0)); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := s.SaveSession(testSession("b", 3600)); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	totals, err := s.Totals()
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Sessions != 2 {
		t.Errorf("Sessions = %d, want 2", totals.Sessions)
	}
	if totals.TrackedTime != 100*time.Second {
		t.Errorf("TrackedTime = %s, want 100s", totals.TrackedTime)
	}
	if totals.PresentTime != 40*time.Second {
		t.Errorf("PresentTime = %s, want 40s", totals.PresentTime)
	}
	if math.Abs(totals.AvgFocusRatio-0.4) > 1e-9 {
		t.Errorf("AvgFocusRatio = %g, want 0.4", totals.AvgFocusRatio)
	}
}

func TestTotalsEmptyStore(t *testing.T) {
	s := newStore(t)

	totals, err := s.Totals()
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Sessions != 0 || totals.TrackedTime != 0 {
		t.Errorf("empty store totals = %+v, want zeros", totals)
	}
}
