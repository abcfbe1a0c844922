package observe

import (
	"testing"
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

var base = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

// helper: a conclusive sample
func sure(label timeline.Label) Observation {
	return Observation{Timestamp: base, Label: label, Confidence: 0.9}
}

// helper: an inconclusive sample
func vague(label timeline.Label) Observation {
	return Observation{Timestamp: base, Label: label, Confidence: 0.3}
}

// --- Confirmation rules ---

func TestFirstConclusiveSampleConfirmsImmediately(t *testing.T) {
	d := NewDebouncer(2, 0.6)

	if _, ok := d.Confirmed(); ok {
		t.Fatal("Confirmed() reports a label before any sample")
	}

	label, changed := d.Observe(sure(timeline.LabelPresent))
	if !changed {
		t.Error("first conclusive sample did not confirm")
	}
	if label != timeline.LabelPresent {
		t.Errorf("confirmed label = %q, want %q", label, timeline.LabelPresent)
	}
}

func TestFirstInconclusiveSampleIsIgnored(t *testing.T) {
	d := NewDebouncer(2, 0.6)

	if _, changed := d.Observe(vague(timeline.LabelAway)); changed {
		t.Error("inconclusive sample confirmed a label")
	}
	if _, ok := d.Confirmed(); ok {
		t.Error("Confirmed() reports a label after only inconclusive samples")
	}

	// The first conclusive sample still gets the immediate treatment.
	if _, changed := d.Observe(sure(timeline.LabelPresent)); !changed {
		t.Error("conclusive sample after inconclusive ones did not confirm")
	}
}

func TestSustainWindow(t *testing.T) {
	d := NewDebouncer(2, 0.6)
	d.Observe(sure(timeline.LabelPresent))

	if _, changed := d.Observe(sure(timeline.LabelAway)); changed {
		t.Error("single away sample confirmed with sustain window of 2")
	}
	label, changed := d.Observe(sure(timeline.LabelAway))
	if !changed {
		t.Error("second consecutive away sample did not confirm")
	}
	if label != timeline.LabelAway {
		t.Errorf("confirmed label = %q, want %q", label, timeline.LabelAway)
	}
}

// --- Flicker suppression ---

func TestSingleFlickerSuppressed(t *testing.T) {
	d := NewDebouncer(2, 0.6)

	seq := []timeline.Label{
		timeline.LabelPresent,
		timeline.LabelGadgetSuspected, // one bad frame
		timeline.LabelPresent,
		timeline.LabelPresent,
	}
	var changes int
	for _, l := range seq {
		if _, changed := d.Observe(sure(l)); changed {
			changes++
		}
	}

	if changes != 1 {
		t.Errorf("confirmed changes = %d, want 1 (the initial present)", changes)
	}
	if label, _ := d.Confirmed(); label != timeline.LabelPresent {
		t.Errorf("confirmed label = %q, want %q", label, timeline.LabelPresent)
	}
}

func TestReassertClearsCandidate(t *testing.T) {
	d := NewDebouncer(2, 0.6)
	d.Observe(sure(timeline.LabelPresent))

	// away, present, away, away: the streak restarts after the reassert,
	// so only the final pair confirms.
	d.Observe(sure(timeline.LabelAway))
	d.Observe(sure(timeline.LabelPresent))
	if _, changed := d.Observe(sure(timeline.LabelAway)); changed {
		t.Error("away confirmed after its streak was broken")
	}
	if _, changed := d.Observe(sure(timeline.LabelAway)); !changed {
		t.Error("sustained away did not confirm")
	}
}

func TestCandidateSwitchRestartsStreak(t *testing.T) {
	d := NewDebouncer(3, 0.6)
	d.Observe(sure(timeline.LabelPresent))

	d.Observe(sure(timeline.LabelAway))
	d.Observe(sure(timeline.LabelAway))
	// A different challenger appears before away is sustained.
	if _, changed := d.Observe(sure(timeline.LabelGadgetSuspected)); changed {
		t.Error("gadget_suspected confirmed on its first sample")
	}
	d.Observe(sure(timeline.LabelGadgetSuspected))
	label, changed := d.Observe(sure(timeline.LabelGadgetSuspected))
	if !changed || label != timeline.LabelGadgetSuspected {
		t.Errorf("got (%q, %t), want gadget_suspected confirmed on its third sample", label, changed)
	}
}

func TestInconclusiveDoesNotBreakStreak(t *testing.T) {
	d := NewDebouncer(2, 0.6)
	d.Observe(sure(timeline.LabelPresent))

	d.Observe(sure(timeline.LabelAway))
	if _, changed := d.Observe(vague(timeline.LabelPresent)); changed {
		t.Error("inconclusive sample confirmed a label")
	}
	// The away streak is still alive: this sample is its second.
	if _, changed := d.Observe(sure(timeline.LabelAway)); !changed {
		t.Error("away streak did not survive an inconclusive sample")
	}
}

// --- Manual override ---

func TestOverrideBypassesSustain(t *testing.T) {
	d := NewDebouncer(3, 0.6)
	d.Observe(sure(timeline.LabelPresent))

	d.Override(timeline.LabelPaused)
	if label, _ := d.Confirmed(); label != timeline.LabelPaused {
		t.Fatalf("confirmed label after Override = %q, want %q", label, timeline.LabelPaused)
	}

	// Matching samples are no-ops, displacing it takes a full streak.
	if _, changed := d.Observe(sure(timeline.LabelPaused)); changed {
		t.Error("sample matching the override counted as a change")
	}
	d.Observe(sure(timeline.LabelPresent))
	d.Observe(sure(timeline.LabelPresent))
	if _, changed := d.Observe(sure(timeline.LabelPresent)); !changed {
		t.Error("sustained present did not displace the override")
	}
}
