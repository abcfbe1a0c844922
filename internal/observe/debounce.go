package observe

import (
	"sync"

	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

// Debouncer filters momentary flickers out of the observation stream.
//
// Classifiers are noisy: a single frame can look like a phone pickup while
// the user never stopped working. A new label therefore only becomes the
// confirmed state after it has been seen in enough consecutive conclusive
// samples. Two special cases keep the filter honest:
//
//   - the first conclusive sample of a stream is confirmed immediately,
//     there is no previous state worth protecting
//   - inconclusive samples (confidence below the threshold) are ignored
//     entirely; they neither advance nor break a pending streak
type Debouncer struct {
	mu            sync.Mutex
	minSustain    int
	minConfidence float64

	confirmed    timeline.Label
	hasConfirmed bool

	// candidate is the label currently trying to displace confirmed,
	// streak counts its consecutive conclusive sightings.
	candidate timeline.Label
	streak    int
}

// NewDebouncer creates a Debouncer. minSustain is the number of consecutive
// conclusive samples a new label needs before it is confirmed; values below
// 1 are treated as 1 (confirm immediately). minConfidence is the inclusive
// floor below which a sample counts as inconclusive.
func NewDebouncer(minSustain int, minConfidence float64) *Debouncer {
	if minSustain < 1 {
		minSustain = 1
	}
	return &Debouncer{
		minSustain:    minSustain,
		minConfidence: minConfidence,
	}
}

// Observe feeds one sample through the filter. It returns the confirmed
// label and whether this very sample confirmed a change. The Debouncer
// never touches the timeline; the caller applies confirmed changes.
func (d *Debouncer) Observe(obs Observation) (timeline.Label, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if obs.Confidence < d.minConfidence {
		return d.confirmed, false
	}

	if !d.hasConfirmed {
		d.confirm(obs.Label)
		return d.confirmed, true
	}

	if obs.Label == d.confirmed {
		// The state reasserted itself; any pending challenger was a blip.
		d.candidate = ""
		d.streak = 0
		return d.confirmed, false
	}

	if obs.Label == d.candidate {
		d.streak++
	} else {
		d.candidate = obs.Label
		d.streak = 1
	}
	if d.streak >= d.minSustain {
		d.confirm(obs.Label)
		return d.confirmed, true
	}
	return d.confirmed, false
}

// Override force-sets the confirmed label, bypassing the sustain window.
// Manual pause and resume must take effect on the spot, not a few samples
// later.
func (d *Debouncer) Override(label timeline.Label) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.confirm(label)
}

// Confirmed returns the current confirmed label. The bool is false until
// the first conclusive sample has been seen.
func (d *Debouncer) Confirmed() (timeline.Label, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.confirmed, d.hasConfirmed
}

func (d *Debouncer) confirm(label timeline.Label) {
	d.confirmed = label
	d.hasConfirmed = true
	d.candidate = ""
	d.streak = 0
}
