// Package idle infers presence from desktop input activity.
//
// Wayland compositors don't hand out keystrokes, and we wouldn't want them
// anyway. What we can read cheaply is the cursor position and the focused
// window; whenever either changes, the user just touched the machine. No
// change for longer than the configured window means away.
//
// This is a two-label classifier: present or away. It never reports gadget
// or screen distraction, those need a richer signal than this probe has.
package idle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/observe"
	"github.com/Atharva-Kanherkar/vigil/internal/platform"
	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

// Source probes cursor and window state on a fixed cadence.
type Source struct {
	plat      *platform.Platform
	clock     platform.Clock
	cadence   time.Duration
	idleAfter time.Duration

	lastX, lastY int
	lastWindow   string
	lastActivity time.Time
	started      bool
}

// New creates the probe. idleAfter is how long without input counts as away.
func New(plat *platform.Platform, clock platform.Clock, cadence, idleAfter time.Duration) *Source {
	if clock == nil {
		clock = platform.SystemClock{}
	}
	if cadence <= 0 {
		cadence = 3 * time.Second
	}
	if idleAfter <= 0 {
		idleAfter = 30 * time.Second
	}
	return &Source{
		plat:      plat,
		clock:     clock,
		cadence:   cadence,
		idleAfter: idleAfter,
		// Starting the tracker counts as activity.
		lastActivity: clock.Now(),
	}
}

// Name returns the source identifier.
func (s *Source) Name() string { return "idle" }

// Available reports whether the platform exposes the signals we probe.
func (s *Source) Available() bool {
	return s.plat.CanProbeActivity()
}

// Next waits one cadence, probes the desktop, and classifies. The first
// call probes immediately.
func (s *Source) Next(ctx context.Context) (observe.Observation, error) {
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

	now := s.clock.Now()
	if s.sawActivity() {
		s.lastActivity = now
	}

	label, confidence := s.classify(now.Sub(s.lastActivity))
	return observe.Observation{Timestamp: now, Label: label, Confidence: confidence}, nil
}

// sawActivity reports whether the cursor or the focused window changed
// since the last probe. Probe failures count as no activity; a dead
// compositor looks the same as an idle user.
func (s *Source) sawActivity() bool {
	active := false

	if out, err := s.plat.CursorPos(); err == nil {
		if x, y, ok := parseCursor(s.plat.DisplayServer, out); ok {
			if x != s.lastX || y != s.lastY {
				s.lastX, s.lastY = x, y
				active = true
			}
		}
	}

	if out, err := s.plat.ActiveWindow(); err == nil {
		if win := parseWindow(s.plat.DisplayServer, out); win != "" && win != s.lastWindow {
			s.lastWindow = win
			active = true
		}
	}

	return active
}

// classify maps an idle duration to a label. Samples near the boundary get
// a lower confidence so the debouncer can discard them.
func (s *Source) classify(idle time.Duration) (timeline.Label, float64) {
	label := timeline.LabelPresent
	if idle >= s.idleAfter {
		label = timeline.LabelAway
	}

	confidence := 0.95
	if ratio := float64(idle) / float64(s.idleAfter); ratio > 0.75 && ratio < 1.25 {
		confidence = 0.7
	}
	return label, confidence
}

// parseCursor handles both probe formats: hyprctl's JSON and xdotool's
// shell-style KEY=VALUE lines.
func parseCursor(server platform.DisplayServer, out []byte) (int, int, bool) {
	switch server {
	case platform.DisplayServerHyprland:
		var pos struct {
			X int `json:"x"`
			Y int `json:"y"`
		}
		if err := json.Unmarshal(out, &pos); err != nil {
			return 0, 0, false
		}
		return pos.X, pos.Y, true

	case platform.DisplayServerX11:
		var x, y int
		foundX, foundY := false, false
		for _, line := range strings.Split(string(out), "\n") {
			line = strings.TrimSpace(line)
			if v, ok := strings.CutPrefix(line, "X="); ok {
				if _, err := fmt.Sscanf(v, "%d", &x); err == nil {
					foundX = true
				}
			}
			if v, ok := strings.CutPrefix(line, "Y="); ok {
				if _, err := fmt.Sscanf(v, "%d", &y); err == nil {
					foundY = true
				}
			}
		}
		if !foundX || !foundY {
			return 0, 0, false
		}
		return x, y, true
	}
	return 0, 0, false
}

// parseWindow extracts a stable identity for the focused window. The
// address (Hyprland) or window id (X11) is enough; we compare it against
// the previous probe, never display it.
func parseWindow(server platform.DisplayServer, out []byte) string {
	switch server {
	case platform.DisplayServerHyprland:
		var win struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(out, &win); err != nil {
			return ""
		}
		return win.Address

	case platform.DisplayServerX11:
		return strings.TrimSpace(string(out))
	}
	return ""
}
