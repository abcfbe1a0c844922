package main

import (
	"fmt"
	"io"
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/stats"
	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
)

// printSession renders one session's breakdown: the time span, per-label
// durations, and the focus ratio.
func printSession(w io.Writer, sess *timeline.Session, st stats.AggregateStats) {
	fmt.Fprintf(w, "\n%s\n", sess.ID)
	fmt.Fprintf(w, "  %s - %s (%s)\n",
		sess.StartedAt.Local().Format("Mon Jan 2 15:04:05"),
		sess.EndedAt.Local().Format("15:04:05"),
		sess.Duration().Round(time.Second))

	for _, label := range timeline.Labels() {
		d := st.PerLabel[label]
		if d == 0 {
			continue
		}
		share := 0.0
		if st.Total > 0 {
			share = float64(d) / float64(st.Total) * 100
		}
		fmt.Fprintf(w, "  %-20s %10s  %5.1f%%\n", label, d.Round(time.Second), share)
	}

	fmt.Fprintf(w, "  %-20s %10s\n", "total", st.Total.Round(time.Second))
	fmt.Fprintf(w, "  focus ratio: %.1f%%\n", st.FocusRatio*100)
}
