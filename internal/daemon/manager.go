// Package daemon wires the tracking pipeline together.
//
// One Manager owns one session front to back:
//
//	source -> debouncer -> timeline <- scheduler -> notifications
//
// The observe loop pulls samples from the source and applies confirmed
// label changes to the timeline; the alert scheduler reads timeline
// snapshots on its own tick. The two only meet at the timeline, which is
// why neither needs to know the other exists. When the session ends (the
// source runs dry, the allowance runs out, or Stop is called) the Manager
// finalizes the record, charges the usage meter, and saves it.
package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Atharva-Kanherkar/vigil/internal/alert"
	"github.com/Atharva-Kanherkar/vigil/internal/config"
	"github.com/Atharva-Kanherkar/vigil/internal/notify"
	"github.com/Atharva-Kanherkar/vigil/internal/observe"
	"github.com/Atharva-Kanherkar/vigil/internal/platform"
	"github.com/Atharva-Kanherkar/vigil/internal/stats"
	"github.com/Atharva-Kanherkar/vigil/internal/storage"
	"github.com/Atharva-Kanherkar/vigil/internal/timeline"
	"github.com/Atharva-Kanherkar/vigil/internal/usage"
)

// Manager runs one tracking session.
type Manager struct {
	cfg   *config.Config
	clock platform.Clock

	source   observe.Source
	store    *storage.Store // nil = don't persist
	meter    *usage.Tracker // nil = unmetered
	notifier *notify.DesktopNotifier

	deb    *observe.Debouncer
	tl     *timeline.Timeline
	sched  *alert.Scheduler
	status *notify.StatusServer

	// allowance caps this session's length. Set once in Start, from the
	// meter's remaining time and the configured per-session maximum.
	allowance time.Duration

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	startedAt time.Time // when the session opened
	lastTS    time.Time // timestamp of the last accepted observation

	finalizeOnce sync.Once
}

// NewManager assembles the pipeline. store and meter may be nil; the
// session then runs without persistence or metering.
func NewManager(cfg *config.Config, clock platform.Clock, source observe.Source, store *storage.Store, meter *usage.Tracker) *Manager {
	if clock == nil {
		clock = platform.SystemClock{}
	}

	m := &Manager{
		cfg:    cfg,
		clock:  clock,
		source: source,
		store:  store,
		meter:  meter,
		deb:    observe.NewDebouncer(cfg.MinSustainSamples, cfg.ConfidenceThreshold),
		tl:     timeline.New(),
	}

	if cfg.DesktopNotifications {
		m.notifier = notify.NewDesktopNotifier()
		if !m.notifier.Available() {
			log.Println("[notify] notify-send not found - alerts will be log-only")
		}
	}

	m.sched = alert.NewScheduler(alert.Config{
		Thresholds: cfg.Thresholds(),
		Unfocused:  cfg.UnfocusedSet(),
		TickEvery:  cfg.Tick(),
		Clock:      clock,
		OnAlert:    m.fireAlert,
	}, m.tl)

	return m
}

// Start checks the allowance and launches the observe and alert loops.
// It returns usage.ErrExhausted when no tracked time is left.
func (m *Manager) Start(ctx context.Context) error {
	if m.meter != nil && !m.meter.Unlimited() {
		remaining := m.meter.Remaining()
		if remaining <= 0 {
			return usage.ErrExhausted
		}
		m.allowance = remaining
	}
	if max := m.cfg.MaxSession(); max > 0 && (m.allowance == 0 || max < m.allowance) {
		m.allowance = max
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	log.Printf("Starting focus tracker (source: %s, cadence: %s)", m.source.Name(), m.cfg.Cadence())
	if m.allowance > 0 {
		log.Printf("[usage] Session allowance: %s", m.allowance)
	}

	m.wg.Add(2)
	go m.runObserveLoop()
	go func() {
		defer m.wg.Done()
		m.sched.Run(m.ctx)
	}()
	return nil
}

// ServeStatus publishes live session state on a Unix socket, for status
// bars and `vigil status`. Call it after Start; failures here never block
// tracking, the caller just logs them.
func (m *Manager) ServeStatus(path string) error {
	if m.ctx == nil {
		return errors.New("manager not started")
	}

	srv := notify.NewStatusServer(path)
	if err := srv.Start(); err != nil {
		return err
	}
	m.status = srv

	m.wg.Add(1)
	go m.runStatusLoop()
	log.Printf("[status] Publishing on %s", path)
	return nil
}

func (m *Manager) runStatusLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.publishStatus()
		}
	}
}

func (m *Manager) publishStatus() {
	now := m.clock.Now()
	snap := m.tl.Snapshot(now)
	st := stats.Compute(snap)
	as := m.sched.State()

	status := notify.Status{
		SessionID:        snap.SessionID,
		Phase:            string(as.Phase),
		UnfocusedSeconds: int(as.ConsecutiveUnfocused / time.Second),
		TrackedSeconds:   int(st.Total / time.Second),
		FocusRatio:       st.FocusRatio,
		Finalized:        snap.Finalized,
		UpdatedAt:        now,
	}
	if n := len(snap.Intervals); n > 0 {
		status.Label = string(snap.Intervals[n-1].Label)
	}
	m.status.Publish(status)
}

// Stop finalizes the session and waits for the loops to wind down. It is
// safe to call more than once.
func (m *Manager) Stop() {
	log.Println("Stopping focus tracker...")
	m.finalize(time.Time{})
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	if m.status != nil {
		m.status.Stop()
	}
	log.Println("Focus tracker stopped")
}

// Done is closed once the manager has shut down: source exhausted,
// allowance consumed, or Stop called.
func (m *Manager) Done() <-chan struct{} {
	if m.ctx == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return m.ctx.Done()
}

// runObserveLoop pulls observations from the source until it is exhausted
// or the context ends. Probe errors are logged and skipped; one bad sample
// must not kill the session.
func (m *Manager) runObserveLoop() {
	defer m.wg.Done()

	log.Printf("[observe] Starting %s loop", m.source.Name())
	for {
		obs, err := m.source.Next(m.ctx)
		if errors.Is(err, io.EOF) {
			log.Printf("[observe] Source %s exhausted", m.source.Name())
			m.finalize(time.Time{})
			return
		}
		if err != nil {
			if m.ctx.Err() != nil {
				log.Printf("[observe] Stopping %s loop", m.source.Name())
				return
			}
			log.Printf("[observe] %s error: %v", m.source.Name(), err)
			continue
		}
		m.handleObservation(obs)
	}
}

// handleObservation runs one sample through the debouncer and applies any
// confirmed change to the timeline.
func (m *Manager) handleObservation(obs observe.Observation) {
	if !obs.Label.Valid() {
		log.Printf("[observe] Dropping unknown label %q", obs.Label)
		return
	}

	if label, changed := m.deb.Observe(obs); changed {
		m.applyTransition(label, obs.Timestamp)
	}
	m.checkAllowance(obs.Timestamp)
}

// applyTransition records a confirmed label at the given instant, opening
// the session on the first confirmation.
func (m *Manager) applyTransition(label timeline.Label, at time.Time) {
	if !m.tl.Started() {
		if err := m.tl.Start(at); err != nil {
			log.Printf("[timeline] Start failed: %v", err)
			return
		}
		log.Printf("Session %q started", m.tl.Snapshot(at).SessionID)
		m.mu.Lock()
		m.startedAt = at
		m.mu.Unlock()
	}

	if err := m.tl.Transition(label, at); err != nil {
		// Out-of-order observation: drop it, the record stays intact.
		log.Printf("[timeline] Dropped transition to %s: %v", label, err)
		return
	}

	m.mu.Lock()
	if at.After(m.lastTS) {
		m.lastTS = at
	}
	m.mu.Unlock()
	log.Printf("[timeline] Confirmed %s", label)
}

// checkAllowance finalizes the session once it has consumed its allowance.
func (m *Manager) checkAllowance(at time.Time) {
	if m.allowance <= 0 {
		return
	}
	m.mu.Lock()
	started := m.startedAt
	m.mu.Unlock()

	if started.IsZero() || at.Sub(started) < m.allowance {
		return
	}
	log.Printf("[usage] Session allowance of %s consumed", m.allowance)
	m.finalize(at)
}

// finalize seals the session exactly once and persists it. A zero instant
// means "now"; the chosen instant is nudged past the last accepted
// observation so the close can never collide with the open interval.
func (m *Manager) finalize(at time.Time) {
	m.finalizeOnce.Do(func() {
		m.mu.Lock()
		if at.IsZero() {
			at = m.clock.Now()
		}
		if !at.After(m.lastTS) {
			at = m.lastTS.Add(time.Nanosecond)
		}
		m.mu.Unlock()

		if m.tl.Started() {
			if err := m.tl.Finalize(at); err != nil {
				log.Printf("[timeline] Finalize failed: %v", err)
			} else {
				m.persist()
			}
		}

		if m.cancel != nil {
			m.cancel()
		}
	})
}

// persist charges the meter and saves the finished session.
func (m *Manager) persist() {
	sess, err := m.tl.FinalizedSession()
	if err != nil {
		log.Printf("[storage] No finalized session to save: %v", err)
		return
	}

	if m.meter != nil {
		if err := m.meter.Record(sess.Duration()); err != nil {
			log.Printf("[usage] Failed to record session time: %v", err)
		}
	}
	if m.store != nil {
		if err := m.store.SaveSession(sess); err != nil {
			log.Printf("[storage] Failed to save session: %v", err)
			return
		}
	}
	log.Printf("Session %q saved (%s tracked)", sess.ID, sess.Duration().Round(time.Second))
}

// fireAlert delivers one staged alert. It runs on the scheduler's
// goroutine, outside the scheduler's lock.
func (m *Manager) fireAlert(stage int, label timeline.Label) {
	msg := m.cfg.MessageForStage(stage)
	log.Printf("[alert] %s: %s (stage %d, label %s)", msg.Title, msg.Body, stage+1, label)

	if m.notifier == nil {
		return
	}
	urgency := notify.UrgencyForStage(stage)
	if err := m.notifier.SendWithTimeout(msg.Title, msg.Body, urgency, m.cfg.PopupTimeoutMs()); err != nil {
		log.Printf("[notify] Failed to send notification: %v", err)
	}
}

// Pause suspends tracking. The debouncer is overridden so the pause takes
// effect on this instant, not a few samples later.
func (m *Manager) Pause() {
	m.override(timeline.LabelPaused)
}

// Resume ends a pause and puts the session back in present.
func (m *Manager) Resume() {
	m.override(timeline.LabelPresent)
}

// TogglePause flips between paused and present, for the SIGUSR1 handler.
func (m *Manager) TogglePause() {
	snap := m.tl.Snapshot(m.clock.Now())
	if n := len(snap.Intervals); n > 0 && snap.Intervals[n-1].Label == timeline.LabelPaused {
		m.Resume()
		return
	}
	m.Pause()
}

// override force-sets the confirmed label. Before the session has opened
// (or after it sealed) there is nothing to pause, so it no-ops.
func (m *Manager) override(label timeline.Label) {
	if !m.tl.Started() || m.tl.Finalized() {
		return
	}
	m.deb.Override(label)
	m.applyTransition(label, m.clock.Now())
}

// Stats reduces the session record as of the given instant.
func (m *Manager) Stats(asOf time.Time) stats.AggregateStats {
	return stats.Compute(m.tl.Snapshot(asOf))
}

// Snapshot exposes the current record, for status display.
func (m *Manager) Snapshot(asOf time.Time) timeline.Snapshot {
	return m.tl.Snapshot(asOf)
}

// FinalizedSession returns the sealed session once tracking has ended.
func (m *Manager) FinalizedSession() (*timeline.Session, error) {
	return m.tl.FinalizedSession()
}

// AlertState returns the scheduler's counters.
func (m *Manager) AlertState() alert.State {
	return m.sched.State()
}
