// Package usage meters tracked time against a preview allowance.
//
// The product ships as a limited preview: a fixed number of tracked hours,
// extendable with an unlock password. The Tracker persists consumed time
// across sessions in a small JSON file and keeps a checksum over the
// payload, so hand-editing the file spends the allowance instead of
// refilling it.
package usage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrExhausted means the allowance has run out; tracking cannot start.
var ErrExhausted = errors.New("tracked-time allowance exhausted")

// ErrBadPassword is returned by Unlock when the attempt does not match.
var ErrBadPassword = errors.New("unlock password does not match")

// checksumKey is mixed into the state checksum. This keeps casual edits
// from granting time, it is not a cryptographic boundary.
const checksumKey = "vigil-usage-v1"

// state is the persisted shape of usage.json.
type state struct {
	UsedSeconds  int64     `json:"used_seconds"`
	ExtraSeconds int64     `json:"extra_seconds"`
	UpdatedAt    time.Time `json:"updated_at"`
	Checksum     string    `json:"checksum"`
}

func (s *state) computeChecksum() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s", s.UsedSeconds, s.ExtraSeconds, checksumKey)))
	return hex.EncodeToString(sum[:])
}

// Tracker owns the usage file. All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	path      string
	limit     time.Duration // base allowance, 0 = unlimited
	extension time.Duration // granted per successful unlock
	password  string        // expected unlock password, "" disables unlock

	st state
}

// NewTracker loads (or initializes) the usage state at path. A limit of 0
// disables metering; the file is still maintained so flipping the limit on
// later starts from real numbers.
func NewTracker(path string, limit, extension time.Duration, password string) *Tracker {
	t := &Tracker{
		path:      path,
		limit:     limit,
		extension: extension,
		password:  password,
	}
	t.load()
	return t
}

func (t *Tracker) load() {
	data, err := os.ReadFile(t.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[usage] Failed to read %s: %v", t.path, err)
		}
		return
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		log.Printf("[usage] Corrupt usage file %s, treating allowance as spent: %v", t.path, err)
		t.st = state{UsedSeconds: int64(t.limit / time.Second)}
		return
	}
	if st.Checksum != st.computeChecksum() {
		log.Printf("[usage] Checksum mismatch in %s, treating allowance as spent", t.path)
		st.UsedSeconds = int64(t.limit / time.Second)
		st.ExtraSeconds = 0
	}
	t.st = st
}

// save must be called with the mutex held.
func (t *Tracker) save() error {
	t.st.UpdatedAt = time.Now()
	t.st.Checksum = t.st.computeChecksum()

	data, err := json.MarshalIndent(&t.st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return err
	}
	return os.WriteFile(t.path, data, 0600)
}

// Unlimited reports whether metering is disabled.
func (t *Tracker) Unlimited() bool {
	return t.limit <= 0
}

// Remaining returns how much allowance is left, floored at zero. It is
// meaningless for unlimited trackers; check Unlimited first.
func (t *Tracker) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

func (t *Tracker) remainingLocked() time.Duration {
	total := t.limit + time.Duration(t.st.ExtraSeconds)*time.Second
	used := time.Duration(t.st.UsedSeconds) * time.Second
	if used >= total {
		return 0
	}
	return total - used
}

// Used returns the total tracked time consumed so far.
func (t *Tracker) Used() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.st.UsedSeconds) * time.Second
}

// Record adds a finished session's duration to the consumed total and
// persists it. Recording past zero is fine; the session already happened.
func (t *Tracker) Record(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.st.UsedSeconds += int64(d.Round(time.Second) / time.Second)
	if err := t.save(); err != nil {
		return fmt.Errorf("failed to save usage state: %w", err)
	}
	return nil
}

// Unlock grants one extension if the attempt matches the configured
// password. It returns the new remaining allowance.
func (t *Tracker) Unlock(attempt string) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.password == "" {
		return 0, errors.New("no unlock password is configured")
	}
	if attempt != t.password {
		return 0, ErrBadPassword
	}

	t.st.ExtraSeconds += int64(t.extension / time.Second)
	if err := t.save(); err != nil {
		return 0, fmt.Errorf("failed to save usage state: %w", err)
	}
	log.Printf("[usage] Unlocked %s of extra tracking time", t.extension)
	return t.remainingLocked(), nil
}
