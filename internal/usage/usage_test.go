package usage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func trackerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "usage.json")
}

func TestRecordPersistsAcrossLoads(t *testing.T) {
	path := trackerPath(t)

	tr := NewTracker(path, time.Hour, 30*time.Minute, "pw")
	if err := tr.Record(10 * time.Minute); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := tr.Record(5 * time.Minute); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := tr.Remaining(); got != 45*time.Minute {
		t.Errorf("Remaining = %s, want 45m", got)
	}

	// A fresh tracker reads the same numbers back.
	reloaded := NewTracker(path, time.Hour, 30*time.Minute, "pw")
	if got := reloaded.Used(); got != 15*time.Minute {
		t.Errorf("Used after reload = %s, want 15m", got)
	}
	if got := reloaded.Remaining(); got != 45*time.Minute {
		t.Errorf("Remaining after reload = %s, want 45m", got)
	}
}

func TestRemainingFloorsAtZero(t *testing.T) {
	tr := NewTracker(trackerPath(t), 10*time.Minute, 0, "")

	if err := tr.Record(15 * time.Minute); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := tr.Remaining(); got != 0 {
		t.Errorf("Remaining = %s, want 0", got)
	}
	if got := tr.Used(); got != 15*time.Minute {
		t.Errorf("Used = %s, want the full 15m", got)
	}
}

func TestUnlock(t *testing.T) {
	path := trackerPath(t)
	tr := NewTracker(path, time.Hour, 2*time.Hour, "sesame")
	tr.Record(time.Hour)

	if _, err := tr.Unlock("wrong"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("Unlock with wrong password: got %v, want ErrBadPassword", err)
	}

	remaining, err := tr.Unlock("sesame")
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if remaining != 2*time.Hour {
		t.Errorf("remaining after unlock = %s, want 2h", remaining)
	}

	// The extension survives a reload.
	reloaded := NewTracker(path, time.Hour, 2*time.Hour, "sesame")
	if got := reloaded.Remaining(); got != 2*time.Hour {
		t.Errorf("Remaining after reload = %s, want 2h", got)
	}
}

func TestUnlockWithoutConfiguredPassword(t *testing.T) {
	tr := NewTracker(trackerPath(t), time.Hour, time.Hour, "")
	if _, err := tr.Unlock("anything"); err == nil {
		t.Fatal("Unlock without a configured password should error")
	}
}

func TestTamperedFileSpendsAllowance(t *testing.T) {
	path := trackerPath(t)
	tr := NewTracker(path, time.Hour, 0, "")
	tr.Record(50 * time.Minute)

	// Rewind used_seconds by hand, without fixing the checksum.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read usage file: %v", err)
	}
	var st map[string]any
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal usage file: %v", err)
	}
	st["used_seconds"] = 0
	edited, _ := json.Marshal(st)
	if err := os.WriteFile(path, edited, 0600); err != nil {
		t.Fatalf("write usage file: %v", err)
	}

	tampered := NewTracker(path, time.Hour, 0, "")
	if got := tampered.Remaining(); got != 0 {
		t.Errorf("Remaining after tampering = %s, want 0", got)
	}
}

func TestCorruptFileSpendsAllowance(t *testing.T) {
	path := trackerPath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write usage file: %v", err)
	}

	tr := NewTracker(path, time.Hour, 0, "")
	if got := tr.Remaining(); got != 0 {
		t.Errorf("Remaining with corrupt file = %s, want 0", got)
	}
}

func TestUnlimitedTracker(t *testing.T) {
	tr := NewTracker(trackerPath(t), 0, 0, "")
	if !tr.Unlimited() {
		t.Fatal("limit 0 should mean unlimited")
	}
	// Consumption still gets written down.
	if err := tr.Record(time.Minute); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := tr.Used(); got != time.Minute {
		t.Errorf("Used = %s, want 1m", got)
	}
}
