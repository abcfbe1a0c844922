// Package main is the entry point for the Vigil focus tracker.
//
// Usage:
//
//	vigil                  - Track a focus session (default)
//	vigil track            - Track a focus session
//	vigil status           - One-line live status (for waybar/polybar)
//	vigil sessions         - List recorded sessions
//	vigil report "<id>"    - Show one session's breakdown
//	vigil pause            - Toggle pause on the running tracker
//	vigil unlock <pass>    - Extend the tracked-time allowance
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Atharva-Kanherkar/vigil/internal/alert"
	"github.com/Atharva-Kanherkar/vigil/internal/config"
	"github.com/Atharva-Kanherkar/vigil/internal/daemon"
	"github.com/Atharva-Kanherkar/vigil/internal/notify"
	"github.com/Atharva-Kanherkar/vigil/internal/observe"
	"github.com/Atharva-Kanherkar/vigil/internal/observe/idle"
	"github.com/Atharva-Kanherkar/vigil/internal/observe/replay"
	"github.com/Atharva-Kanherkar/vigil/internal/platform"
	"github.com/Atharva-Kanherkar/vigil/internal/stats"
	"github.com/Atharva-Kanherkar/vigil/internal/storage"
	"github.com/Atharva-Kanherkar/vigil/internal/usage"
)

func main() {
	cmd := "track"
	args := os.Args[1:]
	// Bare flags (`vigil -replay demo.jsonl`) go to the default command.
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "track", "t", "daemon":
		runTrack(args)
	case "status", "st":
		runStatus()
	case "sessions", "ls":
		runSessions(args)
	case "report", "r":
		if len(args) < 1 {
			fmt.Println(`Usage: vigil report "<session id>"`)
			os.Exit(1)
		}
		runReport(strings.Join(args, " "))
	case "pause", "p":
		runPause()
	case "unlock":
		if len(args) < 1 {
			fmt.Println("Usage: vigil unlock <password>")
			os.Exit(1)
		}
		runUnlock(args[0])
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`Vigil - Focus Session Tracker

Usage:
  vigil [command]

Commands:
  track, t       Track a focus session (default)
  status, st     One-line live status (for waybar/polybar)
  sessions, ls   List recorded sessions
  report "<id>"  Show one session's breakdown
  pause, p       Toggle pause on the running tracker
  unlock <pass>  Extend the tracked-time allowance
  help           Show this help

Track flags:
  -replay <file>   Replay a JSONL observation script instead of probing
  -config <file>   Explicit config file path

Environment:
  VIGIL_UNLOCK_PASSWORD   Password that `+"`vigil unlock`"+` checks against

Examples:
  vigil                           # Start tracking
  vigil -replay demo.jsonl        # Drive the tracker from a script
  vigil sessions -n 5             # Last five sessions
  vigil report "Vigil Monday 3.04 PM"`)
}

func lockPath(cfg *config.Config) string   { return filepath.Join(cfg.DataDir, "vigil.lock") }
func usagePath(cfg *config.Config) string  { return filepath.Join(cfg.DataDir, "usage.json") }
func socketPath(cfg *config.Config) string { return filepath.Join(cfg.DataDir, "vigil.sock") }

func runTrack(args []string) {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Vigil starting...")

	fs := flag.NewFlagSet("track", flag.ExitOnError)
	replayPath := fs.String("replay", "", "replay a JSONL observation script instead of probing the desktop")
	configPath := fs.String("config", "", "explicit config file path")
	fs.Parse(args)

	if err := godotenv.Load(); err == nil {
		log.Println("[config] Loaded .env file")
	}

	cfg := mustConfig(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}

	plat, err := platform.Detect()
	if err != nil {
		log.Fatalf("Failed to detect platform: %v", err)
	}
	log.Printf("Platform detected: %s (%s)", plat, strings.Join(plat.SupportedFeatures(), ", "))

	// One tracker per machine: a second instance would fight over the
	// desktop probes and the usage file.
	lock, err := platform.AcquireLock(lockPath(cfg))
	if err != nil {
		if errors.Is(err, platform.ErrLocked) {
			if pid, perr := platform.LockHolder(lockPath(cfg)); perr == nil {
				log.Fatalf("Another vigil instance is already running (pid %d)", pid)
			}
		}
		log.Fatalf("Failed to acquire instance lock: %v", err)
	}
	defer lock.Release()

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Printf("Storage initialized at: %s", cfg.DataDir)

	meter := usage.NewTracker(usagePath(cfg), cfg.UsageLimit(), cfg.UsageExtension(),
		os.Getenv("VIGIL_UNLOCK_PASSWORD"))
	if !meter.Unlimited() {
		log.Printf("[usage] %s of tracked time remaining", meter.Remaining())
	}

	var source observe.Source
	if *replayPath != "" {
		source, err = replay.New(*replayPath, cfg.Cadence(), nil)
		if err != nil {
			log.Fatalf("Failed to load replay script: %v", err)
		}
	} else {
		probe := idle.New(plat, nil, cfg.Cadence(), cfg.IdleAfter())
		if !probe.Available() {
			log.Fatalf("No presence probe on %s; install hyprctl or xdotool, or use -replay", plat)
		}
		source = probe
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := daemon.NewManager(cfg, nil, source, store, meter)
	if err := m.Start(ctx); err != nil {
		if errors.Is(err, usage.ErrExhausted) {
			log.Fatal("Tracked-time allowance exhausted. Run `vigil unlock <password>` to extend it.")
		}
		log.Fatalf("Failed to start tracker: %v", err)
	}
	if err := m.ServeStatus(socketPath(cfg)); err != nil {
		log.Printf("[status] Socket unavailable: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	toggleChan := make(chan os.Signal, 1)
	signal.Notify(toggleChan, syscall.SIGUSR1)

	log.Println("Vigil running. Ctrl+C to stop, SIGUSR1 (or `vigil pause`) to toggle pause.")

loop:
	for {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal %v, shutting down...", sig)
			break loop
		case <-toggleChan:
			m.TogglePause()
		case <-m.Done():
			break loop
		}
	}

	m.Stop()

	if sess, err := m.FinalizedSession(); err == nil {
		printSession(os.Stdout, sess, stats.ComputeSession(sess))
	}
	log.Println("Vigil stopped.")
}

// runStatus prints one line for status bars: current label, unfocused
// streak, focus percentage.
func runStatus() {
	cfg := mustConfig("")
	st, err := notify.ReadStatus(socketPath(cfg))
	if err != nil {
		fmt.Println("vigil: not tracking")
		os.Exit(1)
	}
	if st.SessionID == "" {
		fmt.Println("vigil: waiting for first observation")
		return
	}

	line := "vigil: " + st.Label
	if st.UnfocusedSeconds > 0 && st.Phase != string(alert.PhaseIdle) {
		line += fmt.Sprintf(" (%ds unfocused)", st.UnfocusedSeconds)
	}
	line += fmt.Sprintf(" | %.0f%% focus | %s tracked",
		st.FocusRatio*100, time.Duration(st.TrackedSeconds)*time.Second)
	fmt.Println(line)
}

func runSessions(args []string) {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	limit := fs.Int("n", 20, "how many sessions to list")
	configPath := fs.String("config", "", "explicit config file path")
	fs.Parse(args)

	cfg := mustConfig(*configPath)
	store := mustStore(cfg)
	defer store.Close()

	sessions, err := store.ListSessions(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded yet. Run `vigil track` first.")
		return
	}

	for _, s := range sessions {
		fmt.Printf("%-28s  %s  %8s  %5.1f%% focused\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.Total.Round(time.Second),
			s.FocusRatio*100)
	}

	if totals, err := store.Totals(); err == nil && totals.Sessions > 0 {
		fmt.Printf("\n%d sessions, %s tracked, %.1f%% average focus\n",
			totals.Sessions, totals.TrackedTime.Round(time.Second), totals.AvgFocusRatio*100)
	}
}

func runReport(id string) {
	cfg := mustConfig("")
	store := mustStore(cfg)
	defer store.Close()

	sess, err := store.GetSession(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printSession(os.Stdout, sess, stats.ComputeSession(sess))
}

// runPause signals the running tracker; the daemon's SIGUSR1 handler does
// the actual toggling.
func runPause() {
	cfg := mustConfig("")
	pid, err := platform.LockHolder(lockPath(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "No running vigil instance found: %v\n", err)
		os.Exit(1)
	}
	if err := syscall.Kill(pid, syscall.SIGUSR1); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to signal pid %d: %v\n", pid, err)
		os.Exit(1)
	}
	fmt.Printf("Toggled pause on vigil (pid %d)\n", pid)
}

func runUnlock(attempt string) {
	_ = godotenv.Load()

	cfg := mustConfig("")
	meter := usage.NewTracker(usagePath(cfg), cfg.UsageLimit(), cfg.UsageExtension(),
		os.Getenv("VIGIL_UNLOCK_PASSWORD"))

	remaining, err := meter.Unlock(attempt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unlock failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Unlocked. %s of tracked time remaining.\n", remaining)
}

func mustConfig(path string) *config.Config {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func mustStore(cfg *config.Config) *storage.Store {
	if _, err := os.Stat(filepath.Join(cfg.DataDir, "vigil.db")); os.IsNotExist(err) {
		fmt.Println("No sessions recorded yet. Run `vigil track` first.")
		os.Exit(1)
	}
	store, err := storage.New(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return store
}
