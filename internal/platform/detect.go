// Package platform detects the desktop environment and the external tools
// the daemon leans on.
//
// Presence probing and notifications need different commands per display
// server: hyprctl on Hyprland, xdotool on X11, notify-send wherever a
// notification daemon runs. Detection happens once at startup; the rest of
// the code asks the Platform what it can do.
package platform

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// DisplayServer identifies the running display server.
type DisplayServer string

const (
	DisplayServerHyprland DisplayServer = "hyprland"
	DisplayServerSway     DisplayServer = "sway"
	DisplayServerWayland  DisplayServer = "wayland" // generic Wayland (GNOME, KDE)
	DisplayServerX11      DisplayServer = "x11"
	DisplayServerMacOS    DisplayServer = "macos"
	DisplayServerUnknown  DisplayServer = "unknown"
)

// Platform holds what was detected at startup.
type Platform struct {
	// OS is the operating system: "linux", "darwin", "windows".
	OS string

	// DisplayServer is the specific display server being used.
	DisplayServer DisplayServer

	// Available tools, probed from PATH.
	HasHyprctl    bool // Hyprland control tool
	HasXdotool    bool // X11 cursor/window info
	HasNotifySend bool // desktop notifications
}

// String returns a human-readable description of the platform.
func (p *Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.DisplayServer)
}

// Detect figures out what platform we're running on: the OS, the display
// server, and which helper commands are installed.
func Detect() (*Platform, error) {
	p := &Platform{OS: runtime.GOOS}

	p.DisplayServer = detectDisplayServer()

	p.HasHyprctl = commandExists("hyprctl")
	p.HasXdotool = commandExists("xdotool")
	p.HasNotifySend = commandExists("notify-send")

	return p, nil
}

// detectDisplayServer figures out which display server is running.
func detectDisplayServer() DisplayServer {
	if runtime.GOOS == "darwin" {
		return DisplayServerMacOS
	}

	// Hyprland is the most specific signal, check it first.
	if os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
		return DisplayServerHyprland
	}
	if os.Getenv("SWAYSOCK") != "" {
		return DisplayServerSway
	}

	sessionType := os.Getenv("XDG_SESSION_TYPE")
	if sessionType == "wayland" || os.Getenv("WAYLAND_DISPLAY") != "" {
		return DisplayServerWayland
	}
	if sessionType == "x11" || os.Getenv("DISPLAY") != "" {
		return DisplayServerX11
	}

	return DisplayServerUnknown
}

// commandExists checks if a command is available in PATH.
func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// IsWayland returns true on any Wayland compositor.
func (p *Platform) IsWayland() bool {
	switch p.DisplayServer {
	case DisplayServerHyprland, DisplayServerSway, DisplayServerWayland:
		return true
	default:
		return false
	}
}

// CanProbeActivity returns true if we have a way to read cursor position
// and active-window identity, the signals the idle source is built on.
func (p *Platform) CanProbeActivity() bool {
	switch p.DisplayServer {
	case DisplayServerHyprland:
		return p.HasHyprctl
	case DisplayServerX11:
		return p.HasXdotool
	default:
		return false
	}
}

// CursorPos executes the appropriate command to read the cursor position.
// Returns the raw output; parsing happens in the idle source.
func (p *Platform) CursorPos() ([]byte, error) {
	switch p.DisplayServer {
	case DisplayServerHyprland:
		// hyprctl cursorpos -j returns JSON
		return exec.Command("hyprctl", "cursorpos", "-j").Output()
	case DisplayServerX11:
		// xdotool prints X=... Y=... lines with --shell
		return exec.Command("xdotool", "getmouselocation", "--shell").Output()
	default:
		return nil, fmt.Errorf("cursor probing not supported on %s", p.DisplayServer)
	}
}

// ActiveWindow executes the appropriate command to identify the focused
// window. Returns the raw output; parsing happens in the idle source.
func (p *Platform) ActiveWindow() ([]byte, error) {
	switch p.DisplayServer {
	case DisplayServerHyprland:
		return exec.Command("hyprctl", "activewindow", "-j").Output()
	case DisplayServerX11:
		return exec.Command("xdotool", "getactivewindow").Output()
	default:
		return nil, fmt.Errorf("window probing not supported on %s", p.DisplayServer)
	}
}

// SupportedFeatures returns a human-readable list of what this platform
// gives the daemon, for the startup log.
func (p *Platform) SupportedFeatures() []string {
	features := []string{}

	if p.CanProbeActivity() {
		features = append(features, "presence probing")
	}
	if p.HasNotifySend {
		features = append(features, "desktop notifications")
	}

	if len(features) == 0 {
		return []string{"none - missing required tools"}
	}
	return features
}
