// Package notify is the alert delivery boundary.
//
// The rest of the daemon decides *when* to alert; this package only knows
// *how*: desktop notifications via notify-send. When the tool is missing
// (headless box, no notification daemon) sends silently no-op, so the
// tracking core keeps working without a desktop.
package notify

import (
	"fmt"
	"os/exec"
)

// Urgency levels for desktop notifications.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// UrgencyForStage maps an alert stage to a notification urgency: the later
// the stage, the louder the notification.
func UrgencyForStage(stage int) Urgency {
	switch {
	case stage <= 0:
		return UrgencyLow
	case stage == 1:
		return UrgencyNormal
	default:
		return UrgencyCritical
	}
}

// DesktopNotifier sends desktop notifications via notify-send.
type DesktopNotifier struct {
	appName string
}

// NewDesktopNotifier creates a new desktop notifier.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{
		appName: "Vigil",
	}
}

// Available checks if notify-send is available.
func (n *DesktopNotifier) Available() bool {
	_, err := exec.LookPath("notify-send")
	return err == nil
}

// Send sends a desktop notification that stays until dismissed.
func (n *DesktopNotifier) Send(title, body string, urgency Urgency) error {
	if !n.Available() {
		return nil // Silently skip if not available
	}
	return exec.Command("notify-send", n.args(title, body, urgency, 0)...).Run()
}

// SendWithTimeout sends a notification that expires after timeoutMs
// milliseconds. This is the popup behavior for staged unfocused alerts.
func (n *DesktopNotifier) SendWithTimeout(title, body string, urgency Urgency, timeoutMs int) error {
	if !n.Available() {
		return nil
	}
	return exec.Command("notify-send", n.args(title, body, urgency, timeoutMs)...).Run()
}

// args assembles the notify-send argument list. timeoutMs <= 0 means no
// explicit expiry.
func (n *DesktopNotifier) args(title, body string, urgency Urgency, timeoutMs int) []string {
	args := []string{
		"--app-name=" + n.appName,
		"--urgency=" + string(urgency),
	}

	// Icon hint follows the urgency.
	switch urgency {
	case UrgencyCritical:
		args = append(args, "--icon=dialog-warning")
	default:
		args = append(args, "--icon=dialog-information")
	}

	if timeoutMs > 0 {
		args = append(args, fmt.Sprintf("--expire-time=%d", timeoutMs))
	}

	return append(args, title, body)
}
