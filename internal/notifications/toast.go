package notifications

import (
	"fmt"
	"runtime"

	"github.com/go-toast/toast"

	"github.com/rdvcore/core/internal/types"
)

// ToastNotifier handles Windows toast notifications
type ToastNotifier struct {
	appID       string
	dashboardURL string
}

// NewToastNotifier creates a new toast notifier
func NewToastNotifier(appID string) *ToastNotifier {
	if appID == "" {
		appID = "RDVCORE"
	}
	return &ToastNotifier{
		appID:       appID,
		dashboardURL: "http://localhost:8080",
	}
}

// NewToastNotifierWithURL creates a new toast notifier with a custom dashboard URL
func NewToastNotifierWithURL(appID, dashboardURL string) *ToastNotifier {
	if appID == "" {
		appID = "RDVCORE"
	}
	if dashboardURL == "" {
		dashboardURL = "http://localhost:8080"
	}
	return &ToastNotifier{
		appID:       appID,
		dashboardURL: dashboardURL,
	}
}

// ShowToast displays a Windows toast notification with sound
func (t *ToastNotifier) ShowToast(title, message string) error {
	// Only works on Windows
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   title,
		Message: message,
		Audio:   toast.Default,
		// Add action to focus dashboard when clicked
		Actions: []toast.Action{
			{
				Type:      "protocol",
				Label:     "Open Dashboard",
				Arguments: t.dashboardURL,
			},
		},
	}

	return notification.Push()
}

// NotifyOrchestratorInsight sends a toast notification for an Orchestrator
// Insight, with title and sound driven by severity: critical insights get
// the looping reminder sound, everything else (high, the only other
// severity the manager is ever invoked for) gets the instant-message sound.
func (t *ToastNotifier) NotifyOrchestratorInsight(severity types.Severity, message string) error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("toast notifications only supported on Windows")
	}

	title := "Orchestrator Insight Needs Attention"
	audio := toast.IM
	if severity == types.SeverityCritical {
		title = "Critical: Orchestrator Insight Needs Attention"
		audio = toast.Reminder
	}

	notification := toast.Notification{
		AppID:   t.appID,
		Title:   title,
		Message: message,
		Audio:   audio,
		Actions: []toast.Action{
			{
				Type:      "protocol",
				Label:     "View Now",
				Arguments: t.dashboardURL,
			},
		},
	}

	return notification.Push()
}

// IsSupported returns true if toast notifications are supported on this platform
func (t *ToastNotifier) IsSupported() bool {
	return runtime.GOOS == "windows"
}
