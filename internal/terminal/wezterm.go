package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// paneInfo mirrors the JSON shape of `wezterm cli list --format json`,
// generalized from internal/wezterm/ops.go's PaneInfo.
type paneInfo struct {
	PaneID int    `json:"pane_id"`
	Title  string `json:"title"`
}

// WezTerm implements Terminal against a local WezTerm installation by
// resolving a session's terminal_name to a pane whose title matches it.
// It is a reference adapter for local development, not a production
// requirement of this module — the terminal multiplexer itself remains an
// external collaborator per spec.md §1.
type WezTerm struct {
	mu             sync.Mutex
	commandTimeout time.Duration
}

// NewWezTerm constructs a WezTerm adapter with the teacher's default
// per-command timeout.
func NewWezTerm() *WezTerm {
	return &WezTerm{commandTimeout: 10 * time.Second}
}

func (w *WezTerm) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, w.commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "wezterm", args...)
	return cmd.CombinedOutput()
}

func (w *WezTerm) resolvePane(ctx context.Context, terminalName string) (int, error) {
	w.mu.Lock()
	output, err := w.run(ctx, "cli", "list", "--format", "json")
	w.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("list panes: %w (output: %s)", err, string(output))
	}
	var panes []paneInfo
	if err := json.Unmarshal(output, &panes); err != nil {
		return 0, fmt.Errorf("parse pane list: %w", err)
	}
	for _, p := range panes {
		if p.Title == terminalName {
			return p.PaneID, nil
		}
	}
	return 0, fmt.Errorf("no pane found with title %q", terminalName)
}

// SendKeys implements Terminal.SendKeys by resolving the pane and piping
// text to it, mirroring internal/wezterm/ops.go's SendTextContext.
func (w *WezTerm) SendKeys(ctx context.Context, terminalName, text string, pressEnter bool) error {
	paneID, err := w.resolvePane(ctx, terminalName)
	if err != nil {
		return err
	}
	if pressEnter {
		text += "\r\n"
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "wezterm", "cli", "send-text", "--pane-id", strconv.Itoa(paneID), "--no-paste")
	cmd.Stdin = strings.NewReader(text)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("send-text: %w (output: %s)", err, string(output))
	}
	return nil
}

// SessionExists implements Terminal.SessionExists.
func (w *WezTerm) SessionExists(ctx context.Context, terminalName string) (bool, error) {
	_, err := w.resolvePane(ctx, terminalName)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// CapturePane implements Terminal.CapturePane.
func (w *WezTerm) CapturePane(ctx context.Context, terminalName string, lines int) (string, error) {
	paneID, err := w.resolvePane(ctx, terminalName)
	if err != nil {
		return "", err
	}
	args := []string{"cli", "get-text", "--pane-id", strconv.Itoa(paneID)}
	if lines > 0 {
		args = append(args, "--start-line", strconv.Itoa(-lines))
	}

	w.mu.Lock()
	output, err := w.run(ctx, args...)
	w.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("get-text: %w (output: %s)", err, string(output))
	}
	return string(output), nil
}
