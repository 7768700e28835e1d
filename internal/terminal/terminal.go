// Package terminal defines the Terminal collaborator hook consumed by the
// Command Injector and Monitoring Loop (spec.md §6) and ships one
// concrete adapter for local use, generalized from the teacher's
// internal/wezterm/ops.go pane operations.
package terminal

import "context"

// Terminal is the external collaborator hook in spec.md §6. Nothing in
// this module implements a terminal multiplexer itself — that surface is
// explicitly external; this interface is the seam a caller wires a real
// multiplexer (or a test fake) into.
type Terminal interface {
	SendKeys(ctx context.Context, terminalName, text string, pressEnter bool) error
	SessionExists(ctx context.Context, terminalName string) (bool, error)
	CapturePane(ctx context.Context, terminalName string, lines int) (string, error)
}
