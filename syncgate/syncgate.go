// Package syncgate controls whether inbound chat text is forwarded to
// the pane. The gate is a tri-state derived from two marker files so
// that it survives process restarts and can be cleared by hand —
// deleting either file is always safe.
package syncgate

import (
	"fmt"
	"os"
	"time"

	"github.com/zhubert/ccbridge/logger"
)

// State is the gate's tri-state.
type State string

const (
	Active     State = "active"
	Paused     State = "paused"
	Terminated State = "terminated"
)

// Gate persists the sync state as marker files. It also owns the
// pending-typing marker that drives the chat typing indicator.
type Gate struct {
	pausedFile     string
	terminatedFile string
	pendingFile    string
}

// New creates a Gate over the given marker file paths.
func New(pausedFile, terminatedFile, pendingFile string) *Gate {
	return &Gate{
		pausedFile:     pausedFile,
		terminatedFile: terminatedFile,
		pendingFile:    pendingFile,
	}
}

// State returns the current gate state. Terminated takes precedence
// over paused when both markers are present.
func (g *Gate) State() State {
	if exists(g.terminatedFile) {
		return Terminated
	}
	if exists(g.pausedFile) {
		return Paused
	}
	return Active
}

// Pause creates the paused marker and clears the pending indicator.
func (g *Gate) Pause() error {
	if err := writeMarker(g.pausedFile); err != nil {
		return fmt.Errorf("failed to pause sync: %w", err)
	}
	g.ClearPending()
	return nil
}

// Terminate creates the terminated marker and clears both the paused
// marker and the pending indicator.
func (g *Gate) Terminate() error {
	if err := writeMarker(g.terminatedFile); err != nil {
		return fmt.Errorf("failed to terminate sync: %w", err)
	}
	remove(g.pausedFile)
	g.ClearPending()
	return nil
}

// Clear removes both markers, restoring the active state. Invoked by
// every session-changing command so the user can recover without a
// separate unpause step.
func (g *Gate) Clear() {
	remove(g.pausedFile)
	remove(g.terminatedFile)
}

// MarkPending creates the pending-typing marker.
func (g *Gate) MarkPending() {
	if err := writeMarker(g.pendingFile); err != nil {
		logger.WithComponent("syncgate").Warn("failed to mark pending", "error", err)
	}
}

// ClearPending removes the pending-typing marker.
func (g *Gate) ClearPending() {
	remove(g.pendingFile)
}

// Pending reports whether the pending-typing marker exists.
func (g *Gate) Pending() bool {
	return exists(g.pendingFile)
}

func writeMarker(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", time.Now().Unix())), 0644)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.WithComponent("syncgate").Warn("failed to remove marker", "path", path, "error", err)
	}
}
