package tmux

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/zhubert/ccbridge/logger"
)

// ErrSessionNotFound is returned by controller operations when the
// tmux session does not exist. Every operation is then a no-op; no
// other state is touched.
var ErrSessionNotFound = errors.New("tmux session not found")

// Claude CLI invocations. The bridge always skips the permission
// prompts because the operator answers them from chat instead.
const (
	claudeLaunch  = "claude --dangerously-skip-permissions"
	claudeExitCmd = "/exit"
	clearCmd      = "/clear"
	resumeCmd     = "/resume "
)

// Settle delays after pane interactions. The controller has no
// completion signal from the Claude process; it can only wait a fixed
// interval and then poll pane content.
const (
	settleShort  = 200 * time.Millisecond
	settleMedium = 300 * time.Millisecond
	settleExit   = 500 * time.Millisecond
	settleCmd    = 1 * time.Second
	settleClear  = 1500 * time.Millisecond
	settleLaunch = 2 * time.Second
)

// ProjectLocator resolves a session id to its project's real path.
type ProjectLocator interface {
	ProjectPathForSession(sessionID string) (string, bool)
}

// Controller drives the pane through session and project switches.
// Operations are best-effort and latency-tolerant: each step is
// followed by a settle delay, then the pane content is polled to
// decide the next step.
type Controller struct {
	pane    *Pane
	locator ProjectLocator

	// sleep is replaceable so tests run without real delays.
	sleep func(time.Duration)
}

// NewController creates a Controller over a pane and project locator.
func NewController(pane *Pane, locator ProjectLocator) *Controller {
	return &Controller{pane: pane, locator: locator, sleep: time.Sleep}
}

// SetSleep replaces the settle delay function. Intended for tests.
func (c *Controller) SetSleep(fn func(time.Duration)) {
	c.sleep = fn
}

// SwitchToSession moves the pane to the given session. A target in a
// different project forces a Claude exit, a cd, and a resume relaunch;
// a same-project target uses Claude's own in-place resume, falling
// back to a relaunch if that exited the process.
func (c *Controller) SwitchToSession(ctx context.Context, sessionID string) error {
	if !c.pane.Exists(ctx) {
		return ErrSessionNotFound
	}
	log := logger.WithComponent("tmux")

	targetPath, _ := c.locator.ProjectPathForSession(sessionID)
	cwd := c.pane.CWD(ctx)

	if targetPath != "" && cwd != "" && !samePath(targetPath, cwd) {
		log.Info("cross-project switch", "sessionID", sessionID, "target", targetPath)
		c.exitClaude(ctx)
		c.cdAndStart(ctx, targetPath, sessionID)
		return nil
	}

	// Same project (or target unknown): try Claude's built-in resume
	c.pane.SendKey(ctx, KeyEscape)
	c.sleep(settleMedium)
	c.pane.SendLine(ctx, resumeCmd+sessionID)
	c.sleep(settleLaunch)

	// The running Claude may have exited instead of resuming
	if c.pane.AtShellPrompt(ctx) {
		log.Info("in-place resume exited claude, relaunching", "sessionID", sessionID)
		if targetPath != "" {
			c.cdAndStart(ctx, targetPath, sessionID)
		} else {
			c.pane.SendLine(ctx, resumeLaunchLine(sessionID))
			c.sleep(settleLaunch)
		}
	}
	return nil
}

// NewSession starts a fresh conversation, clearing in place when
// Claude is running and relaunching when it has exited.
func (c *Controller) NewSession(ctx context.Context) error {
	if !c.pane.Exists(ctx) {
		return ErrSessionNotFound
	}

	c.pane.SendKey(ctx, KeyEscape)
	c.sleep(settleMedium)
	c.pane.SendLine(ctx, clearCmd)
	c.sleep(settleClear)

	if c.pane.AtShellPrompt(ctx) {
		c.pane.SendLine(ctx, claudeLaunch)
		c.sleep(settleLaunch)
	}
	return nil
}

// NewSessionInProject starts a fresh conversation in the given project
// path, forcing an exit and relaunch when the pane is in a different
// directory.
func (c *Controller) NewSessionInProject(ctx context.Context, path string) error {
	if !c.pane.Exists(ctx) {
		return ErrSessionNotFound
	}
	if path == "" {
		return c.NewSession(ctx)
	}

	cwd := c.pane.CWD(ctx)
	if cwd != "" && !samePath(path, cwd) {
		c.exitClaude(ctx)
		c.cdAndStart(ctx, path, "")
		return nil
	}
	return c.NewSession(ctx)
}

// Clear sends Claude's clear command without relaunch handling.
func (c *Controller) Clear(ctx context.Context) error {
	if !c.pane.Exists(ctx) {
		return ErrSessionNotFound
	}
	c.pane.SendKey(ctx, KeyEscape)
	c.sleep(settleShort)
	return c.pane.SendLine(ctx, clearCmd)
}

// Interrupt sends Escape then a terminal interrupt to the pane.
func (c *Controller) Interrupt(ctx context.Context) error {
	if !c.pane.Exists(ctx) {
		return ErrSessionNotFound
	}
	c.pane.SendKey(ctx, KeyEscape)
	c.sleep(settleShort)
	return c.pane.SendKey(ctx, KeyInterrupt)
}

// SelectOption answers an interactive chooser by pressing Down the
// given number of times, then Enter.
func (c *Controller) SelectOption(ctx context.Context, index int) error {
	if !c.pane.Exists(ctx) {
		return ErrSessionNotFound
	}
	for i := 0; i < index; i++ {
		c.pane.SendKey(ctx, KeyDown)
		c.sleep(150 * time.Millisecond)
	}
	c.sleep(settleShort)
	return c.pane.SendKey(ctx, KeyEnter)
}

// exitClaude returns the pane to a shell prompt. Escape plus /exit
// first; when Claude is still running after the settle delay, a second
// Escape and a raw shell exit force the issue.
func (c *Controller) exitClaude(ctx context.Context) {
	c.pane.SendKey(ctx, KeyEscape)
	c.sleep(settleMedium)
	c.pane.SendLine(ctx, claudeExitCmd)
	c.sleep(settleCmd)

	if !c.pane.AtShellPrompt(ctx) {
		c.pane.SendKey(ctx, KeyEscape)
		c.sleep(settleShort)
		c.pane.SendLine(ctx, "exit")
		c.sleep(settleExit)
	}
}

// cdAndStart changes the pane's directory and launches Claude,
// resuming sessionID when non-empty.
func (c *Controller) cdAndStart(ctx context.Context, path, sessionID string) {
	c.pane.SendLine(ctx, "cd "+shellQuote(path))
	c.sleep(settleMedium)
	if sessionID != "" {
		c.pane.SendLine(ctx, resumeLaunchLine(sessionID))
	} else {
		c.pane.SendLine(ctx, claudeLaunch)
	}
	c.sleep(settleLaunch)
}

func resumeLaunchLine(sessionID string) string {
	return "claude --resume " + sessionID + " --dangerously-skip-permissions"
}

// shellQuote single-quotes a path for the pane's shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// samePath reports whether a and b refer to the same filesystem entry.
// It handles symlinks and case-insensitive filesystems by comparing
// device+inode via os.SameFile, falling back to exact string
// comparison when either path cannot be stat'd.
func samePath(a, b string) bool {
	if a == b {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}
