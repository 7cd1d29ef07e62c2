// Package tmux drives and observes the terminal pane that hosts the
// Claude CLI. The pane is addressed by tmux session name and treated
// as a black box: keystrokes in, captured lines out. All subprocess
// calls go through an injected executor so tests never need a real
// tmux server.
package tmux

import (
	"context"
	"strconv"
	"strings"

	pexec "github.com/zhubert/ccbridge/exec"
)

// Named keys accepted by SendKey.
const (
	KeyEnter     = "Enter"
	KeyEscape    = "Escape"
	KeyDown      = "Down"
	KeyInterrupt = "C-c"
)

// Pane is an addressable tmux pane.
type Pane struct {
	session  string
	executor pexec.CommandExecutor
}

// NewPane creates a Pane targeting the given tmux session.
func NewPane(session string, executor pexec.CommandExecutor) *Pane {
	return &Pane{session: session, executor: executor}
}

// Session returns the tmux session name this pane targets.
func (p *Pane) Session() string {
	return p.session
}

// Exists reports whether the tmux session exists.
func (p *Pane) Exists(ctx context.Context) bool {
	_, _, err := p.executor.Run(ctx, "", "tmux", "has-session", "-t", p.session)
	return err == nil
}

// Send sends literal text to the pane without a trailing Enter.
func (p *Pane) Send(ctx context.Context, text string) error {
	_, _, err := p.executor.Run(ctx, "", "tmux", "send-keys", "-t", p.session, "-l", text)
	return err
}

// SendKey sends a named key (Enter, Escape, Down, C-c) to the pane.
func (p *Pane) SendKey(ctx context.Context, key string) error {
	_, _, err := p.executor.Run(ctx, "", "tmux", "send-keys", "-t", p.session, key)
	return err
}

// SendLine sends literal text followed by Enter.
func (p *Pane) SendLine(ctx context.Context, text string) error {
	if err := p.Send(ctx, text); err != nil {
		return err
	}
	return p.SendKey(ctx, KeyEnter)
}

// Capture returns the last n lines of visible pane output.
func (p *Pane) Capture(ctx context.Context, n int) string {
	out, err := p.executor.Output(ctx, "", "tmux", "capture-pane", "-t", p.session, "-p", "-S", "-"+strconv.Itoa(n))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// AtShellPrompt reports whether the pane currently shows a shell
// prompt, meaning the Claude process has exited.
func (p *Pane) AtShellPrompt(ctx context.Context) bool {
	return IsShellPrompt(p.Capture(ctx, 3))
}

// CWD returns the pane's current working directory, or "".
func (p *Pane) CWD(ctx context.Context) string {
	out, err := p.executor.Output(ctx, "", "tmux", "display-message", "-t", p.session, "-p", "#{pane_current_path}")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// Title returns the pane's window name when it carries a meaningful
// value, or "" when unset or generic.
func (p *Pane) Title(ctx context.Context) string {
	out, err := p.executor.Output(ctx, "", "tmux", "display-message", "-t", p.session, "-p", "#{window_name}")
	if err != nil {
		return ""
	}
	return FilterWindowTitle(strings.TrimSpace(string(out)))
}

// SetTitle renames the pane's window, used to track the active session.
func (p *Pane) SetTitle(ctx context.Context, title string) error {
	_, _, err := p.executor.Run(ctx, "", "tmux", "rename-window", "-t", p.session, title)
	return err
}
