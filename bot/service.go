// Package bot is the Telegram face of the bridge: a telebot transport
// over a Service that owns the command, free-text, and callback
// semantics. The Service replies with plain text or an inline keyboard
// and never panics out of a request; external-tool failures come back
// as status messages.
package bot

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/zhubert/ccbridge/binding"
	"github.com/zhubert/ccbridge/config"
	"github.com/zhubert/ccbridge/identity"
	"github.com/zhubert/ccbridge/logger"
	"github.com/zhubert/ccbridge/store"
	"github.com/zhubert/ccbridge/syncgate"
	"github.com/zhubert/ccbridge/tmux"
	"github.com/zhubert/ccbridge/usage"
)

// Callback payload prefixes.
const (
	cbResume         = "resume:"
	cbProject        = "project:"
	cbNewInProject   = "new_in_project:"
	cbContinueRecent = "continue_recent"
	cbAskAnswer      = "askq:"
)

// maxCallbackValue caps the payload length accepted after a prefix.
const maxCallbackValue = 128

const (
	msgTmuxNotFound = "tmux session not found"
	msgPaused       = "🟡 Sync paused. Use /start, /resume, or /continue to resume."
	msgTerminated   = "🔴 Sync terminated. Use /start to reconnect."
	msgHashExpired  = "Session expired. Use /projects again."
)

// Reply is a response to one inbound command, message, or callback.
// An empty Text means nothing to send.
type Reply struct {
	Text     string
	Keyboard [][]tele.InlineButton
}

func text(s string) Reply { return Reply{Text: s} }

// Service implements the bridge semantics independent of the Telegram
// transport.
type Service struct {
	cfg        *config.Config
	store      *store.Store
	bindings   *binding.Store
	gate       *syncgate.Gate
	resolver   *identity.Resolver
	pane       *tmux.Pane
	controller *tmux.Controller
	usage      *usage.Aggregator
	hashes     *ProjectHashCache

	// startTyping launches the typing indicator for a chat. Set by the
	// transport wiring; nil in tests.
	startTyping func(chatID int64)

	// sleep is replaceable so tests run without real delays.
	sleep func(time.Duration)
}

// NewService wires the bridge semantics over its stores and the pane.
func NewService(cfg *config.Config, st *store.Store, bindings *binding.Store,
	gate *syncgate.Gate, resolver *identity.Resolver, pane *tmux.Pane,
	controller *tmux.Controller, agg *usage.Aggregator) *Service {
	return &Service{
		cfg:        cfg,
		store:      st,
		bindings:   bindings,
		gate:       gate,
		resolver:   resolver,
		pane:       pane,
		controller: controller,
		usage:      agg,
		hashes:     NewProjectHashCache(),
		sleep:      time.Sleep,
	}
}

// SetTypingStarter installs the typing-indicator hook.
func (s *Service) SetTypingStarter(fn func(chatID int64)) {
	s.startTyping = fn
}

// Status reports tmux, sync, session, and binding state.
func (s *Service) Status(ctx context.Context, chatID int64) Reply {
	running := "❌ not found"
	if s.pane.Exists(ctx) {
		running = "✅ running"
	}
	state := s.gate.State()

	var b strings.Builder
	fmt.Fprintf(&b, "tmux '%s': %s", s.pane.Session(), running)
	fmt.Fprintf(&b, "\nSync: %s %s", stateIcon(state), state)

	sid := s.resolver.Current()
	if sid == "" {
		b.WriteString("\n⚠️ No active session")
		return text(b.String())
	}
	fmt.Fprintf(&b, "\nSession: %s", sid)
	switch bound, ok := s.bindings.ChatFor(sid); {
	case ok && bound == chatID:
		b.WriteString("\n✅ Bound to this chat")
	case ok:
		fmt.Fprintf(&b, "\n⚠️ Bound to different chat: %d", bound)
	default:
		b.WriteString("\n⚠️ Not bound. Use /bind to connect")
	}
	return text(b.String())
}

// StartNew clears the gate, starts a fresh conversation, and binds the
// detected session to the caller.
func (s *Service) StartNew(ctx context.Context, chatID int64) Reply {
	if !s.pane.Exists(ctx) {
		return text(msgTmuxNotFound + ".\nStart one first.")
	}
	s.gate.Clear()
	if err := s.controller.NewSession(ctx); err != nil {
		return text(msgTmuxNotFound)
	}
	return s.bindNewSession(ctx, chatID, "")
}

// Stop pauses sync. Free text is rejected until a session-changing
// command clears the gate.
func (s *Service) Stop() Reply {
	if err := s.gate.Pause(); err != nil {
		return text(fmt.Sprintf("Failed to pause: %v", err))
	}
	return text("🟡 Sync paused.\n\nUse /start, /resume, or /continue to resume.")
}

// Escape interrupts whatever the pane is doing and stops the typing
// indicator.
func (s *Service) Escape(ctx context.Context) Reply {
	if err := s.controller.Interrupt(ctx); err != nil {
		logger.WithComponent("bot").Debug("interrupt skipped", "error", err)
	}
	s.gate.ClearPending()
	return text("Interrupted")
}

// Terminate disconnects the chat until an explicit /start.
func (s *Service) Terminate() Reply {
	if err := s.gate.Terminate(); err != nil {
		return text(fmt.Sprintf("Failed to terminate: %v", err))
	}
	return text("🔴 Sync terminated.\n\nUse /start to reconnect.")
}

// BindCurrent binds the resolved current session to the caller.
func (s *Service) BindCurrent(ctx context.Context, chatID int64) Reply {
	sid := s.resolver.Current()
	if sid == "" {
		return text("No active session found")
	}
	s.pane.SetTitle(ctx, sid)
	s.bindings.Bind(sid, chatID)
	return text(fmt.Sprintf("Bound session %s to this chat", sid))
}

// ClearConversation sends Claude's clear command.
func (s *Service) ClearConversation(ctx context.Context) Reply {
	if err := s.controller.Clear(ctx); err != nil {
		return text("tmux not found")
	}
	return text("Cleared")
}

// ContinueRecent resumes the most recently modified valid session.
func (s *Service) ContinueRecent(ctx context.Context, chatID int64) Reply {
	s.gate.Clear()
	if !s.pane.Exists(ctx) {
		return text("tmux not found")
	}
	sessions := s.store.RecentSessions(1)
	if len(sessions) == 0 {
		return text("No sessions found")
	}
	return s.resumeAndBind(ctx, sessions[0].ID, chatID, "✅ Continuing")
}

// Loop starts a Ralph loop with the given prompt. Requires the current
// session to be bound to the caller so completion notifications land in
// the right chat.
func (s *Service) Loop(ctx context.Context, chatID int64, args string) Reply {
	if !s.pane.Exists(ctx) {
		return text("tmux not found")
	}
	sid := s.resolver.Current()
	bound, ok := s.bindings.ChatFor(sid)
	if !ok || bound != chatID {
		return text("⚠️ Not bound. Use /bind first.")
	}
	prompt := strings.TrimSpace(args)
	if prompt == "" {
		return text("Usage: /loop <prompt>")
	}
	prompt = strings.ReplaceAll(prompt, `"`, `\"`)
	full := prompt + " Output <promise>DONE</promise> when complete."
	if s.startTyping != nil {
		s.startTyping(chatID)
	}
	s.pane.SendLine(ctx, fmt.Sprintf(`/ralph-loop:ralph-loop "%s" --max-iterations %d --completion-promise "DONE"`,
		full, config.DefaultLoopIterations))
	s.sleep(300 * time.Millisecond)
	return text(fmt.Sprintf("Ralph Loop started (max %d iterations)", config.DefaultLoopIterations))
}

// ResumePicker lists recent sessions as an inline keyboard.
func (s *Service) ResumePicker() Reply {
	s.gate.Clear()
	sessions := s.store.RecentSessions(s.cfg.SessionLimit)
	if len(sessions) == 0 {
		return text("No sessions found")
	}
	kb := [][]tele.InlineButton{
		{{Text: "▶️ Continue most recent", Data: cbContinueRecent}},
	}
	for _, sess := range sessions {
		display := sess.ProjectID
		if path, ok := s.store.DecodeProjectPath(sess.ProjectID); ok {
			display = path
		}
		kb = append(kb, []tele.InlineButton{{
			Text: fmt.Sprintf("📁 %s\n%s", display, sess.ID),
			Data: cbResume + sess.ID,
		}})
	}
	return Reply{Text: "Select session to resume:", Keyboard: kb}
}

// ProjectsPicker lists projects as an inline keyboard keyed by short
// hash.
func (s *Service) ProjectsPicker() Reply {
	projects := s.store.Projects(s.cfg.SessionLimit)
	if len(projects) == 0 {
		return text("No projects found")
	}
	var kb [][]tele.InlineButton
	for _, p := range projects {
		display := p.ID
		if path, ok := s.store.DecodeProjectPath(p.ID); ok {
			display = path
		}
		kb = append(kb, []tele.InlineButton{{
			Text: fmt.Sprintf("📁 %s (%d)", display, p.SessionCount),
			Data: cbProject + s.hashes.Put(p.ID),
		}})
	}
	return Reply{Text: "Select a project:", Keyboard: kb}
}

// Report scans token usage and renders the report.
func (s *Service) Report() Reply {
	snap := s.usage.Scan(s.cfg.RecencyDays)
	return text(usage.FormatReport(snap, s.store))
}

// FreeText forwards a plain message to the pane, subject to the sync
// gate and the auto-bind policy.
func (s *Service) FreeText(ctx context.Context, chatID int64, msg string) Reply {
	switch s.gate.State() {
	case syncgate.Paused:
		return text(msgPaused)
	case syncgate.Terminated:
		return text(msgTerminated)
	}
	if !s.pane.Exists(ctx) {
		return text("tmux not found. Start a session first.")
	}

	if sid := s.resolver.Current(); sid != "" {
		switch s.bindings.CheckAutoBind(sid, chatID) {
		case binding.Bound:
			s.pane.SetTitle(ctx, sid)
		case binding.BoundElsewhere:
			return text("⚠️ Session bound to another chat.\nUse /bind to rebind.")
		}
	}

	if s.startTyping != nil {
		s.startTyping(chatID)
	}
	s.pane.Send(ctx, msg)
	s.sleep(100 * time.Millisecond)
	s.pane.SendKey(ctx, tmux.KeyEnter)
	return Reply{}
}

// Callback dispatches a button press by payload prefix.
func (s *Service) Callback(ctx context.Context, chatID int64, data string) Reply {
	if !s.pane.Exists(ctx) {
		return text(msgTmuxNotFound)
	}

	switch {
	case strings.HasPrefix(data, cbResume):
		sid, ok := parseCallbackData(data, cbResume)
		if !ok {
			return Reply{}
		}
		return s.resumeAndBind(ctx, sid, chatID, "✅ Resumed")

	case data == cbContinueRecent:
		sessions := s.store.RecentSessions(1)
		if len(sessions) == 0 {
			return text("No sessions found")
		}
		return s.resumeAndBind(ctx, sessions[0].ID, chatID, "✅ Continuing")

	case strings.HasPrefix(data, cbProject):
		hash, ok := parseCallbackData(data, cbProject)
		if !ok {
			return Reply{}
		}
		return s.projectSessions(hash)

	case strings.HasPrefix(data, cbAskAnswer):
		raw, ok := parseCallbackData(data, cbAskAnswer)
		if !ok {
			return Reply{}
		}
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			return Reply{}
		}
		if err := s.controller.SelectOption(ctx, idx); err != nil {
			return text(msgTmuxNotFound)
		}
		return text(fmt.Sprintf("✅ Selected option %d", idx+1))

	case strings.HasPrefix(data, cbNewInProject):
		hash, ok := parseCallbackData(data, cbNewInProject)
		if !ok {
			return Reply{}
		}
		return s.newInProject(ctx, chatID, hash)
	}
	return Reply{}
}

// projectSessions renders the session picker for one project.
func (s *Service) projectSessions(hash string) Reply {
	encoded, realName, path, ok := s.resolveProjectHash(hash)
	if !ok {
		return text(msgHashExpired)
	}
	sessions := s.store.SessionsForProject(encoded, s.cfg.SessionLimit)
	if len(sessions) == 0 {
		return text("No sessions in this project")
	}

	display := realName
	if path != "" {
		display = path
	}
	kb := [][]tele.InlineButton{
		{{Text: "🆕 New session", Data: cbNewInProject + s.hashes.Put(encoded)}},
	}
	for _, sess := range sessions {
		kb = append(kb, []tele.InlineButton{{
			Text: fmt.Sprintf("%s | %s", sess.ID, sess.ModTime.Format("01-02 15:04")),
			Data: cbResume + sess.ID,
		}})
	}
	return Reply{Text: fmt.Sprintf("📁 %s\n\nSessions:", display), Keyboard: kb}
}

// newInProject starts a fresh conversation inside the hashed project.
func (s *Service) newInProject(ctx context.Context, chatID int64, hash string) Reply {
	_, _, path, ok := s.resolveProjectHash(hash)
	if !ok {
		return text(msgHashExpired)
	}
	s.gate.Clear()
	var err error
	if path != "" {
		err = s.controller.NewSessionInProject(ctx, path)
	} else {
		err = s.controller.NewSession(ctx)
	}
	if err != nil {
		return text(msgTmuxNotFound)
	}
	return s.bindNewSession(ctx, chatID, path)
}

// resumeAndBind switches the pane to a session, binds it to the chat,
// and formats the confirmation.
func (s *Service) resumeAndBind(ctx context.Context, sessionID string, chatID int64, action string) Reply {
	path, _ := s.store.ProjectPathForSession(sessionID)
	if err := s.controller.SwitchToSession(ctx, sessionID); err != nil {
		return text(msgTmuxNotFound)
	}
	s.pane.SetTitle(ctx, sessionID)
	s.bindings.Bind(sessionID, chatID)
	return text(sessionMessage(action, sessionID, path))
}

// bindNewSession detects the session a fresh launch produced and binds
// it. Detection can lag the launch; the user is told to wait rather
// than guessed at.
func (s *Service) bindNewSession(ctx context.Context, chatID int64, projectPath string) Reply {
	sid := s.resolver.Current()
	if sid == "" {
		return text("⚠️ Starting... (session detection pending)")
	}
	s.pane.SetTitle(ctx, sid)
	s.bindings.Bind(sid, chatID)
	return text(sessionMessage("🟢 New session", sid, projectPath))
}

// resolveProjectHash turns a short hash into (encoded id, resolved
// directory name, decoded path). ok is false for an expired hash.
func (s *Service) resolveProjectHash(hash string) (encoded, realName, path string, ok bool) {
	encoded, ok = s.hashes.Get(hash)
	if !ok {
		return "", "", "", false
	}
	realName = encoded
	if dir, err := s.store.ResolveProjectDir(encoded); err == nil {
		realName = filepath.Base(dir)
	}
	path, _ = s.store.DecodeProjectPath(realName)
	return encoded, realName, path, true
}

// parseCallbackData extracts the value after a payload prefix,
// rejecting empty or oversized values.
func parseCallbackData(data, prefix string) (string, bool) {
	if !strings.HasPrefix(data, prefix) {
		return "", false
	}
	value := data[len(prefix):]
	if value == "" || len(value) > maxCallbackValue {
		return "", false
	}
	return value, true
}

// sessionMessage formats a session-operation confirmation.
func sessionMessage(action, sessionID, projectPath string) string {
	msg := action + ": " + sessionID
	if projectPath != "" {
		msg += "\n📁 " + projectPath
	}
	return msg
}

func stateIcon(state syncgate.State) string {
	switch state {
	case syncgate.Paused:
		return "🟡"
	case syncgate.Terminated:
		return "🔴"
	default:
		return "🟢"
	}
}
