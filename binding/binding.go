// Package binding maintains the durable association between Claude
// sessions and Telegram chats: a JSON map file (session id -> chat id),
// the current-session marker used as a secondary identity signal, and
// the last-known chat marker the reconciliation loop binds against.
//
// Writes are best-effort. Binding failure is never fatal to a request;
// it is logged and the request proceeds. Malformed files degrade to an
// empty map.
package binding

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/zhubert/ccbridge/logger"
)

// AutoBindResult describes the outcome of the auto-bind policy check.
type AutoBindResult int

const (
	// Bound means the session had no binding and is now bound to the caller.
	Bound AutoBindResult = iota
	// AlreadyOurs means the session was already bound to the caller.
	AlreadyOurs
	// BoundElsewhere means the session is bound to a different chat;
	// the caller must explicitly rebind.
	BoundElsewhere
)

// Store persists session-to-chat bindings as flat files.
type Store struct {
	mapFile     string
	currentFile string
	chatIDFile  string
}

// New creates a Store over the given file paths.
func New(mapFile, currentFile, chatIDFile string) *Store {
	return &Store{
		mapFile:     mapFile,
		currentFile: currentFile,
		chatIDFile:  chatIDFile,
	}
}

// Bind upserts the session-to-chat mapping and overwrites the
// current-session marker. Last write wins; I/O errors are logged,
// never raised — binding is best-effort.
func (s *Store) Bind(sessionID string, chatID int64) {
	if sessionID == "" {
		return
	}
	log := logger.WithComponent("binding")

	m := s.load()
	m[sessionID] = strconv.FormatInt(chatID, 10)
	data, err := json.MarshalIndent(m, "", "  ")
	if err == nil {
		err = os.WriteFile(s.mapFile, data, 0644)
	}
	if err != nil {
		log.Warn("failed to save session-chat map", "error", err)
	}

	if err := os.WriteFile(s.currentFile, []byte(sessionID), 0644); err != nil {
		log.Warn("failed to write current session marker", "error", err)
	}
}

// ChatFor returns the chat id bound to a session.
func (s *Store) ChatFor(sessionID string) (int64, bool) {
	if sessionID == "" {
		return 0, false
	}
	raw, ok := s.load()[sessionID]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// CheckAutoBind applies the auto-bind policy for an inbound message:
// an unbound session is bound to the sender; a session bound to a
// different chat is refused; a session bound to the sender proceeds.
func (s *Store) CheckAutoBind(sessionID string, chatID int64) AutoBindResult {
	bound, ok := s.ChatFor(sessionID)
	if !ok {
		s.Bind(sessionID, chatID)
		return Bound
	}
	if bound == chatID {
		return AlreadyOurs
	}
	return BoundElsewhere
}

// CurrentSession returns the current-session marker contents.
func (s *Store) CurrentSession() string {
	data, err := os.ReadFile(s.currentFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// RememberChat records the last-known chat id. Called on every inbound
// message so the reconciliation loop has a chat to auto-bind against.
func (s *Store) RememberChat(chatID int64) {
	if err := os.WriteFile(s.chatIDFile, []byte(strconv.FormatInt(chatID, 10)), 0644); err != nil {
		logger.WithComponent("binding").Warn("failed to write chat id marker", "error", err)
	}
}

// LastChat returns the last-known chat id.
func (s *Store) LastChat() (int64, bool) {
	data, err := os.ReadFile(s.chatIDFile)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// load reads the map file, degrading to an empty map on any error.
func (s *Store) load() map[string]string {
	m := make(map[string]string)
	data, err := os.ReadFile(s.mapFile)
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		logger.WithComponent("binding").Warn("malformed session-chat map, treating as empty", "error", err)
		return make(map[string]string)
	}
	return m
}
