// Package paths provides centralized path resolution for the bridge's
// state files and for the Claude Code data it observes.
//
// Everything lives under the Claude home directory (~/.claude by default,
// or $CLAUDE_CONFIG_DIR when set). The session records the bridge scans
// are written there by Claude Code itself (projects/<encoded>/<id>.jsonl);
// the bridge adds a handful of flat marker files alongside them. Deleting
// any bridge-owned file is safe — every store degrades to its default.
package paths

import (
	"os"
	"path/filepath"
	"sync"
)

var (
	mu       sync.Mutex
	resolved string
)

// resolve computes the Claude home directory once and caches it.
func resolve() (string, error) {
	mu.Lock()
	defer mu.Unlock()

	if resolved != "" {
		return resolved, nil
	}

	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		resolved = dir
		return resolved, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	resolved = filepath.Join(home, ".claude")
	return resolved, nil
}

// ClaudeHome returns the Claude home directory.
func ClaudeHome() (string, error) {
	return resolve()
}

// ProjectsDir returns the directory holding per-project session records.
// The directory is created by Claude Code, never by the bridge; callers
// must treat a missing directory as "no sessions".
func ProjectsDir() (string, error) {
	dir, err := resolve()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "projects"), nil
}

// ChatIDFile returns the path of the last-known chat id marker.
func ChatIDFile() (string, error) {
	return stateFile("telegram_chat_id")
}

// PendingFile returns the path of the pending-typing marker.
func PendingFile() (string, error) {
	return stateFile("telegram_pending")
}

// SessionChatMapFile returns the path of the session-to-chat JSON map.
func SessionChatMapFile() (string, error) {
	return stateFile("session_chat_map.json")
}

// CurrentSessionFile returns the path of the current-session marker.
func CurrentSessionFile() (string, error) {
	return stateFile("current_session_id")
}

// SyncPausedFile returns the path of the sync-paused marker.
func SyncPausedFile() (string, error) {
	return stateFile("telegram_sync_paused")
}

// SyncTerminatedFile returns the path of the sync-terminated marker.
func SyncTerminatedFile() (string, error) {
	return stateFile("telegram_sync_disabled")
}

// ConfigFilePath returns the full path to the bridge config file.
func ConfigFilePath() (string, error) {
	return stateFile("ccbridge.yaml")
}

// LogFilePath returns the path of the bridge log file.
func LogFilePath() (string, error) {
	return stateFile("ccbridge.log")
}

func stateFile(name string) (string, error) {
	dir, err := resolve()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Reset clears the cached path resolution. This is intended for testing only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resolved = ""
}
