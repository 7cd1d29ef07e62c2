// Package store provides read-only access to Claude Code's session
// records under the projects directory. Each project is a directory
// whose name encodes the project's filesystem path, and each session
// is an append-only JSONL file named after the session id. The store
// never writes; Claude Code owns the files.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultMaxAgeDays is the recency window for session validity.
const DefaultMaxAgeDays = 30

// ErrProjectNotFound is returned when no project directory matches
// a given encoded id or prefix.
var ErrProjectNotFound = errors.New("project not found")

// Session describes one session record file.
type Session struct {
	ID        string    // filename stem, assigned by Claude Code
	ProjectID string    // encoded name of the containing project directory
	ModTime   time.Time // file modification time
}

// Project describes one project directory with at least one valid session.
type Project struct {
	ID           string    // encoded directory name, e.g. "-Users-dev-my-app"
	SessionCount int       // valid sessions only
	ModTime      time.Time // max modification time across valid sessions
}

// Store scans the projects directory for session records.
type Store struct {
	projectsDir string
	maxAgeDays  int

	// isDir tests directory existence during path decoding.
	// Overridable for tests; defaults to the live filesystem.
	isDir func(path string) bool
}

// Option configures a Store.
type Option func(*Store)

// WithMaxAgeDays overrides the session recency window.
func WithMaxAgeDays(days int) Option {
	return func(s *Store) { s.maxAgeDays = days }
}

// WithDirExists overrides the directory-existence check used by
// DecodeProjectPath. Intended for testing.
func WithDirExists(fn func(path string) bool) Option {
	return func(s *Store) { s.isDir = fn }
}

// New creates a Store over the given projects directory.
func New(projectsDir string, opts ...Option) *Store {
	s := &Store{
		projectsDir: projectsDir,
		maxAgeDays:  DefaultMaxAgeDays,
		isDir: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && info.IsDir()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProjectsDir returns the directory this store scans.
func (s *Store) ProjectsDir() string {
	return s.projectsDir
}

// IsValidSession reports whether the record file at path is usable:
// non-empty, modified within the recency window, and its first line
// parses as JSON. Anything else is excluded from listings.
func (s *Store) IsValidSession(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.Size() == 0 {
		return false
	}
	if time.Since(info.ModTime()) > time.Duration(s.maxAgeDays)*24*time.Hour {
		return false
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	return json.Valid([]byte(line))
}

// RecentSessions returns valid sessions across all projects, ordered
// by modification time descending, truncated to limit.
func (s *Store) RecentSessions(limit int) []Session {
	var sessions []Session
	for _, dir := range s.projectDirs() {
		sessions = append(sessions, s.validSessionsIn(dir)...)
	}
	sortSessions(sessions)
	return truncateSessions(sessions, limit)
}

// SessionsForProject returns valid sessions for one project, ordered
// by modification time descending, truncated to limit. The encoded id
// may be truncated; it is resolved the same way as ResolveProjectDir.
func (s *Store) SessionsForProject(encodedID string, limit int) []Session {
	dir, err := s.ResolveProjectDir(encodedID)
	if err != nil {
		return nil
	}
	sessions := s.validSessionsIn(dir)
	sortSessions(sessions)
	return truncateSessions(sessions, limit)
}

// Projects returns one entry per project directory containing at least
// one valid session, ordered by latest modification time descending,
// truncated to limit.
func (s *Store) Projects(limit int) []Project {
	var projects []Project
	for _, dir := range s.projectDirs() {
		sessions := s.validSessionsIn(dir)
		if len(sessions) == 0 {
			continue
		}
		p := Project{ID: filepath.Base(dir), SessionCount: len(sessions)}
		for _, sess := range sessions {
			if sess.ModTime.After(p.ModTime) {
				p.ModTime = sess.ModTime
			}
		}
		projects = append(projects, p)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].ModTime.After(projects[j].ModTime)
	})
	if limit > 0 && len(projects) > limit {
		projects = projects[:limit]
	}
	return projects
}

// ResolveProjectDir resolves an encoded project id (possibly truncated
// by a size-constrained callback payload) to a project directory path.
// Exact match wins; otherwise the first directory whose name starts
// with the id is used. Returns ErrProjectNotFound when nothing matches.
func (s *Store) ResolveProjectDir(encodedID string) (string, error) {
	if encodedID == "" {
		return "", ErrProjectNotFound
	}
	exact := filepath.Join(s.projectsDir, encodedID)
	if info, err := os.Stat(exact); err == nil && info.IsDir() {
		return exact, nil
	}
	for _, dir := range s.projectDirs() {
		if strings.HasPrefix(filepath.Base(dir), encodedID) {
			return dir, nil
		}
	}
	return "", ErrProjectNotFound
}

// ProjectPathForSession returns the decoded project path for a session
// id, scanning all project directories. The second return is false when
// the session is unknown or its project path cannot be reconstructed.
func (s *Store) ProjectPathForSession(sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	for _, dir := range s.projectDirs() {
		if _, err := os.Stat(filepath.Join(dir, sessionID+".jsonl")); err == nil {
			return s.DecodeProjectPath(filepath.Base(dir))
		}
	}
	return "", false
}

// FreshestSession returns the id of the most recently modified session
// record across all projects, valid or not — file freshness is the one
// signal the bridge cannot itself desynchronize. Returns "" when the
// projects directory holds no records at all.
func (s *Store) FreshestSession() string {
	var freshest string
	var freshestMod time.Time
	for _, dir := range s.projectDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if freshest == "" || info.ModTime().After(freshestMod) {
				freshest = strings.TrimSuffix(entry.Name(), ".jsonl")
				freshestMod = info.ModTime()
			}
		}
	}
	return freshest
}

// projectDirs lists project directories, or nil when the projects
// directory does not exist.
func (s *Store) projectDirs() []string {
	entries, err := os.ReadDir(s.projectsDir)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(s.projectsDir, entry.Name()))
		}
	}
	return dirs
}

func (s *Store) validSessionsIn(dir string) []Session {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var sessions []Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !s.IsValidSession(path) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, Session{
			ID:        strings.TrimSuffix(entry.Name(), ".jsonl"),
			ProjectID: filepath.Base(dir),
			ModTime:   info.ModTime(),
		})
	}
	return sessions
}

func sortSessions(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].ModTime.After(sessions[j].ModTime)
	})
}

func truncateSessions(sessions []Session, limit int) []Session {
	if limit > 0 && len(sessions) > limit {
		return sessions[:limit]
	}
	return sessions
}
