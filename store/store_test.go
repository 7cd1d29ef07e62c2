package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSession creates a session record and backdates its mtime by age.
func writeSession(t *testing.T, projectsDir, projectID, sessionID, content string, age time.Duration) string {
	t.Helper()
	dir := filepath.Join(projectsDir, projectID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIsValidSession(t *testing.T) {
	projectsDir := t.TempDir()
	s := New(projectsDir)

	cases := []struct {
		name    string
		content string
		age     time.Duration
		want    bool
	}{
		{"valid", `{"type":"user"}` + "\n", time.Hour, true},
		{"empty file", "", time.Hour, false},
		{"unparseable first line", "not json\n", time.Hour, false},
		{"older than window", `{"type":"user"}` + "\n", 31 * 24 * time.Hour, false},
		{"just inside window", `{"type":"user"}` + "\n", 29 * 24 * time.Hour, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeSession(t, projectsDir, "-Users-dev-app", "sess-"+tc.name, tc.content, tc.age)
			if got := s.IsValidSession(path); got != tc.want {
				t.Errorf("IsValidSession = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsValidSessionMissingFile(t *testing.T) {
	s := New(t.TempDir())
	if s.IsValidSession("/no/such/file.jsonl") {
		t.Error("IsValidSession should be false for a missing file")
	}
}

func TestRecentSessionsOrderingAndLimit(t *testing.T) {
	projectsDir := t.TempDir()
	s := New(projectsDir)

	writeSession(t, projectsDir, "-Users-dev-a", "old", `{}`+"\n", 3*time.Hour)
	writeSession(t, projectsDir, "-Users-dev-b", "mid", `{}`+"\n", 2*time.Hour)
	writeSession(t, projectsDir, "-Users-dev-a", "new", `{}`+"\n", time.Hour)
	writeSession(t, projectsDir, "-Users-dev-b", "invalid", "", time.Minute)

	sessions := s.RecentSessions(10)
	if len(sessions) != 3 {
		t.Fatalf("len = %d, want 3 (invalid excluded)", len(sessions))
	}
	wantOrder := []string{"new", "mid", "old"}
	for i, want := range wantOrder {
		if sessions[i].ID != want {
			t.Errorf("sessions[%d].ID = %q, want %q", i, sessions[i].ID, want)
		}
	}

	limited := s.RecentSessions(2)
	if len(limited) != 2 || limited[0].ID != "new" || limited[1].ID != "mid" {
		t.Errorf("limit not respected: %+v", limited)
	}
}

func TestSessionsForProject(t *testing.T) {
	projectsDir := t.TempDir()
	s := New(projectsDir)

	writeSession(t, projectsDir, "-Users-dev-a", "s1", `{}`+"\n", 2*time.Hour)
	writeSession(t, projectsDir, "-Users-dev-a", "s2", `{}`+"\n", time.Hour)
	writeSession(t, projectsDir, "-Users-dev-b", "other", `{}`+"\n", time.Minute)

	sessions := s.SessionsForProject("-Users-dev-a", 10)
	if len(sessions) != 2 {
		t.Fatalf("len = %d, want 2", len(sessions))
	}
	if sessions[0].ID != "s2" || sessions[1].ID != "s1" {
		t.Errorf("wrong order: %+v", sessions)
	}

	if got := s.SessionsForProject("-Users-no-such", 10); got != nil {
		t.Errorf("unknown project should return nil, got %+v", got)
	}
}

func TestProjects(t *testing.T) {
	projectsDir := t.TempDir()
	s := New(projectsDir)

	writeSession(t, projectsDir, "-Users-dev-a", "s1", `{}`+"\n", 2*time.Hour)
	writeSession(t, projectsDir, "-Users-dev-a", "s2", `{}`+"\n", time.Hour)
	writeSession(t, projectsDir, "-Users-dev-b", "s3", `{}`+"\n", 30*time.Minute)
	writeSession(t, projectsDir, "-Users-dev-empty", "bad", "", time.Minute)

	projects := s.Projects(10)
	if len(projects) != 2 {
		t.Fatalf("len = %d, want 2 (project with only invalid sessions excluded)", len(projects))
	}
	if projects[0].ID != "-Users-dev-b" {
		t.Errorf("projects[0].ID = %q, want -Users-dev-b", projects[0].ID)
	}
	if projects[1].ID != "-Users-dev-a" || projects[1].SessionCount != 2 {
		t.Errorf("projects[1] = %+v, want -Users-dev-a with 2 sessions", projects[1])
	}
}

func TestResolveProjectDir(t *testing.T) {
	projectsDir := t.TempDir()
	s := New(projectsDir)
	writeSession(t, projectsDir, "-Users-dev-my-app", "s1", `{}`+"\n", time.Hour)

	dir, err := s.ResolveProjectDir("-Users-dev-my-app")
	if err != nil {
		t.Fatalf("exact match: %v", err)
	}
	if filepath.Base(dir) != "-Users-dev-my-app" {
		t.Errorf("resolved %q", dir)
	}

	// Truncated id resolves by prefix
	dir, err = s.ResolveProjectDir("-Users-dev-my")
	if err != nil {
		t.Fatalf("prefix match: %v", err)
	}
	if filepath.Base(dir) != "-Users-dev-my-app" {
		t.Errorf("prefix resolved %q", dir)
	}

	if _, err := s.ResolveProjectDir("-Users-nothing"); err != ErrProjectNotFound {
		t.Errorf("err = %v, want ErrProjectNotFound", err)
	}
	if _, err := s.ResolveProjectDir(""); err != ErrProjectNotFound {
		t.Errorf("empty id: err = %v, want ErrProjectNotFound", err)
	}
}

func TestFreshestSession(t *testing.T) {
	projectsDir := t.TempDir()
	s := New(projectsDir)

	if got := s.FreshestSession(); got != "" {
		t.Errorf("empty tree: got %q, want empty", got)
	}

	writeSession(t, projectsDir, "-Users-dev-a", "older", `{}`+"\n", time.Hour)
	writeSession(t, projectsDir, "-Users-dev-b", "newest", `{}`+"\n", time.Minute)

	if got := s.FreshestSession(); got != "newest" {
		t.Errorf("FreshestSession = %q, want newest", got)
	}
}

func TestProjectPathForSession(t *testing.T) {
	projectsDir := t.TempDir()
	realProject := t.TempDir() // exists on disk, so decoding succeeds
	encoded := EncodeProjectPath(realProject)

	s := New(projectsDir)
	writeSession(t, projectsDir, encoded, "abc123", `{}`+"\n", time.Hour)

	path, ok := s.ProjectPathForSession("abc123")
	if !ok {
		t.Fatal("expected project path for known session")
	}
	if path != realProject {
		t.Errorf("path = %q, want %q", path, realProject)
	}

	if _, ok := s.ProjectPathForSession("unknown"); ok {
		t.Error("unknown session should not resolve")
	}
	if _, ok := s.ProjectPathForSession(""); ok {
		t.Error("empty session id should not resolve")
	}
}

// End-to-end scenario from the listing contract: one valid session,
// modified seconds ago, in a project whose real path exists on disk.
func TestEndToEndProjectListing(t *testing.T) {
	base := t.TempDir()
	realProject := filepath.Join(base, "my-app")
	if err := os.MkdirAll(realProject, 0755); err != nil {
		t.Fatal(err)
	}
	encoded := EncodeProjectPath(realProject)

	projectsDir := t.TempDir()
	s := New(projectsDir)
	writeSession(t, projectsDir, encoded, "abc123", `{"type":"user"}`+"\n", 5*time.Second)

	projects := s.Projects(10)
	if len(projects) != 1 {
		t.Fatalf("len = %d, want 1", len(projects))
	}
	if projects[0].ID != encoded || projects[0].SessionCount != 1 {
		t.Errorf("project = %+v", projects[0])
	}

	decoded, ok := s.DecodeProjectPath(encoded)
	if !ok || decoded != realProject {
		t.Errorf("DecodeProjectPath = %q, %v; want %q, true", decoded, ok, realProject)
	}
}
