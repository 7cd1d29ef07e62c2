package store

import (
	"testing"
)

// fakeFS builds an isDir func over a fixed set of directories.
func fakeFS(dirs ...string) func(string) bool {
	set := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		set[d] = true
	}
	return func(path string) bool { return set[path] }
}

func newDecodeStore(dirs ...string) *Store {
	return New("/unused", WithDirExists(fakeFS(dirs...)))
}

func TestDecodeProjectPathNaive(t *testing.T) {
	s := newDecodeStore("/Users", "/Users/dev", "/Users/dev/app")

	path, ok := s.DecodeProjectPath("-Users-dev-app")
	if !ok || path != "/Users/dev/app" {
		t.Errorf("got %q, %v; want /Users/dev/app, true", path, ok)
	}
}

func TestDecodeProjectPathHyphenatedLeaf(t *testing.T) {
	s := newDecodeStore("/Users", "/Users/dev", "/Users/dev/my-app")

	path, ok := s.DecodeProjectPath("-Users-dev-my-app")
	if !ok || path != "/Users/dev/my-app" {
		t.Errorf("got %q, %v; want /Users/dev/my-app, true", path, ok)
	}
}

func TestDecodeProjectPathGreedyPrefersLongestRun(t *testing.T) {
	// Both /Users/a and /Users/a-b exist; the greedy walk must take
	// the longer run first so /Users/a-b/c resolves.
	s := newDecodeStore("/Users", "/Users/a", "/Users/a-b", "/Users/a-b/c")

	path, ok := s.DecodeProjectPath("-Users-a-b-c")
	if !ok || path != "/Users/a-b/c" {
		t.Errorf("got %q, %v; want /Users/a-b/c, true", path, ok)
	}
}

func TestDecodeProjectPathHyphenatedMiddle(t *testing.T) {
	s := newDecodeStore("/home", "/home/my-user", "/home/my-user/proj")

	path, ok := s.DecodeProjectPath("-home-my-user-proj")
	if !ok || path != "/home/my-user/proj" {
		t.Errorf("got %q, %v; want /home/my-user/proj, true", path, ok)
	}
}

func TestDecodeProjectPathUnresolvable(t *testing.T) {
	s := newDecodeStore("/Users")

	if path, ok := s.DecodeProjectPath("-Users-gone-project"); ok {
		t.Errorf("expected unresolvable, got %q", path)
	}
}

func TestDecodeProjectPathEmpty(t *testing.T) {
	s := newDecodeStore()

	if _, ok := s.DecodeProjectPath(""); ok {
		t.Error("empty id should be unresolvable")
	}
	if _, ok := s.DecodeProjectPath("---"); ok {
		t.Error("all-separator id should be unresolvable")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	// Round-trip holds within the reconstructible domain: every
	// intermediate directory of the real path exists.
	paths := []string{
		"/Users/dev/my-app",
		"/home/user/work/deep-nested-name",
	}
	var dirs []string
	for _, p := range paths {
		for i := 1; i < len(p); i++ {
			if p[i] == '/' {
				dirs = append(dirs, p[:i])
			}
		}
		dirs = append(dirs, p)
	}
	s := newDecodeStore(dirs...)

	for _, p := range paths {
		got, ok := s.DecodeProjectPath(EncodeProjectPath(p))
		if !ok || got != p {
			t.Errorf("round trip %q -> %q, %v", p, got, ok)
		}
	}
}
