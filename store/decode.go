package store

import "strings"

// DecodeProjectPath reverses Claude Code's lossy project-path encoding
// (/Users/foo/my-app -> -Users-foo-my-app). Hyphens that belong to a
// directory name are indistinguishable from path separators, so the
// reconstruction consults the filesystem: first the naive transform,
// then a greedy longest-match walk that prefers the longest run of
// hyphen-joined segments forming an existing directory at each step.
//
// The greedy heuristic is correct whenever component names don't
// collide ambiguously with valid shorter prefixes; that is a known
// limitation of the encoding, not of this decoder. The second return
// is false when no reconstruction exists on disk — callers should fall
// back to displaying the raw encoded id.
func (s *Store) DecodeProjectPath(encodedID string) (string, bool) {
	name := strings.TrimLeft(encodedID, "-")
	if name == "" {
		return "", false
	}

	// Fast path: simple replacement works
	simple := "/" + strings.ReplaceAll(name, "-", "/")
	if s.isDir(simple) {
		return simple, true
	}

	parts := strings.Split(name, "-")
	current := ""
	i := 0
	for i < len(parts) {
		found := false
		for j := len(parts); j > i; j-- {
			candidate := current + "/" + strings.Join(parts[i:j], "-")
			if s.isDir(candidate) {
				current = candidate
				i = j
				found = true
				break
			}
		}
		if !found {
			// No multi-segment run exists; take a single segment
			current = current + "/" + parts[i]
			i++
		}
	}

	if s.isDir(current) {
		return current, true
	}
	return "", false
}

// EncodeProjectPath applies Claude Code's project-path encoding.
func EncodeProjectPath(path string) string {
	return strings.ReplaceAll(path, "/", "-")
}
