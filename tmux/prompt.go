package tmux

import "strings"

// genericWindowNames are window titles that carry no session identity.
var genericWindowNames = map[string]bool{
	"bash":   true,
	"zsh":    true,
	"sh":     true,
	"python": true,
	"":       true,
}

// promptGlyphs are prompt characters used by common alternate shells
// (starship, oh-my-zsh themes) that don't end the line with $/%/#.
var promptGlyphs = []string{"❯", "➜"}

// IsShellPrompt reports whether the captured pane content ends at a
// shell prompt. Only the last non-blank line is inspected: a trailing
// $, % or # means a standard shell; a prompt glyph anywhere in the
// line covers the alternate shells.
func IsShellPrompt(content string) bool {
	lines := strings.Split(content, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, "$") || strings.HasSuffix(line, "%") || strings.HasSuffix(line, "#") {
			return true
		}
		for _, glyph := range promptGlyphs {
			if strings.Contains(line, glyph) {
				return true
			}
		}
		return false
	}
	return false
}

// FilterWindowTitle returns the title when it is meaningful, or ""
// when it is empty or a generic shell name.
func FilterWindowTitle(title string) string {
	if genericWindowNames[title] {
		return ""
	}
	return title
}
