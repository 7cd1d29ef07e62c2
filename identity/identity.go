// Package identity determines which Claude session is currently active
// in the pane by cross-validating three independent, individually
// unreliable signals: the tmux window title, the current-session marker
// file, and the most recently modified session record on disk.
//
// The title and the marker are both written by this bridge and can go
// stale — the title does not survive pane destruction, and the marker
// does not survive session switches done outside the bridge. File
// freshness is the one signal the bridge cannot itself desynchronize,
// so it serves as the tie-breaker.
package identity

// Resolver cross-validates session identity signals.
type Resolver struct {
	// PaneTitle returns the pane's window title, or "" when the pane
	// is missing or carries a generic shell name.
	PaneTitle func() string
	// Marker returns the current-session marker file contents, or "".
	Marker func() string
	// Freshest returns the id of the most recently modified session
	// record across all projects, or "".
	Freshest func() string
}

// New creates a Resolver over the three signal sources.
func New(paneTitle, marker, freshest func() string) *Resolver {
	return &Resolver{PaneTitle: paneTitle, Marker: marker, Freshest: freshest}
}

// Current returns the best-guess current session id, or "" when no
// signal is available. Precedence, highest confidence first:
//
//  1. Title and marker agree — two independent writers, return it.
//  2. Title matches the freshest record.
//  3. Marker matches the freshest record.
//  4. The freshest record exists at all — freshness beats stale signals.
//  5. Whichever of title/marker is non-empty, title preferred. This is
//     a low-confidence fallback: some signal beats none.
func (r *Resolver) Current() string {
	title := r.PaneTitle()
	marker := r.Marker()

	if title != "" && title == marker {
		return title
	}

	freshest := r.Freshest()

	if title != "" && title == freshest {
		return title
	}
	if marker != "" && marker == freshest {
		return marker
	}
	if freshest != "" {
		return freshest
	}

	if title != "" {
		return title
	}
	return marker
}
