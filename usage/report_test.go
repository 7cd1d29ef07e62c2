package usage

import (
	"strings"
	"testing"
)

type fakeDecoder map[string]string

func (d fakeDecoder) DecodeProjectPath(encodedID string) (string, bool) {
	path, ok := d[encodedID]
	return path, ok
}

func TestFormatTokens(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{0, "-"},
		{999, "999"},
		{1500, "1.5K"},
		{2_400_000, "2.4M"},
	}
	for _, tc := range cases {
		if got := formatTokens(tc.n); got != tc.want {
			t.Errorf("formatTokens(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestBar(t *testing.T) {
	if got := bar(0); got != "░░░░░░" {
		t.Errorf("bar(0) = %q", got)
	}
	if got := bar(0.5); got != "███░░░" {
		t.Errorf("bar(0.5) = %q", got)
	}
	if got := bar(1); got != "██████" {
		t.Errorf("bar(1) = %q", got)
	}
}

func TestChangeIndicator(t *testing.T) {
	if got := changeIndicator(100, 0); got != "" {
		t.Errorf("no yesterday usage should yield empty, got %q", got)
	}
	if got := changeIndicator(200, 100); got != " ↑100%" {
		t.Errorf("got %q", got)
	}
	if got := changeIndicator(50, 100); got != " ↓50%" {
		t.Errorf("got %q", got)
	}
	// Within ±5% is flat
	if got := changeIndicator(103, 100); got != " →" {
		t.Errorf("got %q", got)
	}
	if got := changeIndicator(97, 100); got != " →" {
		t.Errorf("got %q", got)
	}
}

func TestFormatReport(t *testing.T) {
	snap := &Snapshot{
		Today:     Tokens{Input: 10_000, Output: 2_000},
		Yesterday: Tokens{Input: 5_000, Output: 1_000},
		Week:      Tokens{Input: 50_000, Output: 10_000},
		Month:     Tokens{Input: 200_000, Output: 40_000},
		ByModelToday: map[string]Tokens{
			"claude-opus-4-5-20250514": {Input: 10_000, Output: 2_000},
		},
		ByModelWeek: map[string]Tokens{
			"claude-opus-4-5-20250514": {Input: 50_000, Output: 10_000},
		},
		ByModelMonth: map[string]Tokens{
			"claude-opus-4-5-20250514": {Input: 200_000, Output: 40_000},
		},
		ByProjectToday: map[string]int{"-Users-dev-my-app": 12_000},
		BySessionToday: map[string]int{"abcdef123456": 12_000},
		SessionProject: map[string]string{"abcdef123456": "-Users-dev-my-app"},
	}
	decoder := fakeDecoder{"-Users-dev-my-app": "/Users/dev/my-app"}

	report := FormatReport(snap, decoder)

	for _, want := range []string{
		"Today: 12.0K (in:10.0K out:2.0K) ↑100%",
		"Week: 60.0K",
		"Month: 240.0K",
		"Opus 4.5",
		"dev/my-app",   // last two path components
		"abcdef12…",    // truncated session id
		"[my-app]",     // session's project, one component
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestFormatReportEmptySnapshot(t *testing.T) {
	snap := &Snapshot{
		ByModelToday:   map[string]Tokens{},
		ByModelWeek:    map[string]Tokens{},
		ByModelMonth:   map[string]Tokens{},
		ByProjectToday: map[string]int{},
		BySessionToday: map[string]int{},
		SessionProject: map[string]string{},
	}
	report := FormatReport(snap, nil)
	if !strings.Contains(report, "Today: -") {
		t.Errorf("empty snapshot should render dashes:\n%s", report)
	}
	if strings.Contains(report, "By Model") {
		t.Error("empty snapshot should omit the model section")
	}
}

func TestShortProjectNameFallsBackToRawID(t *testing.T) {
	got := shortProjectName("-Users-gone-proj", 2, fakeDecoder{})
	if got != "-Users-gone-proj" {
		t.Errorf("got %q, want raw encoded id", got)
	}
}
