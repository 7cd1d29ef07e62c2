package usage

import (
	"fmt"
	"sort"
	"strings"
)

// PathDecoder turns an encoded project id back into a real path for
// display. Undecodable ids fall back to the raw encoded form.
type PathDecoder interface {
	DecodeProjectPath(encodedID string) (string, bool)
}

// FormatReport renders a snapshot as a chat-friendly text report.
func FormatReport(snap *Snapshot, decoder PathDecoder) string {
	var lines []string
	lines = append(lines, "📊 Token Usage Report", "")

	// Today, with yesterday comparison and cost
	todayTotal := snap.Today.Total()
	change := changeIndicator(todayTotal, snap.Yesterday.Total())
	line := fmt.Sprintf("Today: %s (in:%s out:%s)%s",
		formatTokens(todayTotal), formatTokens(snap.Today.Input), formatTokens(snap.Today.Output), change)
	if cost := totalCost(snap.ByModelToday); cost > 0 {
		line += fmt.Sprintf(" ~$%.2f", cost)
	}
	lines = append(lines, line)

	for _, w := range []struct {
		label   string
		tokens  Tokens
		byModel map[string]Tokens
	}{
		{"Week", snap.Week, snap.ByModelWeek},
		{"Month", snap.Month, snap.ByModelMonth},
	} {
		line := fmt.Sprintf("%s: %s (in:%s out:%s)",
			w.label, formatTokens(w.tokens.Total()), formatTokens(w.tokens.Input), formatTokens(w.tokens.Output))
		if cost := totalCost(w.byModel); cost > 0 {
			line += fmt.Sprintf(" ~$%.2f", cost)
		}
		lines = append(lines, line)
	}

	if snap.CacheReadToday > 0 || snap.CacheCreationToday > 0 {
		line := fmt.Sprintf("Cache today: read %s, write %s",
			formatTokens(snap.CacheReadToday), formatTokens(snap.CacheCreationToday))
		if snap.Today.Input > 0 {
			rate := float64(snap.CacheReadToday) / float64(snap.CacheReadToday+snap.Today.Input) * 100
			line += fmt.Sprintf(", hit %.0f%%", rate)
		}
		lines = append(lines, line)
	}

	if len(snap.ByModelToday) > 0 {
		lines = append(lines, "", "📦 By Model (today)")
		grand := 0
		for _, t := range snap.ByModelToday {
			grand += t.Total()
		}
		if grand == 0 {
			grand = 1
		}
		for _, model := range sortedByTotal(snap.ByModelToday) {
			tokens := snap.ByModelToday[model]
			frac := float64(tokens.Total()) / float64(grand)
			line := fmt.Sprintf("  %s: %s %s %.0f%%",
				ShortModelName(model), formatTokens(tokens.Total()), bar(frac), frac*100)
			if cost := EstimateCost(model, tokens); cost > 0 {
				line += fmt.Sprintf(" ~$%.2f", cost)
			}
			lines = append(lines, line)
		}
	}

	if len(snap.ByProjectToday) > 0 {
		lines = append(lines, "", "📁 By Project (today)")
		grand := 0
		for _, n := range snap.ByProjectToday {
			grand += n
		}
		if grand == 0 {
			grand = 1
		}
		for _, proj := range sortedByCount(snap.ByProjectToday) {
			count := snap.ByProjectToday[proj]
			frac := float64(count) / float64(grand)
			lines = append(lines, fmt.Sprintf("  %s: %s %s %.0f%%",
				shortProjectName(proj, 2, decoder), formatTokens(count), bar(frac), frac*100))
		}
	}

	if len(snap.BySessionToday) > 0 {
		lines = append(lines, "", "🔗 By Session (today, top 3)")
		sessions := sortedByCount(snap.BySessionToday)
		if len(sessions) > 3 {
			sessions = sessions[:3]
		}
		for _, sid := range sessions {
			display := sid
			if len(display) > 8 {
				display = display[:8] + "…"
			}
			if proj := snap.SessionProject[sid]; proj != "" {
				lines = append(lines, fmt.Sprintf("  %s [%s]: %s",
					display, shortProjectName(proj, 1, decoder), formatTokens(snap.BySessionToday[sid])))
			} else {
				lines = append(lines, fmt.Sprintf("  %s: %s", display, formatTokens(snap.BySessionToday[sid])))
			}
		}
	}

	return strings.Join(lines, "\n")
}

// formatTokens renders a count with a K/M suffix; zero renders as "-".
func formatTokens(n int) string {
	switch {
	case n == 0:
		return "-"
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// bar renders a six-cell percentage bar like ████░░.
func bar(fraction float64) string {
	const width = 6
	filled := int(fraction*width + 0.5)
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// changeIndicator compares today against yesterday: ↑/↓ beyond ±5%,
// → within, empty when yesterday had no usage.
func changeIndicator(today, yesterday int) string {
	if yesterday == 0 {
		return ""
	}
	pct := float64(today-yesterday) / float64(yesterday) * 100
	switch {
	case pct > 5:
		return fmt.Sprintf(" ↑%.0f%%", pct)
	case pct < -5:
		return fmt.Sprintf(" ↓%.0f%%", -pct)
	default:
		return " →"
	}
}

// shortProjectName decodes an encoded project id and keeps the last
// n path components, falling back to the raw id.
func shortProjectName(encodedID string, n int, decoder PathDecoder) string {
	if decoder == nil {
		return encodedID
	}
	decoded, ok := decoder.DecodeProjectPath(encodedID)
	if !ok {
		return encodedID
	}
	parts := strings.Split(strings.TrimRight(decoded, "/"), "/")
	if len(parts) >= n {
		return strings.Join(parts[len(parts)-n:], "/")
	}
	return decoded
}

func sortedByTotal(m map[string]Tokens) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]].Total() != m[keys[j]].Total() {
			return m[keys[i]].Total() > m[keys[j]].Total()
		}
		return keys[i] < keys[j]
	})
	return keys
}

func sortedByCount(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
