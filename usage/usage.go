// Package usage aggregates token usage from Claude Code's append-only
// session records and renders it as a chat-friendly report. Records
// are bucketed by local calendar day against precomputed boundary
// strings, so an entry counts toward "today" exactly when its ISO
// timestamp's date prefix matches the local date.
package usage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zhubert/ccbridge/logger"
)

// DefaultWindowDays is the default scan window.
const DefaultWindowDays = 30

// syntheticModel marks non-billable synthetic entries, excluded entirely.
const syntheticModel = "<synthetic>"

// Tokens is an input/output token pair.
type Tokens struct {
	Input  int
	Output int
}

// Total returns input plus output tokens.
func (t Tokens) Total() int {
	return t.Input + t.Output
}

func (t *Tokens) add(input, output int) {
	t.Input += input
	t.Output += output
}

// Snapshot is an aggregated usage view. Project and session breakdowns
// are today-scoped only; the longer windows carry totals and per-model
// splits.
type Snapshot struct {
	Today     Tokens
	Yesterday Tokens
	Week      Tokens
	Month     Tokens

	ByModelToday map[string]Tokens
	ByModelWeek  map[string]Tokens
	ByModelMonth map[string]Tokens

	ByProjectToday map[string]int // encoded project id -> total tokens
	BySessionToday map[string]int // session id -> total tokens
	SessionProject map[string]string

	CacheReadToday     int
	CacheCreationToday int
}

// Aggregator scans session records for usage entries.
type Aggregator struct {
	projectsDir string

	// now is replaceable so tests can pin the day boundaries.
	now func() time.Time
}

// NewAggregator creates an Aggregator over the projects directory.
func NewAggregator(projectsDir string) *Aggregator {
	return &Aggregator{projectsDir: projectsDir, now: time.Now}
}

// record is the subset of a session record line the aggregator reads.
type record struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Model string       `json:"model"`
		Usage *recordUsage `json:"usage"`
	} `json:"message"`
}

type recordUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// Scan aggregates usage across all session records modified within the
// window. One extra day of file-mtime slack absorbs timezone boundary
// effects; the per-entry day bucketing is what decides the windows.
// Unparseable lines are skipped silently.
func (a *Aggregator) Scan(windowDays int) *Snapshot {
	snap := &Snapshot{
		ByModelToday:   make(map[string]Tokens),
		ByModelWeek:    make(map[string]Tokens),
		ByModelMonth:   make(map[string]Tokens),
		ByProjectToday: make(map[string]int),
		BySessionToday: make(map[string]int),
		SessionProject: make(map[string]string),
	}

	entries, err := os.ReadDir(a.projectsDir)
	if err != nil {
		return snap
	}

	now := a.now()
	cutoff := now.Add(-time.Duration(windowDays+1) * 24 * time.Hour)

	const dayFormat = "2006-01-02"
	todayStr := now.Format(dayFormat)
	yesterdayStr := now.AddDate(0, 0, -1).Format(dayFormat)
	day7Str := now.AddDate(0, 0, -7).Format(dayFormat)
	day30Str := now.AddDate(0, 0, -30).Format(dayFormat)

	for _, projectEntry := range entries {
		if !projectEntry.IsDir() {
			continue
		}
		projectID := projectEntry.Name()
		dir := filepath.Join(a.projectsDir, projectID)

		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".jsonl") {
				continue
			}
			info, err := file.Info()
			if err != nil || info.ModTime().Before(cutoff) {
				continue
			}
			sessionID := strings.TrimSuffix(file.Name(), ".jsonl")
			a.scanFile(filepath.Join(dir, file.Name()), projectID, sessionID,
				todayStr, yesterdayStr, day7Str, day30Str, snap)
		}
	}
	return snap
}

func (a *Aggregator) scanFile(path, projectID, sessionID, todayStr, yesterdayStr, day7Str, day30Str string, snap *Snapshot) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		// Cheap prefilter: most lines carry no usage sub-record
		if !strings.Contains(string(line), `"usage"`) {
			continue
		}

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Type != "assistant" || rec.Message.Usage == nil {
			continue
		}
		model := rec.Message.Model
		if model == syntheticModel {
			continue
		}
		if len(rec.Timestamp) < 10 {
			continue
		}
		day := rec.Timestamp[:10]
		u := rec.Message.Usage
		total := u.InputTokens + u.OutputTokens

		if day >= day30Str {
			snap.Month.add(u.InputTokens, u.OutputTokens)
			addModel(snap.ByModelMonth, model, u)
		}
		if day >= day7Str {
			snap.Week.add(u.InputTokens, u.OutputTokens)
			addModel(snap.ByModelWeek, model, u)
		}
		if day == yesterdayStr {
			snap.Yesterday.add(u.InputTokens, u.OutputTokens)
		}
		if day == todayStr {
			snap.Today.add(u.InputTokens, u.OutputTokens)
			addModel(snap.ByModelToday, model, u)
			snap.ByProjectToday[projectID] += total
			snap.BySessionToday[sessionID] += total
			snap.SessionProject[sessionID] = projectID
			snap.CacheReadToday += u.CacheReadInputTokens
			snap.CacheCreationToday += u.CacheCreationInputTokens
		}
	}
	if err := scanner.Err(); err != nil {
		logger.WithComponent("usage").Debug("scan stopped early", "path", path, "error", err)
	}
}

func addModel(m map[string]Tokens, model string, u *recordUsage) {
	t := m[model]
	t.add(u.InputTokens, u.OutputTokens)
	m[model] = t
}
