package bot

import (
	"time"

	"github.com/zhubert/ccbridge/syncgate"
)

// Typist keeps Telegram's typing indicator alive while the pane works.
// The indicator expires after a few seconds on Telegram's side, so a
// goroutine re-sends the action on an interval until the pending marker
// disappears. The marker is cleared externally, by the Claude stop hook
// or an interrupt, which ends the loop on its next poll.
type Typist struct {
	gate     *syncgate.Gate
	notify   func(chatID int64)
	interval time.Duration

	// sleep is replaceable so tests run without real delays.
	sleep func(time.Duration)
}

// NewTypist creates a Typist sending via notify on the given interval.
func NewTypist(gate *syncgate.Gate, interval time.Duration, notify func(chatID int64)) *Typist {
	return &Typist{gate: gate, notify: notify, interval: interval, sleep: time.Sleep}
}

// Start marks the pending indicator and launches the typing loop.
func (t *Typist) Start(chatID int64) {
	t.gate.MarkPending()
	go t.loop(chatID)
}

// loop sends the typing action until the pending marker is gone.
func (t *Typist) loop(chatID int64) {
	for t.gate.Pending() {
		t.notify(chatID)
		t.sleep(t.interval)
	}
}
