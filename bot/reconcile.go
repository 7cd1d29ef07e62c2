package bot

import (
	"context"
	"time"

	"github.com/zhubert/ccbridge/binding"
	"github.com/zhubert/ccbridge/identity"
	"github.com/zhubert/ccbridge/logger"
)

// Reconciler watches for session changes the bridge did not cause,
// typically the operator starting or switching sessions at the
// terminal. When the resolved identity changes and the new session has
// no binding, it is bound to the last-known chat so replies keep
// flowing without a manual /bind.
type Reconciler struct {
	resolver *identity.Resolver
	bindings *binding.Store
	setTitle func(sessionID string)
	interval time.Duration

	lastKnown string
}

// NewReconciler creates a Reconciler polling on the given interval.
func NewReconciler(resolver *identity.Resolver, bindings *binding.Store,
	interval time.Duration, setTitle func(sessionID string)) *Reconciler {
	return &Reconciler{
		resolver: resolver,
		bindings: bindings,
		setTitle: setTitle,
		interval: interval,
	}
}

// Run polls until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Step()
		}
	}
}

// Step performs one reconciliation pass.
func (r *Reconciler) Step() {
	sid := r.resolver.Current()
	if sid == "" || sid == r.lastKnown {
		return
	}
	r.lastKnown = sid

	if _, ok := r.bindings.ChatFor(sid); ok {
		return
	}
	chatID, ok := r.bindings.LastChat()
	if !ok {
		return
	}
	logger.WithComponent("reconciler").Info("auto-binding new session", "sessionID", sid, "chatID", chatID)
	r.bindings.Bind(sid, chatID)
	r.setTitle(sid)
}
