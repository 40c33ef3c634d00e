// Package tracker implements scoped ownership of native handles.
//
// A Tracker is created per traversal unit and released with a deferred
// ReleaseAll, so every handle acquired in the unit is released on every exit
// path:
//
//	t := tracker.New(log, m)
//	defer t.ReleaseAll()
//	bodies := tracker.Track(t, collection)
//
// Handles that outlive the unit (for example the part referenced by an
// extracted record) are handed to their new owner with Detach.
package tracker

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
)

// Tracker owns a set of native handles. It is not safe for concurrent use;
// like the native session it serves, it belongs to one goroutine.
type Tracker struct {
	log     *zap.Logger
	metrics *metrics.Metrics

	// order keeps acquisition order so ReleaseAll releases newest first,
	// the same order deferred releases would run in.
	order []native.Handle
	live  map[native.Handle]struct{}
}

// New creates an empty tracker. Both arguments may be nil.
func New(log *zap.Logger, m *metrics.Metrics) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		log:     log,
		metrics: m,
		live:    map[native.Handle]struct{}{},
	}
}

// Track registers h with t and returns it unchanged, so acquisition and
// registration fit in one expression. A nil handle is returned as is.
func Track[H native.Handle](t *Tracker, h H) H {
	t.Add(h)
	return h
}

// Add registers h for later release. Registering a handle twice is a no-op.
func (t *Tracker) Add(h native.Handle) {
	if h == nil {
		return
	}
	if _, ok := t.live[h]; ok {
		return
	}
	t.live[h] = struct{}{}
	t.order = append(t.order, h)
	t.metrics.Tracked()
}

// Tracked reports whether h is currently owned by t.
func (t *Tracker) Tracked(h native.Handle) bool {
	if h == nil {
		return false
	}
	_, ok := t.live[h]
	return ok
}

// Len returns the number of handles still owned by t.
func (t *Tracker) Len() int { return len(t.live) }

// Detach removes h from t without releasing it. The caller becomes the owner.
func (t *Tracker) Detach(h native.Handle) {
	if h == nil {
		return
	}
	delete(t.live, h)
}

// Release releases h immediately if t owns it. Releasing an untracked or
// already released handle does nothing. Release failures are logged, never
// returned.
func (t *Tracker) Release(h native.Handle) {
	if !t.Tracked(h) {
		return
	}
	delete(t.live, h)
	if err := t.release(h); err != nil {
		t.log.Warn("native handle failed to release", zap.Error(err))
	}
}

// ReleaseAll releases every handle still owned by t and resets it. It is
// safe to call more than once.
func (t *Tracker) ReleaseAll() {
	var errs error
	for i := len(t.order) - 1; i >= 0; i-- {
		h := t.order[i]
		if _, ok := t.live[h]; !ok {
			continue
		}
		delete(t.live, h)
		errs = multierr.Append(errs, t.release(h))
	}
	t.order = t.order[:0]
	if errs != nil {
		t.log.Warn("native handles failed to release",
			zap.Int("failures", len(multierr.Errors(errs))),
			zap.Error(errs))
	}
}

func (t *Tracker) release(h native.Handle) error {
	err := h.Release()
	t.metrics.Released(err)
	return err
}
