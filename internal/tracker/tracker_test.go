package tracker

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
)

// fakeHandle records its releases in a shared log.
type fakeHandle struct {
	name     string
	log      *[]string
	releases int
	fail     bool
}

func (h *fakeHandle) Release() error {
	h.releases++
	*h.log = append(*h.log, h.name)
	if h.fail {
		return errors.New("release failed: " + h.name)
	}
	return nil
}

func newHandles(log *[]string, names ...string) []*fakeHandle {
	out := make([]*fakeHandle, len(names))
	for i, n := range names {
		out[i] = &fakeHandle{name: n, log: log}
	}
	return out
}

// ============================================================
// Scoped release
// ============================================================

// TestTracker_ReleaseAllNewestFirst verifies that every tracked handle is
// released exactly once, in reverse acquisition order.
func TestTracker_ReleaseAllNewestFirst(t *testing.T) {
	var order []string
	hs := newHandles(&order, "document", "root", "children", "part")

	tr := New(nil, nil)
	for _, h := range hs {
		Track(tr, h)
	}
	require.Equal(t, 4, tr.Len())

	tr.ReleaseAll()

	assert.Equal(t, []string{"part", "children", "root", "document"}, order)
	for _, h := range hs {
		assert.Equal(t, 1, h.releases, "handle %s", h.name)
	}
	assert.Zero(t, tr.Len())

	// A second ReleaseAll is a no-op.
	tr.ReleaseAll()
	assert.Len(t, order, 4)
}

// TestTracker_DeferredScopeReleasesOnEarlyReturn exercises the deferred
// pattern used by every traversal unit.
func TestTracker_DeferredScopeReleasesOnEarlyReturn(t *testing.T) {
	var order []string
	hs := newHandles(&order, "a", "b")

	unit := func() error {
		tr := New(nil, nil)
		defer tr.ReleaseAll()
		Track(tr, hs[0])
		Track(tr, hs[1])
		return errors.New("node fault")
	}
	require.Error(t, unit())
	assert.Equal(t, []string{"b", "a"}, order)
}

// TestTracker_AddTwiceReleasesOnce verifies idempotent registration.
func TestTracker_AddTwiceReleasesOnce(t *testing.T) {
	var order []string
	h := newHandles(&order, "x")[0]

	tr := New(nil, nil)
	tr.Add(h)
	tr.Add(h)
	assert.Equal(t, 1, tr.Len())

	tr.ReleaseAll()
	assert.Equal(t, 1, h.releases)
}

// TestTracker_NilHandleIgnored verifies that a nil handle is never tracked.
func TestTracker_NilHandleIgnored(t *testing.T) {
	tr := New(nil, nil)
	tr.Add(nil)
	tr.Detach(nil)
	tr.Release(nil)
	assert.False(t, tr.Tracked(nil))
	assert.Zero(t, tr.Len())
	tr.ReleaseAll()
}

// ============================================================
// Ownership transfer
// ============================================================

// TestTracker_DetachTransfersOwnership verifies that a detached handle is not
// released by the scope and becomes the caller's responsibility.
func TestTracker_DetachTransfersOwnership(t *testing.T) {
	var order []string
	hs := newHandles(&order, "kept", "temp")

	tr := New(nil, nil)
	Track(tr, hs[0])
	Track(tr, hs[1])
	tr.Detach(hs[0])
	assert.False(t, tr.Tracked(hs[0]))

	tr.ReleaseAll()
	assert.Equal(t, []string{"temp"}, order)
	assert.Zero(t, hs[0].releases)

	require.NoError(t, hs[0].Release())
	assert.Equal(t, 1, hs[0].releases)
}

// TestTracker_ReleaseEarly verifies Release drops a handle immediately and
// ReleaseAll skips it afterwards.
func TestTracker_ReleaseEarly(t *testing.T) {
	var order []string
	hs := newHandles(&order, "first", "second")

	tr := New(nil, nil)
	Track(tr, hs[0])
	Track(tr, hs[1])
	tr.Release(hs[0])
	tr.Release(hs[0])
	assert.Equal(t, []string{"first"}, order)

	tr.ReleaseAll()
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 1, hs[0].releases)
}

// ============================================================
// Release failures
// ============================================================

// TestTracker_ReleaseFailuresAreLoggedNotReturned verifies that failing
// releases never stop the remaining releases and are reported at Warn.
func TestTracker_ReleaseFailuresAreLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := metrics.New()

	var order []string
	hs := newHandles(&order, "a", "b", "c")
	hs[0].fail = true
	hs[2].fail = true

	tr := New(zap.New(core), m)
	for _, h := range hs {
		Track(tr, h)
	}
	tr.ReleaseAll()

	assert.Equal(t, []string{"c", "b", "a"}, order)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "native handles failed to release", entry.Message)
	assert.EqualValues(t, 2, entry.ContextMap()["failures"])

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HandlesTracked))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.HandlesReleased))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReleaseFailures))
}

// TestTracker_SingleReleaseFailureLogged verifies Release reports a failing
// handle without returning an error.
func TestTracker_SingleReleaseFailureLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var order []string
	h := newHandles(&order, "broken")[0]
	h.fail = true

	tr := New(zap.New(core), nil)
	Track(tr, h)
	tr.Release(h)

	assert.Equal(t, 1, logs.FilterMessage("native handle failed to release").Len())
	assert.Zero(t, tr.Len())
}
