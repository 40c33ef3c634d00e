package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StinkyLord/cad-bom-builder/internal/config"
	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
	"github.com/StinkyLord/cad-bom-builder/internal/model"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
	"github.com/StinkyLord/cad-bom-builder/internal/native/snapshot"
	"github.com/StinkyLord/cad-bom-builder/internal/occlusion"
)

func fixturePath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "testdata", "assemblies", "table.yaml")
}

// open returns a scanner with the fixture as the active document and checks
// for leaked handles when the test ends.
func open(t *testing.T) (*Scanner, *snapshot.Session) {
	t.Helper()
	session := snapshot.NewSession()
	s := New(session, config.Default(), nil, metrics.New())
	require.NoError(t, s.Open(context.Background(), fixturePath()))
	t.Cleanup(func() {
		m := session.Active()
		assert.Zero(t, m.Ledger().Live(), "leaked handles: %v", m.Ledger().Outstanding())
	})
	return s, session
}

// ============================================================
// Session handling
// ============================================================

func TestScanner_NoActiveDocument(t *testing.T) {
	s := New(snapshot.NewSession(), config.Default(), nil, nil)
	_, err := s.Extract(context.Background())
	assert.ErrorIs(t, err, native.ErrSessionUnavailable)
	var op *native.OpError
	require.ErrorAs(t, err, &op)
	assert.Equal(t, "extract", op.Op)
}

func TestScanner_NilSession(t *testing.T) {
	s := New(nil, config.Default(), nil, nil)
	_, _, err := s.Locate(context.Background(), model.NewKey("Панель", "ДТ.001", false, "", 0))
	assert.ErrorIs(t, err, native.ErrSessionUnavailable)
}

// TestScanner_WaitBoundedByContext verifies a caller gives up waiting for a
// busy session when its context ends.
func TestScanner_WaitBoundedByContext(t *testing.T) {
	s, _ := open(t)
	require.NoError(t, s.queue.Acquire(context.Background(), 1))
	defer s.queue.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Extract(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "err = %v", err)
}

// ============================================================
// Operations
// ============================================================

// TestScanner_ExtractLocateFocusOccluders runs every operation end to end on
// the fixture.
func TestScanner_ExtractLocateFocusOccluders(t *testing.T) {
	s, session := open(t)
	ctx := context.Background()

	res, err := s.Extract(ctx)
	require.NoError(t, err)
	require.Len(t, res.Records, 8)
	assert.Equal(t, fixturePath(), res.Source)
	require.Len(t, res.Summary.Sheet, 2)

	panel := res.Records[0]
	obj, ok, err := s.Locate(ctx, panel.Key())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, native.SameObject(panel.Object, obj))
	require.NoError(t, res.Release())

	center, scale, err := s.Focus(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), scale)
	view := session.Active().View()
	assert.Equal(t, center, view.Origin())
	assert.Equal(t, float32(0.5), view.Scale)

	var trace occlusion.RayTrace
	parts, err := s.Occluders(ctx, obj, &trace)
	require.NoError(t, err)
	assert.NotEmpty(t, trace.Samples)
	for _, p := range parts {
		assert.False(t, native.SameObject(p, obj))
	}
	occlusion.ReleaseParts(parts)

	require.NoError(t, obj.Release())
}

func TestScanner_LocateMissing(t *testing.T) {
	s, _ := open(t)
	res, err := s.Extract(context.Background())
	require.NoError(t, err)
	key := res.Records[1].Key()
	require.NoError(t, res.Release())

	idx := 7
	key.InstanceIndex = &idx
	obj, ok, err := s.Locate(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, obj)
}

func TestScanner_FocusViewportFault(t *testing.T) {
	s, session := open(t)
	ctx := context.Background()
	res, err := s.Extract(ctx)
	require.NoError(t, err)
	defer res.Release()

	session.Active().FailViewport = true
	_, _, err = s.Focus(ctx, res.Records[0].Object)
	var op *native.OpError
	require.ErrorAs(t, err, &op)
	assert.Equal(t, "focus", op.Op)
}
