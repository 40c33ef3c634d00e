package occlusion

import (
	"testing"

	"cogentcore.org/core/math32"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StinkyLord/cad-bom-builder/internal/camera"
	"github.com/StinkyLord/cad-bom-builder/internal/config"
	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
	"github.com/StinkyLord/cad-bom-builder/internal/native/snapshot"
)

// The view looks along +Z, so the synthetic camera sits above the target and
// the ray descends through everything stacked over it.
//
//	z 300..302  Навес    overhead, farther than twice the target size
//	z  20..22   Крышка   lid right above the target
//	z  11..12   Основание  body of Узел, the target's own assembly
//	z   0..10   Цель     the target, inside Узел at x+100
const scene = `
root:
  name: Изделие
  children:
    - name: Узел
      origin: [100, 0, 0]
      bodies:
        - name: Основание
          bbox: {min: [-5, -5, 11], max: [15, 15, 12]}
      children:
        - name: Цель
          marking: ДТ.010
          bbox: {min: [0, 0, 0], max: [10, 10, 10]}
    - name: Крышка
      bbox: {min: [80, -20, 20], max: [130, 30, 22]}
    - name: Навес
      bbox: {min: [80, -20, 300], max: [130, 30, 302]}
    - name: Стена
      bbox: {min: [500, 500, 0], max: [510, 510, 10]}
`

func options() config.Occlusion {
	o := config.Default().Occlusion
	o.Distance = 1000
	return o
}

type harness struct {
	m      *snapshot.Model
	doc    native.Document
	vp     native.Viewport
	scene  native.Scene
	target native.Part
}

func setup(t *testing.T) *harness {
	t.Helper()
	spec, err := snapshot.Parse([]byte(scene))
	require.NoError(t, err)
	h := &harness{m: snapshot.New(spec)}
	h.doc = h.m.Document()
	h.vp, err = h.doc.Viewport()
	require.NoError(t, err)
	h.scene, err = h.doc.Scene()
	require.NoError(t, err)
	var ok bool
	h.target, ok = h.m.Lookup("Цель")
	require.True(t, ok)
	t.Cleanup(func() {
		_ = h.target.Release()
		_ = h.scene.Release()
		_ = h.vp.Release()
		_ = h.doc.Release()
		assert.Zero(t, h.m.Ledger().Live(), "leaked handles: %v", h.m.Ledger().Outstanding())
	})
	return h
}

func names(t *testing.T, parts []native.Part) []string {
	t.Helper()
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		n, err := p.Name()
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

// ============================================================
// Occluder detection
// ============================================================

// TestFindOccluders_LidOnly verifies the nearby lid is reported while the
// target, its own assembly, the far overhead and the unrelated wall are not.
func TestFindOccluders_LidOnly(t *testing.T) {
	h := setup(t)
	d := New(options(), camera.New(100, nil, nil), nil, nil)

	parts, err := d.FindOccluders(h.target, h.vp, h.scene, nil)
	require.NoError(t, err)
	defer ReleaseParts(parts)

	assert.Equal(t, []string{"Крышка"}, names(t, parts))
	for _, p := range parts {
		assert.False(t, native.SameObject(p, h.target))
	}
}

// TestFindOccluders_Trace verifies the ray geometry reported for diagnostics.
func TestFindOccluders_Trace(t *testing.T) {
	h := setup(t)
	d := New(options(), camera.New(100, nil, nil), nil, nil)

	var trace RayTrace
	parts, err := d.FindOccluders(h.target, h.vp, h.scene, &trace)
	require.NoError(t, err)
	ReleaseParts(parts)

	assert.Equal(t, math32.Vec3(105, 5, 5), trace.Target)
	assert.Equal(t, math32.Vec3(105, 5, 1005), trace.Camera)
	assert.Equal(t, math32.Vec3(0, 0, -1), trace.Direction)
	assert.Equal(t, float32(1000), trace.Distance)
	// Samples at i/100 for i = 0..98; the last 1% of the ray is skipped.
	require.Len(t, trace.Samples, 99)
	assert.Equal(t, trace.Camera, trace.Samples[0])
	assert.InDelta(t, 25, trace.Samples[98].Z, 1e-3)
	assert.Empty(t, trace.Failed)
}

// TestFindOccluders_ReleasesEverything verifies no handle outlives the query
// besides the returned parts.
func TestFindOccluders_ReleasesEverything(t *testing.T) {
	h := setup(t)
	met := metrics.New()
	d := New(options(), camera.New(100, nil, met), nil, met)

	live := h.m.Ledger().Live()
	parts, err := d.FindOccluders(h.target, h.vp, h.scene, nil)
	require.NoError(t, err)
	assert.Equal(t, live+len(parts), h.m.Ledger().Live())
	ReleaseParts(parts)
	assert.Equal(t, live, h.m.Ledger().Live())

	assert.Equal(t, 99.0, testutil.ToFloat64(met.OcclusionSamples))
	assert.Equal(t, 1.0, testutil.ToFloat64(met.OcclusionHits))
}

// TestFindOccluders_FailedSampleIsSkipped verifies one failing point query
// only drops that sample.
func TestFindOccluders_FailedSampleIsSkipped(t *testing.T) {
	h := setup(t)
	h.m.FailQueries[95] = true
	d := New(options(), camera.New(100, nil, nil), nil, nil)

	var trace RayTrace
	parts, err := d.FindOccluders(h.target, h.vp, h.scene, &trace)
	require.NoError(t, err)
	defer ReleaseParts(parts)

	assert.Equal(t, []string{"Крышка"}, names(t, parts))
	assert.Equal(t, []int{94}, trace.Failed)
}

// TestFindOccluders_TightSizeFactor verifies hits beyond the size limit are
// rejected.
func TestFindOccluders_TightSizeFactor(t *testing.T) {
	h := setup(t)
	o := options()
	o.SizeFactor = 1 // limit 10, the lid is 17 away
	d := New(o, camera.New(100, nil, nil), nil, nil)

	parts, err := d.FindOccluders(h.target, h.vp, h.scene, nil)
	require.NoError(t, err)
	assert.Empty(t, parts)
}

// TestFindOccluders_Distinct verifies an occluder hit by many samples is
// returned once.
func TestFindOccluders_Distinct(t *testing.T) {
	h := setup(t)
	o := options()
	o.Radius = 200
	d := New(o, camera.New(100, nil, nil), nil, nil)

	parts, err := d.FindOccluders(h.target, h.vp, h.scene, nil)
	require.NoError(t, err)
	defer ReleaseParts(parts)
	assert.Equal(t, []string{"Крышка"}, names(t, parts))
}

// TestFindOccluders_BodyTarget verifies a body target excludes the part it
// is attached to, including faces of sibling bodies, while the lid above is
// still reported.
func TestFindOccluders_BodyTarget(t *testing.T) {
	spec, err := snapshot.Parse([]byte(`
root:
  name: Изделие
  children:
    - name: Корпус
      bodies:
        - name: Стенка
          bbox: {min: [0, 0, 0], max: [10, 10, 10]}
        - name: Ребро
          bbox: {min: [0, 0, 12], max: [10, 10, 13]}
    - name: Крышка
      bbox: {min: [-20, -20, 20], max: [30, 30, 22]}
`))
	require.NoError(t, err)
	m := snapshot.New(spec)
	doc := m.Document()
	vp, err := doc.Viewport()
	require.NoError(t, err)
	scene, err := doc.Scene()
	require.NoError(t, err)
	target, ok := m.LookupBody("Стенка")
	require.True(t, ok)
	defer func() {
		_ = target.Release()
		_ = scene.Release()
		_ = vp.Release()
		_ = doc.Release()
		assert.Zero(t, m.Ledger().Live(), "leaked handles: %v", m.Ledger().Outstanding())
	}()

	d := New(options(), camera.New(100, nil, nil), nil, nil)
	var trace RayTrace
	parts, err := d.FindOccluders(target, vp, scene, &trace)
	require.NoError(t, err)
	defer ReleaseParts(parts)

	assert.Equal(t, math32.Vec3(5, 5, 5), trace.Target)
	assert.Equal(t, []string{"Крышка"}, names(t, parts), "the owning part is never an occluder")
}

// TestSampleCount verifies the tail cutoff is applied on whole samples.
func TestSampleCount(t *testing.T) {
	cases := []struct {
		samples int
		tail    float32
		want    int
	}{
		{100, 0.01, 99},
		{100, 0, 100},
		{100, 0.015, 99},
		{100, 0.29, 71},
		{100, 0.07, 93},
		{10, 0.5, 5},
		{3, 0.01, 3},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, sampleCount(c.samples, c.tail), "%d samples, tail %v", c.samples, c.tail)
	}
}

// ============================================================
// Setup failures
// ============================================================

func TestFindOccluders_ViewportFault(t *testing.T) {
	h := setup(t)
	h.m.FailViewport = true
	d := New(options(), camera.New(100, nil, nil), nil, nil)

	parts, err := d.FindOccluders(h.target, h.vp, h.scene, nil)
	assert.Nil(t, parts)
	var op *native.OpError
	require.ErrorAs(t, err, &op)
	assert.Equal(t, "occluders", op.Op)
}

func TestFindOccluders_NoViewDirection(t *testing.T) {
	h := setup(t)
	view := h.m.View()
	view.Matrix[8], view.Matrix[9], view.Matrix[10] = 0, 0, 0
	require.NoError(t, h.vp.SetTransform(view))
	d := New(options(), camera.New(100, nil, nil), nil, nil)

	_, err := d.FindOccluders(h.target, h.vp, h.scene, nil)
	assert.ErrorIs(t, err, errNoViewDirection)
}
