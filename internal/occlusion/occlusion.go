// Package occlusion finds the assembly parts that hide a target part from
// the current view direction.
//
// The test is a heuristic: a ray is cast from a synthetic camera placed far
// along the view direction toward the target center, the scene is queried
// for faces near evenly spaced sample points, and a face owner is accepted
// when the face lies closer to the target center than both the camera and
// twice the target's own largest extent. It is not an exact ray-solid test.
package occlusion

import (
	"errors"
	"fmt"
	"math"

	"cogentcore.org/core/math32"
	"go.uber.org/zap"

	"github.com/StinkyLord/cad-bom-builder/internal/camera"
	"github.com/StinkyLord/cad-bom-builder/internal/config"
	"github.com/StinkyLord/cad-bom-builder/internal/logging"
	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
	"github.com/StinkyLord/cad-bom-builder/internal/tracker"
)

var errNoViewDirection = errors.New("view transform has no forward direction")

// RayTrace receives the geometry of the last cast, for diagnostics.
type RayTrace struct {
	Camera    math32.Vector3
	Target    math32.Vector3
	Direction math32.Vector3 // unit vector from camera to target
	Distance  float32
	Samples   []math32.Vector3
	Failed    []int // indices into Samples whose query failed
}

// Detector runs occlusion queries.
type Detector struct {
	opts    config.Occlusion
	geom    *camera.Geometry
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates a Detector. log and m may be nil.
func New(opts config.Occlusion, geom *camera.Geometry, log *zap.Logger, m *metrics.Metrics) *Detector {
	return &Detector{opts: opts, geom: geom, log: logging.Or(log), metrics: m}
}

// FindOccluders returns the distinct parts whose faces lie between the view
// camera and target. The target and its ancestors are never returned. The
// caller owns the returned handles. A failure while establishing the ray
// aborts with an error and no result; a failure at a single sample point only
// skips that sample. trace may be nil.
func (d *Detector) FindOccluders(target native.Object, vp native.Viewport, scene native.Scene, trace *RayTrace) ([]native.Part, error) {
	center, bb, err := d.geom.GlobalCenter(target)
	if err != nil {
		return nil, native.WrapOp("occluders", err)
	}
	view, err := vp.Transform()
	if err != nil {
		return nil, native.WrapOp("occluders", fmt.Errorf("read view transform: %w", err))
	}
	forward := view.Forward()
	if forward.Length() == 0 {
		return nil, native.WrapOp("occluders", errNoViewDirection)
	}

	cam := center.Add(forward.Normal().MulScalar(d.opts.Distance))
	ray := center.Sub(cam)
	total := ray.Length()
	if trace != nil {
		*trace = RayTrace{Camera: cam, Target: center, Direction: ray.Normal(), Distance: total}
	}

	q := &query{
		d:         d,
		targetID:  target.ID(),
		center:    center,
		total:     total,
		limit:     d.opts.SizeFactor * camera.MaxExtent(bb),
		ancestors: d.ancestors(target),
		accepted:  map[native.ObjectID]bool{},
		found:     []native.Part{},
	}

	for i, n := 0, sampleCount(d.opts.Samples, d.opts.TailFraction); i < n; i++ {
		f := float32(i) / float32(d.opts.Samples)
		p := cam.Add(ray.MulScalar(f))
		err := q.sample(scene, p)
		if trace != nil {
			trace.Samples = append(trace.Samples, p)
			if err != nil {
				trace.Failed = append(trace.Failed, len(trace.Samples)-1)
			}
		}
		if err != nil {
			d.log.Warn("occlusion sample failed",
				zap.Int("sample", i),
				zap.Error(err))
		}
	}

	d.log.Debug("occlusion query finished",
		zap.String("target", native.Describe(target)),
		zap.Int("occluders", len(q.found)))
	return q.found, nil
}

// tailTolerance absorbs float32 error in samples*tail: a tail of 0.29 over
// 100 samples drops 29, not 28.
const tailTolerance = 1e-4

// sampleCount returns how many of the samples at fractions i/samples lie
// before the unsampled tail: sample i is kept when i/samples < 1-tail, which
// on integers drops the last floor(samples*tail) samples.
func sampleCount(samples int, tail float32) int {
	skip := int(math.Floor(float64(tail)*float64(samples) + tailTolerance))
	if skip < 0 {
		skip = 0
	}
	if skip > samples {
		skip = samples
	}
	return samples - skip
}

// ancestors collects the identities of every part enclosing target.
func (d *Detector) ancestors(target native.Object) map[native.ObjectID]bool {
	scope := tracker.New(d.log, d.metrics)
	defer scope.ReleaseAll()

	ids := map[native.ObjectID]bool{}
	cur, err := camera.Container(target)
	for err == nil && cur != nil {
		tracker.Track(scope, cur)
		if ids[cur.ID()] {
			break
		}
		ids[cur.ID()] = true
		cur, err = cur.Parent()
	}
	if err != nil {
		d.log.Debug("ancestor walk truncated", zap.Error(err))
	}
	return ids
}

type query struct {
	d         *Detector
	targetID  native.ObjectID
	center    math32.Vector3
	total     float32
	limit     float32
	ancestors map[native.ObjectID]bool
	accepted  map[native.ObjectID]bool
	found     []native.Part
}

// sample queries the scene at p. Every handle acquired here is released
// before it returns, except accepted owners, which move to q.found.
func (q *query) sample(scene native.Scene, p math32.Vector3) error {
	q.d.metrics.Sample()
	scope := tracker.New(q.d.log, q.d.metrics)
	defer scope.ReleaseAll()

	hits, err := scene.HitsNear(p, q.d.opts.Radius, native.KindFace)
	if err != nil {
		return native.NewFault("point query", "", err)
	}
	tracker.Track(scope, hits)

	for j := 0; j < hits.Len(); j++ {
		hit, err := hits.At(j)
		if err != nil {
			q.d.log.Debug("hit unavailable", zap.Int("hit", j), zap.Error(err))
			continue
		}
		tracker.Track(scope, hit)
		if hit.Kind()&native.KindFace == 0 {
			continue
		}
		owner, err := hit.Owner()
		if err != nil {
			q.d.log.Debug("hit owner unavailable", zap.Int("hit", j), zap.Error(err))
			continue
		}
		tracker.Track(scope, owner)

		id := owner.ID()
		if id == q.targetID || q.accepted[id] || q.ancestors[id] {
			continue
		}
		dist := hit.Point().DistanceTo(q.center)
		if dist >= q.total || dist >= q.limit {
			continue
		}
		q.accepted[id] = true
		scope.Detach(owner)
		q.found = append(q.found, owner)
		q.d.metrics.Occluder()
	}
	return nil
}

// ReleaseParts releases every part in parts, ignoring errors.
func ReleaseParts(parts []native.Part) {
	for _, p := range parts {
		_ = p.Release()
	}
}
