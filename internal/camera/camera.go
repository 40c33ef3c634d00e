// Package camera computes where an assembly object sits in world space and
// frames it in the active viewport.
package camera

import (
	"fmt"

	"cogentcore.org/core/math32"
	"go.uber.org/zap"

	"github.com/StinkyLord/cad-bom-builder/internal/logging"
	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
	"github.com/StinkyLord/cad-bom-builder/internal/tracker"
)

// DefaultReferenceSize is the extent, in model units, framed at scale 1.
const DefaultReferenceSize = 100

// Geometry performs bounding-box based camera computations.
type Geometry struct {
	referenceSize float32
	log           *zap.Logger
	metrics       *metrics.Metrics
}

// New creates a Geometry. A non-positive referenceSize selects the default.
func New(referenceSize float32, log *zap.Logger, m *metrics.Metrics) *Geometry {
	if referenceSize <= 0 {
		referenceSize = DefaultReferenceSize
	}
	return &Geometry{referenceSize: referenceSize, log: logging.Or(log), metrics: m}
}

// Container returns the part whose frame obj's local box is expressed in:
// the parent of a part, or the owner of a body. It is nil for the root part.
// The caller owns the returned handle.
func Container(obj native.Object) (native.Part, error) {
	switch o := obj.(type) {
	case native.Part:
		return o.Parent()
	case native.Body:
		return o.Owner()
	default:
		return nil, fmt.Errorf("unsupported native object %T", obj)
	}
}

// GlobalCenter returns the world-space center of obj together with its
// local box. The box midpoint is offset by the placement origins of the
// enclosing parts up to, but not including, the root. A failed ancestor
// lookup ends the walk early and contributes no offset.
func (g *Geometry) GlobalCenter(obj native.Object) (math32.Vector3, math32.Box3, error) {
	bb, err := obj.BoundingBox(false)
	if err != nil {
		return math32.Vector3{}, bb, native.NewFault("bounding box", native.Describe(obj), err)
	}
	return bb.Center().Add(g.offset(obj)), bb, nil
}

func (g *Geometry) offset(obj native.Object) math32.Vector3 {
	scope := tracker.New(g.log, g.metrics)
	defer scope.ReleaseAll()

	var off math32.Vector3
	cur, err := Container(obj)
	if err != nil {
		g.log.Debug("container lookup failed, using zero offset", zap.Error(err))
		return off
	}
	for cur != nil {
		tracker.Track(scope, cur)
		parent, err := cur.Parent()
		if err != nil {
			g.log.Debug("ancestor lookup failed, offset truncated", zap.Error(err))
			break
		}
		if parent == nil {
			break // root frame is the world frame
		}
		tracker.Track(scope, parent)
		origin, err := cur.Placement()
		if err != nil {
			g.log.Debug("placement lookup failed, offset truncated", zap.Error(err))
			break
		}
		off = off.Add(origin)
		cur = parent
	}
	return off
}

// MaxExtent returns the largest axis extent of bb.
func MaxExtent(bb math32.Box3) float32 {
	size := bb.Size()
	return math32.Max(size.X, math32.Max(size.Y, size.Z))
}

// Scale returns the view scale that frames bb: the reference size divided
// by the largest extent, or 1 for a degenerate box.
func (g *Geometry) Scale(bb math32.Box3) float32 {
	ext := MaxExtent(bb)
	if ext <= 0 {
		return 1
	}
	return g.referenceSize / ext
}

// Focus computes the world-space center and frame scale of obj.
func (g *Geometry) Focus(obj native.Object) (math32.Vector3, float32, error) {
	center, bb, err := g.GlobalCenter(obj)
	if err != nil {
		return center, 1, native.WrapOp("focus", err)
	}
	return center, g.Scale(bb), nil
}

// ApplyFocus moves the view origin to center and commits it with scale.
// Rotation and projection components are left untouched.
func ApplyFocus(vp native.Viewport, center math32.Vector3, scale float32) error {
	t, err := vp.Transform()
	if err != nil {
		return native.WrapOp("focus", fmt.Errorf("read view transform: %w", err))
	}
	t.SetOrigin(center)
	t.Scale = scale
	if err := vp.SetTransform(t); err != nil {
		return native.WrapOp("focus", fmt.Errorf("write view transform: %w", err))
	}
	return nil
}
