package snapshot

import (
	"fmt"

	"cogentcore.org/core/math32"

	"github.com/StinkyLord/cad-bom-builder/internal/native"
)

// faceOwner is a piece of face geometry in world space and the node that owns it.
type faceOwner struct {
	box   math32.Box3
	owner *node
}

// faces lists face geometry in depth-first order: the bodies of every node
// (owned by that node) and leaf nodes with an explicit box and no bodies.
func (m *Model) faces() []faceOwner {
	var out []faceOwner
	var walk func(n *node)
	walk = func(n *node) {
		for _, b := range n.bodies {
			if bb := b.worldBox(); !bb.IsEmpty() {
				out = append(out, faceOwner{box: bb, owner: n})
			}
		}
		if len(n.bodies) == 0 && len(n.children) == 0 && n.spec.BBox != nil {
			out = append(out, faceOwner{box: n.worldBox(), owner: n})
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(m.root)
	return out
}

type scene struct {
	*handle
	m *Model
}

func (s *scene) HitsNear(point math32.Vector3, radius float32, kinds native.GeometryKind) (native.HitCollection, error) {
	s.m.queries++
	if s.m.FailQueries[s.m.queries] {
		return nil, fmt.Errorf("point query %d: %w", s.m.queries, ErrInjected)
	}
	hc := &hitCollection{handle: s.m.ledger.acquire("hits"), m: s.m}
	if kinds&native.KindFace == 0 {
		return hc, nil
	}
	for _, f := range s.m.faces() {
		if f.box.DistanceToPoint(point) <= radius {
			hc.hits = append(hc.hits, hitData{point: f.box.ClampPoint(point), owner: f.owner})
		}
	}
	return hc, nil
}

type hitData struct {
	point math32.Vector3
	owner *node
}

type hitCollection struct {
	*handle
	m    *Model
	hits []hitData
}

func (c *hitCollection) Len() int { return len(c.hits) }

func (c *hitCollection) At(i int) (native.Hit, error) {
	if i < 0 || i >= len(c.hits) {
		return nil, fmt.Errorf("hit index %d out of range [0,%d)", i, len(c.hits))
	}
	return &hit{handle: c.m.ledger.acquire("hit"), m: c.m, data: c.hits[i]}, nil
}

type hit struct {
	*handle
	m    *Model
	data hitData
}

func (h *hit) Kind() native.GeometryKind { return native.KindFace }

func (h *hit) Point() math32.Vector3 { return h.data.point }

func (h *hit) Owner() (native.Part, error) {
	if err := fault(h.data.owner.faults, "owner", h.data.owner.spec.Name); err != nil {
		return nil, err
	}
	return h.m.partOf(h.data.owner), nil
}
