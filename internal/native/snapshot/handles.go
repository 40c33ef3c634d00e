package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"cogentcore.org/core/math32"

	"github.com/StinkyLord/cad-bom-builder/internal/native"
)

// ErrReleased is returned when a handle is released a second time.
var ErrReleased = errors.New("handle already released")

// Ledger counts outstanding handles of a model.
type Ledger struct {
	live     map[*handle]string
	acquired int
	released int

	// FailRelease makes every release fail after decrementing the count,
	// the way a native release that reports an error still drops the reference.
	FailRelease bool
}

// Live returns the number of handles acquired and not yet released.
func (l *Ledger) Live() int { return len(l.live) }

// Acquired returns the total number of handles ever acquired.
func (l *Ledger) Acquired() int { return l.acquired }

// Released returns the total number of successful first releases.
func (l *Ledger) Released() int { return l.released }

// Outstanding describes the live handles, sorted, for leak diagnostics.
func (l *Ledger) Outstanding() []string {
	out := make([]string, 0, len(l.live))
	for _, d := range l.live {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) acquire(desc string) *handle {
	h := &handle{ledger: l, desc: desc + "#" + strconv.Itoa(l.acquired)}
	l.acquired++
	l.live[h] = h.desc
	return h
}

type handle struct {
	ledger   *Ledger
	desc     string
	released bool
}

func (h *handle) Release() error {
	if h.released {
		return fmt.Errorf("%s: %w", h.desc, ErrReleased)
	}
	h.released = true
	delete(h.ledger.live, h)
	h.ledger.released++
	if h.ledger.FailRelease {
		return fmt.Errorf("release %s: %w", h.desc, ErrInjected)
	}
	return nil
}

// ---- document ----

type document struct {
	*handle
	m *Model
}

func (d *document) Path() string { return d.m.path }

func (d *document) Root() (native.Part, error) { return d.m.partOf(d.m.root), nil }

func (d *document) Viewport() (native.Viewport, error) {
	if d.m.FailViewport {
		return nil, fmt.Errorf("viewport: %w", ErrInjected)
	}
	return &viewport{handle: d.m.ledger.acquire("viewport"), m: d.m}, nil
}

func (d *document) Scene() (native.Scene, error) {
	return &scene{handle: d.m.ledger.acquire("scene"), m: d.m}, nil
}

// ---- parts ----

// partOf returns a new handle on n. Nodes that carry bodies expose the
// BodyHolder capability.
func (m *Model) partOf(n *node) native.Part {
	p := &part{handle: m.ledger.acquire("part:" + n.spec.Name), m: m, n: n}
	if len(n.bodies) > 0 {
		return &solidPart{part: p}
	}
	return p
}

type part struct {
	*handle
	m *Model
	n *node
}

func (p *part) ID() native.ObjectID { return p.n.id }

func (p *part) Name() (string, error) {
	if err := fault(p.n.faults, "name", p.n.spec.Name); err != nil {
		return "", err
	}
	return p.n.spec.Name, nil
}

func (p *part) Marking() (string, error) {
	if err := fault(p.n.faults, "marking", p.n.spec.Name); err != nil {
		return "", err
	}
	return p.n.spec.Marking, nil
}

func (p *part) Property(name string) (string, error) {
	if err := propertyFault(p.n.faults, name, p.n.spec.Name); err != nil {
		return "", err
	}
	return p.n.spec.Properties[name], nil
}

func (p *part) Mass() (float64, error) {
	if err := fault(p.n.faults, "mass", p.n.spec.Name); err != nil {
		return 0, err
	}
	return p.n.spec.Mass, nil
}

func (p *part) BoundingBox(global bool) (math32.Box3, error) {
	if err := fault(p.n.faults, "bbox", p.n.spec.Name); err != nil {
		return math32.Box3{}, err
	}
	if global {
		return sealedBox(p.n.worldBox()), nil
	}
	return sealedBox(p.n.localBox()), nil
}

func (p *part) FilePath() (string, error) {
	if err := fault(p.n.faults, "filepath", p.n.spec.Name); err != nil {
		return "", err
	}
	return p.n.spec.File, nil
}

func (p *part) IsDetail() (bool, error) {
	if err := fault(p.n.faults, "detail", p.n.spec.Name); err != nil {
		return false, err
	}
	return p.n.spec.Detail, nil
}

func (p *part) Children() (native.PartEnumerator, error) {
	if err := fault(p.n.faults, "children", p.n.spec.Name); err != nil {
		return nil, err
	}
	return &enumerator{handle: p.m.ledger.acquire("children:" + p.n.spec.Name), m: p.m, nodes: p.n.children}, nil
}

func (p *part) Parent() (native.Part, error) {
	if err := fault(p.n.faults, "parent", p.n.spec.Name); err != nil {
		return nil, err
	}
	if p.n.parent == nil {
		return nil, nil
	}
	return p.m.partOf(p.n.parent), nil
}

func (p *part) Placement() (math32.Vector3, error) {
	if err := fault(p.n.faults, "placement", p.n.spec.Name); err != nil {
		return math32.Vector3{}, err
	}
	return vec(p.n.spec.Origin), nil
}

type solidPart struct {
	*part
}

func (p *solidPart) Bodies() (native.BodyCollection, error) {
	if err := fault(p.n.faults, "bodies", p.n.spec.Name); err != nil {
		return nil, err
	}
	return &bodyCollection{handle: p.m.ledger.acquire("bodies:" + p.n.spec.Name), m: p.m, bodies: p.n.bodies}, nil
}

type enumerator struct {
	*handle
	m     *Model
	nodes []*node
	pos   int
}

func (e *enumerator) Next() (native.Part, bool, error) {
	if e.pos >= len(e.nodes) {
		return nil, false, nil
	}
	n := e.nodes[e.pos]
	e.pos++
	return e.m.partOf(n), true, nil
}

// ---- bodies ----

type bodyCollection struct {
	*handle
	m      *Model
	bodies []*body
}

func (c *bodyCollection) Len() int { return len(c.bodies) }

func (c *bodyCollection) At(i int) (native.Body, error) {
	if i < 0 || i >= len(c.bodies) {
		return nil, fmt.Errorf("body index %d out of range [0,%d)", i, len(c.bodies))
	}
	b := c.bodies[i]
	return &bodyHandle{handle: c.m.ledger.acquire("body:" + b.spec.Name), m: c.m, b: b}, nil
}

type bodyHandle struct {
	*handle
	m *Model
	b *body
}

func (b *bodyHandle) Owner() (native.Part, error) {
	if err := fault(b.b.faults, "owner", b.b.spec.Name); err != nil {
		return nil, err
	}
	return b.m.partOf(b.b.owner), nil
}

func (b *bodyHandle) ID() native.ObjectID { return b.b.id }

func (b *bodyHandle) Name() (string, error) {
	if err := fault(b.b.faults, "name", b.b.spec.Name); err != nil {
		return "", err
	}
	return b.b.spec.Name, nil
}

func (b *bodyHandle) Marking() (string, error) {
	if err := fault(b.b.faults, "marking", b.b.spec.Name); err != nil {
		return "", err
	}
	return b.b.spec.Marking, nil
}

func (b *bodyHandle) Property(name string) (string, error) {
	if err := propertyFault(b.b.faults, name, b.b.spec.Name); err != nil {
		return "", err
	}
	return b.b.spec.Properties[name], nil
}

func (b *bodyHandle) Mass() (float64, error) {
	if err := fault(b.b.faults, "mass", b.b.spec.Name); err != nil {
		return 0, err
	}
	return b.b.spec.Mass, nil
}

func (b *bodyHandle) BoundingBox(global bool) (math32.Box3, error) {
	if err := fault(b.b.faults, "bbox", b.b.spec.Name); err != nil {
		return math32.Box3{}, err
	}
	if global {
		return sealedBox(b.b.worldBox()), nil
	}
	return sealedBox(b.b.localBox()), nil
}

// ---- viewport ----

type viewport struct {
	*handle
	m *Model
}

func (v *viewport) Transform() (native.ViewTransform, error) {
	if v.m.FailViewport {
		return native.ViewTransform{}, fmt.Errorf("view transform: %w", ErrInjected)
	}
	return v.m.view, nil
}

func (v *viewport) SetTransform(t native.ViewTransform) error {
	if v.m.FailViewport {
		return fmt.Errorf("set view transform: %w", ErrInjected)
	}
	v.m.setView(t)
	return nil
}
