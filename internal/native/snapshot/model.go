package snapshot

import (
	"errors"
	"fmt"
	"strings"

	"cogentcore.org/core/math32"

	"github.com/StinkyLord/cad-bom-builder/internal/native"
)

// ErrInjected is the cause of every injected fault.
var ErrInjected = errors.New("injected native fault")

type node struct {
	id       native.ObjectID
	spec     *NodeSpec
	parent   *node
	children []*node
	bodies   []*body
	faults   map[string]bool
}

type body struct {
	id     native.ObjectID
	spec   *BodySpec
	owner  *node
	faults map[string]bool
}

// Model is a loaded snapshot: the object graph plus the mutable view.
type Model struct {
	spec   *Spec
	path   string
	root   *node
	view   native.ViewTransform
	ledger *Ledger

	lastID  native.ObjectID
	queries int

	// FailQueries lists 1-based scene query numbers that fail.
	FailQueries map[int]bool

	// FailViewport makes every viewport read and write fail.
	FailViewport bool
}

// New builds a model from spec. The spec is retained: view changes are
// written back into it so WriteFile persists them.
func New(spec *Spec) *Model {
	m := &Model{
		spec:        spec,
		ledger:      &Ledger{live: map[*handle]string{}},
		FailQueries: map[int]bool{},
	}
	m.root = m.build(&spec.Root, nil)
	m.view = native.IdentityView()
	if spec.View != nil {
		copy(m.view.Matrix[:], spec.View.Matrix)
		m.view.Scale = spec.View.Scale
	}
	return m
}

// Load reads a snapshot file and builds its model.
func Load(path string) (*Model, error) {
	spec, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := New(spec)
	m.path = path
	return m, nil
}

// Spec returns the (possibly updated) snapshot spec.
func (m *Model) Spec() *Spec { return m.spec }

// Ledger returns the handle ledger of the model.
func (m *Model) Ledger() *Ledger { return m.ledger }

// View returns the current view transform without acquiring a handle.
func (m *Model) View() native.ViewTransform { return m.view }

// Document acquires a document handle on the model.
func (m *Model) Document() native.Document {
	return &document{handle: m.ledger.acquire("document"), m: m}
}

func (m *Model) build(spec *NodeSpec, parent *node) *node {
	m.lastID++
	n := &node{id: m.lastID, spec: spec, parent: parent, faults: faultSet(spec.Faults)}
	for i := range spec.Bodies {
		m.lastID++
		n.bodies = append(n.bodies, &body{
			id:     m.lastID,
			spec:   &spec.Bodies[i],
			owner:  n,
			faults: faultSet(spec.Bodies[i].Faults),
		})
	}
	for i := range spec.Children {
		n.children = append(n.children, m.build(&spec.Children[i], n))
	}
	return n
}

func faultSet(faults []string) map[string]bool {
	set := make(map[string]bool, len(faults))
	for _, f := range faults {
		set[strings.TrimSpace(f)] = true
	}
	return set
}

func fault(faults map[string]bool, op, name string) error {
	if faults[op] {
		return fmt.Errorf("%s on %q: %w", op, name, ErrInjected)
	}
	return nil
}

func propertyFault(faults map[string]bool, prop, name string) error {
	if faults["property"] || faults["property:"+prop] {
		return fmt.Errorf("property %q on %q: %w", prop, name, ErrInjected)
	}
	return nil
}

// offset is the origin of n's local frame in world space: the sum of the
// origins of n and its ancestors, excluding the root.
func (n *node) offset() math32.Vector3 {
	var v math32.Vector3
	for cur := n; cur != nil && cur.parent != nil; cur = cur.parent {
		v = v.Add(vec(cur.spec.Origin))
	}
	return v
}

// localBox is n's box in its parent's frame.
func (n *node) localBox() math32.Box3 {
	if n.spec.BBox != nil {
		return box(n.spec.BBox)
	}
	bb := math32.B3Empty()
	for _, b := range n.bodies {
		if b.spec.BBox != nil {
			bb.ExpandByBox(box(b.spec.BBox))
		}
	}
	for _, c := range n.children {
		if cb := c.localBox(); !cb.IsEmpty() {
			bb.ExpandByBox(cb)
		}
	}
	if bb.IsEmpty() {
		return bb
	}
	return bb.Translate(vec(n.spec.Origin))
}

func (n *node) worldBox() math32.Box3 {
	bb := n.localBox()
	if n.parent == nil || bb.IsEmpty() {
		return bb
	}
	return bb.Translate(n.parent.offset())
}

func (b *body) localBox() math32.Box3 {
	if b.spec.BBox == nil {
		return math32.B3Empty()
	}
	return box(b.spec.BBox)
}

func (b *body) worldBox() math32.Box3 {
	bb := b.localBox()
	if bb.IsEmpty() {
		return bb
	}
	return bb.Translate(b.owner.offset())
}

func vec(v [3]float32) math32.Vector3 { return math32.Vec3(v[0], v[1], v[2]) }

func box(b *BoxSpec) math32.Box3 {
	return math32.B3(b.Min[0], b.Min[1], b.Min[2], b.Max[0], b.Max[1], b.Max[2])
}

// sealedBox returns a zero box for empty geometry, matching what native
// sessions report for objects without solids.
func sealedBox(bb math32.Box3) math32.Box3 {
	if bb.IsEmpty() {
		return math32.Box3{}
	}
	return bb
}

func (m *Model) setView(t native.ViewTransform) {
	m.view = t
	if m.spec.View == nil {
		m.spec.View = &ViewSpec{}
	}
	m.spec.View.Matrix = append(m.spec.View.Matrix[:0], t.Matrix[:]...)
	m.spec.View.Scale = t.Scale
}

// Lookup acquires a handle on the first node named name, in depth-first
// order. The caller releases it.
func (m *Model) Lookup(name string) (native.Part, bool) {
	n := m.find(m.root, func(n *node) bool { return n.spec.Name == name })
	if n == nil {
		return nil, false
	}
	return m.partOf(n), true
}

// LookupBody acquires a handle on the first body named name.
func (m *Model) LookupBody(name string) (native.Body, bool) {
	var found *body
	m.find(m.root, func(n *node) bool {
		for _, b := range n.bodies {
			if b.spec.Name == name {
				found = b
				return true
			}
		}
		return false
	})
	if found == nil {
		return nil, false
	}
	return &bodyHandle{handle: m.ledger.acquire("body:" + name), m: m, b: found}, true
}

func (m *Model) find(n *node, match func(*node) bool) *node {
	if match(n) {
		return n
	}
	for _, c := range n.children {
		if f := m.find(c, match); f != nil {
			return f
		}
	}
	return nil
}
