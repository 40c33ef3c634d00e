// Package native defines the capability interfaces this tool expects from an
// external CAD session. Every object obtained through these interfaces is a
// reference-counted foreign handle: whoever acquires it owns it and must call
// Release exactly once.
//
// Implementations must use pointer (comparable) handle types, since handles
// are used as map keys by the resource tracker.
package native

import (
	"cogentcore.org/core/math32"
)

// ObjectID is the native identity of an assembly object. Two handles refer to
// the same object if and only if their IDs are equal, regardless of whether
// the handles themselves are the same value.
type ObjectID uint64

// Handle is a reference to a foreign, reference-counted object.
type Handle interface {
	Release() error
}

// Object is the capability set shared by parts and bodies.
type Object interface {
	Handle
	ID() ObjectID
	Name() (string, error)
	Marking() (string, error)
	Property(name string) (string, error)
	Mass() (float64, error)

	// BoundingBox returns the axis-aligned box of the object. With global
	// false the box is expressed in the frame of the owning assembly; with
	// global true the implementation composes it into world space where it
	// supports that.
	BoundingBox(global bool) (math32.Box3, error)
}

// Part is a node of the assembly tree: a sub-assembly or a detail.
type Part interface {
	Object
	FilePath() (string, error)
	IsDetail() (bool, error)
	Children() (PartEnumerator, error)

	// Parent returns nil with a nil error for the root part.
	Parent() (Part, error)

	// Placement returns the origin of the part's local frame in its parent's frame.
	Placement() (math32.Vector3, error)
}

// Body is a solid attached to a part.
type Body interface {
	Object

	// Owner returns the part the body is attached to.
	Owner() (Part, error)
}

// BodyHolder is implemented by parts that expose attached geometry.
type BodyHolder interface {
	Bodies() (BodyCollection, error)
}

// PartEnumerator iterates the direct children of a part. Next returns
// ok=false once the children are exhausted.
type PartEnumerator interface {
	Handle
	Next() (part Part, ok bool, err error)
}

// BodyCollection is an indexed collection of bodies.
type BodyCollection interface {
	Handle
	Len() int
	At(i int) (Body, error)
}

// GeometryKind is a bit set of geometry entity kinds used to filter scene queries.
type GeometryKind uint8

const (
	KindFace GeometryKind = 1 << iota
	KindEdge
	KindVertex
)

func (k GeometryKind) String() string {
	switch k {
	case KindFace:
		return "face"
	case KindEdge:
		return "edge"
	case KindVertex:
		return "vertex"
	default:
		return "mixed"
	}
}

// Hit is a geometry entity found by a scene point query.
type Hit interface {
	Handle
	Kind() GeometryKind
	Point() math32.Vector3
	Owner() (Part, error)
}

// HitCollection is the result of a scene point query.
type HitCollection interface {
	Handle
	Len() int
	At(i int) (Hit, error)
}

// Scene answers spatial queries against the document geometry.
type Scene interface {
	Handle
	HitsNear(point math32.Vector3, radius float32, kinds GeometryKind) (HitCollection, error)
}

// Viewport is the active view of a document.
type Viewport interface {
	Handle
	Transform() (ViewTransform, error)
	SetTransform(t ViewTransform) error
}

// Document is an open assembly model.
type Document interface {
	Handle
	Path() string
	Root() (Part, error)
	Viewport() (Viewport, error)
	Scene() (Scene, error)
}

// Session is a connection to a running CAD process.
type Session interface {
	ActiveDocument() (Document, error)
	Open(path string) (Document, error)
}
