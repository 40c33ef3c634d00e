// Package walker walks CAD assembly trees. The same depth-first traversal
// drives extraction and location, so the encounter order of candidates (and
// therefore instance indices) is identical for both.
//
// Order at every node: attached bodies first (in collection order), then
// child parts (in enumeration order). A child flagged as a detail, or in the
// other-purchased section, is a candidate; any other child is descended into.
package walker

import (
	"errors"

	"go.uber.org/zap"

	"github.com/StinkyLord/cad-bom-builder/internal/config"
	"github.com/StinkyLord/cad-bom-builder/internal/logging"
	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
	"github.com/StinkyLord/cad-bom-builder/internal/tracker"
)

var (
	errCycle = errors.New("part is its own ancestor")
	errDepth = errors.New("assembly nesting exceeds the depth limit")
)

// Candidate is an object the traversal offers to its visitor. Exactly one
// of Part and Body is set.
type Candidate struct {
	Part    native.Part
	Body    native.Body
	Owner   native.Part // part the body is attached to; nil for part candidates
	Section string
	Detail  bool
	Depth   int
}

// BodyBased reports whether the candidate is a body.
func (c Candidate) BodyBased() bool { return c.Body != nil }

// Object returns the candidate's native object.
func (c Candidate) Object() native.Object {
	if c.Body != nil {
		return c.Body
	}
	return c.Part
}

// Visitor receives candidates in traversal order. When keep is true the
// visitor takes ownership of the candidate's object; otherwise the traversal
// releases it. Returning stop ends the traversal.
type Visitor func(c Candidate) (keep, stop bool)

// Traverser performs the depth-first walk.
type Traverser struct {
	props    config.Properties
	sections config.Sections
	maxDepth int
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewTraverser creates a traverser. log and m may be nil.
func NewTraverser(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Traverser {
	return &Traverser{
		props:    cfg.Properties,
		sections: cfg.Sections,
		maxDepth: cfg.Traversal.MaxDepth,
		log:      logging.Or(log),
		metrics:  m,
	}
}

// Walk visits the tree under root. A native fault on root itself is
// returned; faults below the root are logged and their subtree skipped.
// root is not released.
func (t *Traverser) Walk(root native.Part, visit Visitor) error {
	if root == nil {
		return native.ErrSessionUnavailable
	}
	_, err := t.node(root, 0, map[native.ObjectID]bool{}, visit)
	return err
}

func (t *Traverser) node(part native.Part, depth int, ancestors map[native.ObjectID]bool, visit Visitor) (bool, error) {
	desc := native.Describe(part)
	if t.maxDepth > 0 && depth > t.maxDepth {
		return false, native.NewFault("walk", desc, errDepth)
	}
	id := part.ID()
	if ancestors[id] {
		return false, native.NewFault("walk", desc, errCycle)
	}
	ancestors[id] = true
	defer delete(ancestors, id)

	scope := tracker.New(t.log, t.metrics)
	defer scope.ReleaseAll()

	if holder, ok := part.(native.BodyHolder); ok {
		stop, err := t.bodies(holder, part, depth, scope, visit)
		if err != nil || stop {
			return stop, err
		}
	}

	children, err := part.Children()
	if err != nil {
		return false, native.NewFault("children", desc, err)
	}
	tracker.Track(scope, children)

	for {
		child, ok, err := children.Next()
		if err != nil {
			return false, native.NewFault("next child", desc, err)
		}
		if !ok {
			return false, nil
		}
		tracker.Track(scope, child)

		stop, err := t.child(child, depth+1, ancestors, scope, visit)
		if err != nil {
			t.fault(err, depth+1)
		}
		if stop {
			return true, nil
		}
	}
}

func (t *Traverser) bodies(holder native.BodyHolder, owner native.Part, depth int, scope *tracker.Tracker, visit Visitor) (bool, error) {
	coll, err := holder.Bodies()
	if err != nil {
		return false, native.NewFault("bodies", native.Describe(owner), err)
	}
	tracker.Track(scope, coll)

	for i := 0; i < coll.Len(); i++ {
		body, err := coll.At(i)
		if err != nil {
			t.fault(native.NewFault("body", native.Describe(owner), err), depth)
			continue
		}
		tracker.Track(scope, body)

		section, err := body.Property(t.props.Section)
		if err != nil {
			t.log.Debug("skipping body without a readable section",
				zap.String("owner", native.Describe(owner)),
				zap.Int("index", i),
				zap.Error(err))
			scope.Release(body)
			continue
		}
		if section != t.sections.Details {
			scope.Release(body)
			continue
		}

		keep, stop := visit(Candidate{Body: body, Owner: owner, Section: section, Depth: depth})
		if keep {
			scope.Detach(body)
		} else {
			scope.Release(body)
		}
		if stop {
			return true, nil
		}
	}
	return false, nil
}

// child either offers child to the visitor or descends into it. The child
// handle is released (or handed over) before returning.
func (t *Traverser) child(child native.Part, depth int, ancestors map[native.ObjectID]bool, scope *tracker.Tracker, visit Visitor) (bool, error) {
	desc := native.Describe(child)
	detail, err := child.IsDetail()
	if err != nil {
		scope.Release(child)
		return false, native.NewFault("detail flag", desc, err)
	}
	section, err := child.Property(t.props.Section)
	if err != nil {
		scope.Release(child)
		return false, native.NewFault("section", desc, err)
	}

	if detail || section == t.sections.OtherPurchased {
		keep, stop := visit(Candidate{Part: child, Section: section, Detail: detail, Depth: depth})
		if keep {
			scope.Detach(child)
		} else {
			scope.Release(child)
		}
		return stop, nil
	}

	stop, err := t.node(child, depth, ancestors, visit)
	scope.Release(child)
	return stop, err
}

func (t *Traverser) fault(err error, depth int) {
	op := "unknown"
	var f *native.Fault
	if errors.As(err, &f) {
		op = f.Op
	}
	t.metrics.Fault(op)
	t.log.Warn("skipping assembly node after native fault",
		zap.Int("depth", depth),
		zap.Error(err))
}
