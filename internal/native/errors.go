package native

import (
	"errors"
	"fmt"
)

// ErrSessionUnavailable is returned when no live native session or document
// is available. It is fatal for every operation that needs one.
var ErrSessionUnavailable = errors.New("native session unavailable")

// Fault is a node-level native failure: a single object's property, geometry
// or enumeration query failed. Faults are recovered by skipping the object.
type Fault struct {
	Op     string // native call that failed, e.g. "children"
	Object string // best-effort description of the object
	Err    error
}

func (f *Fault) Error() string {
	if f.Object == "" {
		return fmt.Sprintf("native %s: %v", f.Op, f.Err)
	}
	return fmt.Sprintf("native %s on %q: %v", f.Op, f.Object, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault wraps err as a Fault. A nil err yields nil.
func NewFault(op, object string, err error) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	return &Fault{Op: op, Object: object, Err: err}
}

// OpError is the typed failure of a whole pass (extract, locate, focus,
// occluders) surfaced to its caller.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

// WrapOp wraps err as an OpError for op. A nil err yields nil.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Err: err}
}
