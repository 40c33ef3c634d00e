// Package locator finds the live object behind a stored identity key by
// replaying the extraction traversal.
package locator

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/StinkyLord/cad-bom-builder/internal/logging"
	"github.com/StinkyLord/cad-bom-builder/internal/model"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
	"github.com/StinkyLord/cad-bom-builder/internal/walker"
)

// ErrUnlocatable wraps the validation error of a malformed identity key.
var ErrUnlocatable = errors.New("identity key cannot be located")

// Locator resolves identity keys against a live tree.
type Locator struct {
	walker *walker.Walker
	log    *zap.Logger
}

// New creates a Locator over w, which must be configured like the walker
// that produced the keys.
func New(w *walker.Walker, log *zap.Logger) *Locator {
	return &Locator{walker: w, log: logging.Or(log)}
}

// Locate returns the object under root matching key. Matching candidates
// are counted in traversal order; the one whose ordinal equals the key's
// instance index is returned, and the caller owns it. Candidates extraction
// would skip are not counted. A part matches on name and marking plus the
// file path when the key has one; a body matches on name and marking. ok is
// false when the tree holds no such object.
func (l *Locator) Locate(key model.IdentityKey, root native.Part) (obj native.Object, ok bool, err error) {
	if verr := key.Validate(); verr != nil {
		return nil, false, native.WrapOp("locate", fmt.Errorf("%w: %w", ErrUnlocatable, verr))
	}
	want := key.Index()
	seen := 0

	err = l.walker.Traverser().Walk(root, func(c walker.Candidate) (bool, bool) {
		if c.BodyBased() != key.BodyBased {
			return false, false
		}
		rec, rerr := l.walker.Record(c)
		if rerr != nil {
			l.log.Warn("skipping candidate during locate",
				zap.String("object", native.Describe(c.Object())),
				zap.Error(rerr))
			return false, false
		}
		if !matches(rec, key) {
			return false, false
		}
		if seen == want {
			obj = c.Object()
			return true, true
		}
		seen++
		return false, false
	})
	if err != nil {
		if obj != nil {
			_ = obj.Release()
		}
		return nil, false, native.WrapOp("locate", err)
	}
	if obj == nil {
		l.log.Debug("identity key not found",
			zap.String("name", key.Name),
			zap.String("marking", key.Marking),
			zap.Int("index", want),
			zap.Int("matches", seen))
		return nil, false, nil
	}
	return obj, true, nil
}

func matches(rec *model.Record, key model.IdentityKey) bool {
	if rec.Name != key.Name || rec.Marking != key.Marking {
		return false
	}
	return rec.BodyBased || key.FilePath == "" || rec.FilePath == key.FilePath
}
