// Package scanner is the entry point for running extraction and spatial
// queries against a native session. Operations on one Scanner are
// serialized: the native session is not reentrant, so at most one structural
// operation is in flight per session.
package scanner

import (
	"context"
	"fmt"

	"cogentcore.org/core/math32"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/StinkyLord/cad-bom-builder/internal/camera"
	"github.com/StinkyLord/cad-bom-builder/internal/config"
	"github.com/StinkyLord/cad-bom-builder/internal/locator"
	"github.com/StinkyLord/cad-bom-builder/internal/logging"
	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
	"github.com/StinkyLord/cad-bom-builder/internal/model"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
	"github.com/StinkyLord/cad-bom-builder/internal/occlusion"
	"github.com/StinkyLord/cad-bom-builder/internal/tracker"
	"github.com/StinkyLord/cad-bom-builder/internal/walker"
)

// Result holds the records of an extraction pass and their material summary.
type Result struct {
	Source  string
	Records []*model.Record
	Summary *model.Summary
}

// Release releases the native objects referenced by the records.
func (r *Result) Release() error {
	return model.ReleaseRecords(r.Records)
}

// Scanner runs operations against one native session.
type Scanner struct {
	session native.Session
	cfg     config.Config
	log     *zap.Logger
	metrics *metrics.Metrics
	queue   *semaphore.Weighted

	walker   *walker.Walker
	locator  *locator.Locator
	geometry *camera.Geometry
	detector *occlusion.Detector
}

// New creates a Scanner. log and m may be nil.
func New(session native.Session, cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Scanner {
	log = logging.Or(log)
	w := walker.New(cfg, log, m)
	geom := camera.New(cfg.Focus.ReferenceSize, log, m)
	return &Scanner{
		session:  session,
		cfg:      cfg,
		log:      log,
		metrics:  m,
		queue:    semaphore.NewWeighted(1),
		walker:   w,
		locator:  locator.New(w, log),
		geometry: geom,
		detector: occlusion.New(cfg.Occlusion, geom, log, m),
	}
}

// do runs fn with exclusive access to the session. ctx only bounds the wait
// for access; fn itself runs to completion.
func (s *Scanner) do(ctx context.Context, op string, fn func(doc native.Document, scope *tracker.Tracker) error) error {
	if err := s.queue.Acquire(ctx, 1); err != nil {
		return native.WrapOp(op, fmt.Errorf("waiting for the session: %w", err))
	}
	defer s.queue.Release(1)

	if s.session == nil {
		return native.WrapOp(op, native.ErrSessionUnavailable)
	}
	doc, err := s.session.ActiveDocument()
	if err != nil {
		return native.WrapOp(op, err)
	}
	scope := tracker.New(s.log, s.metrics)
	defer scope.ReleaseAll()
	tracker.Track(scope, doc)
	return fn(doc, scope)
}

func root(doc native.Document, scope *tracker.Tracker) (native.Part, error) {
	r, err := doc.Root()
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, native.ErrSessionUnavailable
	}
	return tracker.Track(scope, r), nil
}

// Open makes the document at path active in the session.
func (s *Scanner) Open(ctx context.Context, path string) error {
	if err := s.queue.Acquire(ctx, 1); err != nil {
		return native.WrapOp("open", err)
	}
	defer s.queue.Release(1)
	if s.session == nil {
		return native.WrapOp("open", native.ErrSessionUnavailable)
	}
	doc, err := s.session.Open(path)
	if err != nil {
		return native.WrapOp("open", err)
	}
	if err := doc.Release(); err != nil {
		s.log.Warn("document handle failed to release", zap.Error(err))
	}
	return nil
}

// Extract runs an extraction pass on the active document. The returned
// records own their native objects; release them with Result.Release.
func (s *Scanner) Extract(ctx context.Context) (*Result, error) {
	var res *Result
	err := s.do(ctx, "extract", func(doc native.Document, scope *tracker.Tracker) error {
		r, err := root(doc, scope)
		if err != nil {
			return native.WrapOp("extract", err)
		}
		records, err := s.walker.Extract(r)
		if err != nil {
			return err
		}
		res = &Result{
			Source:  doc.Path(),
			Records: records,
			Summary: model.Aggregate(records),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("extraction complete",
		zap.String("source", res.Source),
		zap.Int("records", len(res.Records)),
		zap.Int("sheet_materials", len(res.Summary.Sheet)),
		zap.Int("tubular_materials", len(res.Summary.Tubular)),
		zap.Int("other_materials", len(res.Summary.Other)))
	return res, nil
}

// Locate finds the live object of key in the active document. ok is false
// when the document has no such object. The caller owns the returned object.
func (s *Scanner) Locate(ctx context.Context, key model.IdentityKey) (obj native.Object, ok bool, err error) {
	err = s.do(ctx, "locate", func(doc native.Document, scope *tracker.Tracker) error {
		r, err := root(doc, scope)
		if err != nil {
			return native.WrapOp("locate", err)
		}
		obj, ok, err = s.locator.Locate(key, r)
		return err
	})
	return obj, ok, err
}

// Focus frames obj in the active viewport and returns the applied center
// and scale.
func (s *Scanner) Focus(ctx context.Context, obj native.Object) (math32.Vector3, float32, error) {
	var (
		center math32.Vector3
		scale  float32
	)
	err := s.do(ctx, "focus", func(doc native.Document, scope *tracker.Tracker) error {
		var err error
		center, scale, err = s.geometry.Focus(obj)
		if err != nil {
			return err
		}
		vp, err := doc.Viewport()
		if err != nil {
			return native.WrapOp("focus", err)
		}
		tracker.Track(scope, vp)
		return camera.ApplyFocus(vp, center, scale)
	})
	return center, scale, err
}

// Occluders lists the parts hiding obj in the active viewport. The caller
// owns the returned parts; release them with occlusion.ReleaseParts. trace
// may be nil.
func (s *Scanner) Occluders(ctx context.Context, obj native.Object, trace *occlusion.RayTrace) ([]native.Part, error) {
	var parts []native.Part
	err := s.do(ctx, "occluders", func(doc native.Document, scope *tracker.Tracker) error {
		vp, err := doc.Viewport()
		if err != nil {
			return native.WrapOp("occluders", err)
		}
		tracker.Track(scope, vp)
		scene, err := doc.Scene()
		if err != nil {
			return native.WrapOp("occluders", err)
		}
		tracker.Track(scope, scene)
		parts, err = s.detector.FindOccluders(obj, vp, scene, trace)
		return err
	})
	return parts, err
}
