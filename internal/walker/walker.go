package walker

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/StinkyLord/cad-bom-builder/internal/config"
	"github.com/StinkyLord/cad-bom-builder/internal/identity"
	"github.com/StinkyLord/cad-bom-builder/internal/logging"
	"github.com/StinkyLord/cad-bom-builder/internal/material"
	"github.com/StinkyLord/cad-bom-builder/internal/metrics"
	"github.com/StinkyLord/cad-bom-builder/internal/model"
	"github.com/StinkyLord/cad-bom-builder/internal/native"
	"github.com/StinkyLord/cad-bom-builder/internal/tracker"
)

// Walker extracts BOM records from an assembly.
type Walker struct {
	cfg        config.Config
	traverser  *Traverser
	normalizer material.Normalizer
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// New creates a Walker. log and m may be nil.
func New(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Walker {
	log = logging.Or(log)
	return &Walker{
		cfg:        cfg,
		traverser:  NewTraverser(cfg, log, m),
		normalizer: material.Normalizer{DefaultGrade: cfg.Material.DefaultGrade},
		log:        log,
		metrics:    m,
	}
}

// Traverser returns the traversal shared with location.
func (w *Walker) Traverser() *Traverser { return w.traverser }

// Extract walks the tree under root and returns one record per detail,
// purchased item and detail body, in traversal order, with instance indices
// assigned. Each record owns its native object; the caller releases them
// with model.ReleaseRecords. An assembly without details yields an empty,
// non-nil list.
func (w *Walker) Extract(root native.Part) ([]*model.Record, error) {
	records := []*model.Record{}
	ix := identity.New()

	err := w.traverser.Walk(root, func(c Candidate) (bool, bool) {
		rec, err := w.Record(c)
		if err != nil {
			w.traverser.fault(err, c.Depth)
			return false, false
		}
		ix.Assign(rec)
		records = append(records, rec)
		w.metrics.Record(rec.Classification.String())
		return true, false
	})
	if err != nil {
		_ = model.ReleaseRecords(records)
		return nil, native.WrapOp("extract", err)
	}

	w.log.Debug("extraction finished", zap.Int("records", len(records)))
	return records, nil
}

// Record reads the attributes of a candidate and classifies it. Extraction
// skips a candidate Record fails on, so it never gets an instance index;
// location applies the same rule. The record references the candidate's
// object without owning a new handle.
func (w *Walker) Record(c Candidate) (*model.Record, error) {
	obj := c.Object()
	desc := native.Describe(obj)

	name, err := obj.Name()
	if err != nil {
		return nil, native.NewFault("name", desc, err)
	}
	marking, err := obj.Marking()
	if err != nil {
		return nil, native.NewFault("marking", desc, err)
	}
	mass, err := obj.Mass()
	if err != nil {
		return nil, native.NewFault("mass", desc, err)
	}
	rawMaterial, err := obj.Property(w.cfg.Properties.Material)
	if err != nil {
		return nil, native.NewFault("material", desc, err)
	}
	rawLength, err := obj.Property(w.cfg.Properties.Length)
	if err != nil {
		return nil, native.NewFault("length", desc, err)
	}
	path, err := w.sourcePath(c)
	if err != nil {
		return nil, native.NewFault("file path", desc, err)
	}

	stock := w.normalizer.Parse(rawMaterial)
	rec := &model.Record{
		Name:      name,
		Marking:   marking,
		Section:   c.Section,
		Material:  stock.Text,
		Mass:      mass,
		FilePath:  path,
		BodyBased: c.BodyBased(),
		Object:    obj,
	}
	length := parseLength(rawLength)

	rec.Classification = model.Part
	if w.cfg.Sections.IsPurchased(c.Section) {
		// Purchased items (other purchased included) skip stock heuristics.
		rec.Classification = model.PurchasedPart
	} else {
		switch stock.Category(length) {
		case material.StockSheet:
			rec.Classification = model.SheetMaterial
		case material.StockTubular:
			rec.Classification = model.TubularProduct
			rec.Length = length
		}
	}
	return rec, nil
}

// sourcePath is the file of a part candidate, or the file of the part a body
// candidate is attached to.
func (w *Walker) sourcePath(c Candidate) (string, error) {
	if c.Part != nil {
		return c.Part.FilePath()
	}
	if c.Owner != nil {
		return c.Owner.FilePath()
	}
	scope := tracker.New(w.log, w.metrics)
	defer scope.ReleaseAll()
	owner, err := c.Body.Owner()
	if err != nil {
		return "", err
	}
	return tracker.Track(scope, owner).FilePath()
}

// parseLength reads a length property; "1 250,5" and "1250.5" are accepted.
// Unparseable or empty values mean no length.
func parseLength(raw string) float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	s = strings.Replace(s, ",", ".", 1)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
