// Package model defines the internal data structures of the BOM extractor.
package model

import (
	"errors"
	"fmt"

	"github.com/StinkyLord/cad-bom-builder/internal/native"
)

// Classification is the BOM category of a record.
type Classification int

const (
	Part Classification = iota
	PurchasedPart
	SheetMaterial
	TubularProduct
)

var classificationNames = [...]string{"part", "purchased", "sheet", "tubular"}

func (c Classification) String() string {
	if c < 0 || int(c) >= len(classificationNames) {
		return fmt.Sprintf("classification(%d)", int(c))
	}
	return classificationNames[c]
}

func (c Classification) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(classificationNames) {
		return nil, fmt.Errorf("unknown classification %d", int(c))
	}
	return []byte(classificationNames[c]), nil
}

func (c *Classification) UnmarshalText(text []byte) error {
	for i, name := range classificationNames {
		if name == string(text) {
			*c = Classification(i)
			return nil
		}
	}
	return fmt.Errorf("unknown classification %q", string(text))
}

// Record is one manufactured part, purchased part or raw-material body
// extracted from an assembly.
type Record struct {
	Name           string
	Marking        string
	Classification Classification
	Section        string // parts-list section as declared on the object
	Material       string // normalized material descriptor
	Mass           float64
	Length         float64 // tubular stock only
	FilePath       string
	BodyBased      bool // derived from a solid body rather than a part
	InstanceIndex  int  // ordinal among structurally identical records of the pass

	// Object is the live native part or body. The record's consumer owns it
	// and releases it with Release; it is nil for records loaded from storage.
	Object native.Object

	preview    []byte
	previewErr error
	previewSet bool
}

// Key returns the identity key of the record.
func (r *Record) Key() IdentityKey {
	idx := r.InstanceIndex
	return IdentityKey{
		Name:          r.Name,
		Marking:       r.Marking,
		BodyBased:     r.BodyBased,
		FilePath:      r.FilePath,
		InstanceIndex: &idx,
	}
}

// Release drops the record's native object. Calling it again is a no-op.
func (r *Record) Release() error {
	if r.Object == nil {
		return nil
	}
	obj := r.Object
	r.Object = nil
	return obj.Release()
}

// Preview returns the record's preview image, rendering it on first use.
// The result (including a render error) is cached.
func (r *Record) Preview(render func(native.Object) ([]byte, error)) ([]byte, error) {
	if !r.previewSet {
		if r.Object == nil {
			return nil, errors.New("record has no live object to render")
		}
		r.preview, r.previewErr = render(r.Object)
		r.previewSet = true
	}
	return r.preview, r.previewErr
}

// ReleaseRecords releases the native objects of all records and returns the
// first error.
func ReleaseRecords(records []*Record) error {
	var first error
	for _, r := range records {
		if err := r.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
