package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/StinkyLord/cad-bom-builder/internal/model"
)

// StoredRecord is the persisted form of a record: its identity key plus the
// fields shown in a BOM listing.
type StoredRecord struct {
	model.IdentityKey
	Classification model.Classification `json:"classification"`
	Section        string               `json:"section,omitempty"`
	Material       string               `json:"material,omitempty"`
	Mass           float64              `json:"mass"`
	Length         float64              `json:"length,omitempty"`

	// problem is why a loaded record cannot be located; nil when it can.
	problem error
	// unreadable marks a stored entry that did not decode as a record.
	unreadable bool
}

// Problem returns why the record cannot be resolved against a live
// assembly, or nil.
func (s StoredRecord) Problem() error { return s.problem }

// Readable reports whether the stored entry decoded as a record.
func (s StoredRecord) Readable() bool { return !s.unreadable }

// Unlocatable describes a stored record that cannot be resolved against a
// live assembly.
type Unlocatable struct {
	Position int    `json:"position"` // index in the stored records array
	Name     string `json:"name,omitempty"`
	Reason   string `json:"reason"`
}

// Document is the JSON persistence document of an extraction pass.
type Document struct {
	SerialNumber string         `json:"serialNumber"`
	GeneratedAt  string         `json:"generatedAt"`
	Tool         string         `json:"tool"`
	Source       string         `json:"source,omitempty"`
	Records      []StoredRecord `json:"records"`
	Summary      *model.Summary `json:"summary"`

	// Unlocatable lists the loaded records that cannot be located, in stored
	// order. It is not stored.
	Unlocatable []Unlocatable `json:"-"`
}

// NewDocument builds the document of an extraction pass.
func NewDocument(source string, records []*model.Record, summary *model.Summary, toolVersion string) *Document {
	if summary == nil {
		summary = model.Aggregate(records)
	}
	doc := &Document{
		SerialNumber: uuid.New().URN(),
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Tool:         "cad-bom-builder " + toolVersion,
		Source:       source,
		Records:      make([]StoredRecord, 0, len(records)),
		Summary:      summary,
	}
	for _, r := range records {
		doc.Records = append(doc.Records, StoredRecord{
			IdentityKey:    r.Key(),
			Classification: r.Classification,
			Section:        r.Section,
			Material:       r.Material,
			Mass:           r.Mass,
			Length:         r.Length,
		})
	}
	return doc
}

// Rows converts the readable stored records back to records without live
// objects, for aggregation and listing. Unlocatable records are included.
func (d *Document) Rows() []*model.Record {
	out := make([]*model.Record, 0, len(d.Records))
	for _, s := range d.Records {
		if s.unreadable {
			continue
		}
		out = append(out, &model.Record{
			Name:           s.Name,
			Marking:        s.Marking,
			Classification: s.Classification,
			Section:        s.Section,
			Material:       s.Material,
			Mass:           s.Mass,
			Length:         s.Length,
			FilePath:       s.FilePath,
			BodyBased:      s.BodyBased,
			InstanceIndex:  s.Index(),
		})
	}
	return out
}

// WriteDocument writes doc to outputPath. If outputPath is "-", it writes to stdout.
func WriteDocument(doc *Document, outputPath string) error {
	return writeJSON(outputPath, doc)
}

// storedDocument defers record decoding so one malformed record does not
// fail the whole load.
type storedDocument struct {
	SerialNumber string            `json:"serialNumber"`
	GeneratedAt  string            `json:"generatedAt"`
	Tool         string            `json:"tool"`
	Source       string            `json:"source"`
	Records      []json.RawMessage `json:"records"`
	Summary      *model.Summary    `json:"summary"`
}

// LoadDocument reads a document written by WriteDocument. Records keeps every
// stored entry at its stored position. Entries that cannot be decoded or
// whose identity key is incomplete are reported in Unlocatable and refused by
// Record; only an unreadable file or envelope is an error.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read document %q: %w", path, err)
	}
	return ParseDocument(data)
}

// ParseDocument decodes a document from JSON. See LoadDocument.
func ParseDocument(data []byte) (*Document, error) {
	var raw storedDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	doc := &Document{
		SerialNumber: raw.SerialNumber,
		GeneratedAt:  raw.GeneratedAt,
		Tool:         raw.Tool,
		Source:       raw.Source,
		Records:      make([]StoredRecord, 0, len(raw.Records)),
		Summary:      raw.Summary,
	}
	for i, msg := range raw.Records {
		var rec StoredRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			rec = StoredRecord{
				IdentityKey: model.IdentityKey{Name: rec.Name},
				problem:     err,
				unreadable:  true,
			}
		} else {
			rec.problem = rec.Validate()
		}
		if rec.problem != nil {
			doc.Unlocatable = append(doc.Unlocatable, Unlocatable{Position: i, Name: rec.Name, Reason: rec.problem.Error()})
		}
		doc.Records = append(doc.Records, rec)
	}
	if doc.Summary == nil {
		doc.Summary = model.Aggregate(doc.Rows())
	}
	return doc, nil
}

var (
	// ErrNoSuchRecord is returned by Record for an out-of-range position.
	ErrNoSuchRecord = errors.New("document has no record at that position")

	// ErrRecordUnlocatable is returned by Record for a stored record that
	// cannot be resolved against a live assembly.
	ErrRecordUnlocatable = errors.New("stored record cannot be located")
)

// Record returns the locatable stored record at position i of Records.
func (d *Document) Record(i int) (StoredRecord, error) {
	if i < 0 || i >= len(d.Records) {
		return StoredRecord{}, fmt.Errorf("%w: %d (have %d)", ErrNoSuchRecord, i, len(d.Records))
	}
	rec := d.Records[i]
	if rec.problem != nil {
		return rec, fmt.Errorf("%w: record %d: %w", ErrRecordUnlocatable, i, rec.problem)
	}
	return rec, nil
}
