// Package snapshot implements the native session interfaces over a YAML
// description of an assembly. It is used for offline runs and tests: handles
// are reference counted through a Ledger, so leaks and double releases are
// observable, and any object can declare injected native faults.
//
// A snapshot file looks like:
//
//	view:
//	  matrix: [1,0,0,0, 0,1,0,0, 0,0,1,0, 0,0,0,1]
//	  scale: 1
//	root:
//	  name: Стол
//	  marking: СБ.001
//	  file: C:/models/table.a3d
//	  children:
//	    - name: Панель
//	      marking: ДТ.001
//	      file: C:/models/panel.m3d
//	      detail: true
//	      mass: 3.2
//	      properties:
//	        Раздел спецификации: Детали
//	        Материал: Лист х/к(0.5);$d2.0;AISI 304
//	      bbox: {min: [0,0,0], max: [200,50,50]}
//	      faults: [children]
package snapshot

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Spec is the root of a snapshot file.
type Spec struct {
	View *ViewSpec `yaml:"view,omitempty"`
	Root NodeSpec  `yaml:"root"`
}

// ViewSpec is the active view transform, 16 column-major elements.
type ViewSpec struct {
	Matrix []float32 `yaml:"matrix"`
	Scale  float32   `yaml:"scale"`
}

// BoxSpec is an axis-aligned box.
type BoxSpec struct {
	Min [3]float32 `yaml:"min"`
	Max [3]float32 `yaml:"max"`
}

// NodeSpec describes a part: a sub-assembly or a detail.
type NodeSpec struct {
	Name       string            `yaml:"name"`
	Marking    string            `yaml:"marking,omitempty"`
	File       string            `yaml:"file,omitempty"`
	Detail     bool              `yaml:"detail,omitempty"`
	Mass       float64           `yaml:"mass,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
	Origin     [3]float32        `yaml:"origin,omitempty"`

	// BBox is in the parent's frame. When omitted it is the union of the
	// node's children and bodies, shifted by Origin.
	BBox *BoxSpec `yaml:"bbox,omitempty"`

	Bodies   []BodySpec `yaml:"bodies,omitempty"`
	Children []NodeSpec `yaml:"children,omitempty"`

	// Faults lists native operations that fail on this node: name, marking,
	// filepath, detail, mass, bbox, placement, parent, children, bodies,
	// owner, property (all properties) or property:<name>.
	Faults []string `yaml:"faults,omitempty"`
}

// BodySpec describes a solid body attached to a node. BBox is in the frame
// of the owning node.
type BodySpec struct {
	Name       string            `yaml:"name"`
	Marking    string            `yaml:"marking,omitempty"`
	Mass       float64           `yaml:"mass,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
	BBox       *BoxSpec          `yaml:"bbox,omitempty"`
	Faults     []string          `yaml:"faults,omitempty"`
}

// Parse decodes a snapshot from YAML.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if s.View != nil && len(s.View.Matrix) != 16 {
		return nil, fmt.Errorf("snapshot view matrix has %d elements, want 16", len(s.View.Matrix))
	}
	if s.Root.Name == "" {
		return nil, fmt.Errorf("snapshot root has no name")
	}
	return &s, nil
}

// ReadFile loads a snapshot spec from path.
func ReadFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read snapshot %q: %w", path, err)
	}
	return Parse(data)
}

// WriteFile writes s as YAML to path.
func (s *Spec) WriteFile(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
