package model

import "sort"

// MaterialAggregate is the total mass and length of one material.
type MaterialAggregate struct {
	Material string  `json:"material"`
	Mass     float64 `json:"mass"`
	Length   float64 `json:"length,omitempty"`
}

// Summary holds the raw-material totals of an extraction pass.
type Summary struct {
	// Sheet contains sheet stock, heaviest first.
	Sheet []MaterialAggregate `json:"sheet"`

	// Tubular contains tubular products, longest first.
	Tubular []MaterialAggregate `json:"tubular"`

	// Other contains every other record with a material, heaviest first.
	Other []MaterialAggregate `json:"other"`
}

// Aggregate builds the material summary of records. It is recomputed from
// scratch on every call. Ties keep the order in which groups were first
// encountered.
func Aggregate(records []*Record) *Summary {
	sheet := newGroups()
	tubular := newGroups()
	other := newGroups()

	for _, r := range records {
		switch r.Classification {
		case SheetMaterial:
			if r.Material == "" {
				continue
			}
			sheet.add(r.Material, r.Mass, 0)
		case TubularProduct:
			tubular.add(r.Material, r.Mass, r.Length)
		default:
			if r.Material == "" {
				continue
			}
			other.add(r.Material, r.Mass, 0)
		}
	}

	s := &Summary{
		Sheet:   sheet.list(),
		Tubular: tubular.list(),
		Other:   other.list(),
	}
	byMass := func(list []MaterialAggregate) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Mass > list[j].Mass })
	}
	byMass(s.Sheet)
	byMass(s.Other)
	sort.SliceStable(s.Tubular, func(i, j int) bool { return s.Tubular[i].Length > s.Tubular[j].Length })
	return s
}

// groups accumulates aggregates in first-encountered order.
type groups struct {
	order []string
	byKey map[string]*MaterialAggregate
}

func newGroups() *groups {
	return &groups{byKey: map[string]*MaterialAggregate{}}
}

func (g *groups) add(material string, mass, length float64) {
	a, ok := g.byKey[material]
	if !ok {
		a = &MaterialAggregate{Material: material}
		g.byKey[material] = a
		g.order = append(g.order, material)
	}
	a.Mass += mass
	a.Length += length
}

func (g *groups) list() []MaterialAggregate {
	out := make([]MaterialAggregate, 0, len(g.order))
	for _, k := range g.order {
		out = append(out, *g.byKey[k])
	}
	return out
}
