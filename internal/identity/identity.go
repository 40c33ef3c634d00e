// Package identity assigns instance indices to extracted records, so that
// structurally identical records of one pass get distinct, reproducible keys.
package identity

import "github.com/StinkyLord/cad-bom-builder/internal/model"

// group is the structural identity of a record. The source file only takes
// part in the identity of part-based records; bodies of different files with
// the same name and marking share a group.
type group struct {
	name      string
	marking   string
	bodyBased bool
	filePath  string
}

func groupOf(r *model.Record) group {
	g := group{name: r.Name, marking: r.Marking, bodyBased: r.BodyBased}
	if !r.BodyBased {
		g.filePath = r.FilePath
	}
	return g
}

// Indexer counts records per group in insertion order. The index of a record
// equals the number of records of its group seen before it in the pass.
type Indexer struct {
	seen map[group]int
}

// New returns an Indexer for one extraction pass.
func New() *Indexer {
	return &Indexer{seen: map[group]int{}}
}

// Assign stamps r with its instance index and returns it.
func (ix *Indexer) Assign(r *model.Record) int {
	g := groupOf(r)
	r.InstanceIndex = ix.seen[g]
	ix.seen[g]++
	return r.InstanceIndex
}

// SameGroup reports whether a and b are structurally identical.
func SameGroup(a, b *model.Record) bool {
	return groupOf(a) == groupOf(b)
}
