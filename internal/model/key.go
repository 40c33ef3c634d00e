package model

import "errors"

// IdentityKey is the persisted projection of a record sufficient to find the
// same object again in a live assembly.
//
// InstanceIndex is a pointer so that a stored record missing the index can
// be told apart from index 0.
type IdentityKey struct {
	Name          string `json:"name"`
	Marking       string `json:"marking"`
	BodyBased     bool   `json:"bodyBased"`
	FilePath      string `json:"filePath"`
	InstanceIndex *int   `json:"instanceIndex"`
}

var (
	ErrKeyNoName  = errors.New("identity key has no name")
	ErrKeyNoIndex = errors.New("identity key has no instance index")
	ErrKeyBadIdx  = errors.New("identity key has a negative instance index")
)

// Validate reports why a key cannot be located, or nil.
func (k IdentityKey) Validate() error {
	switch {
	case k.Name == "":
		return ErrKeyNoName
	case k.InstanceIndex == nil:
		return ErrKeyNoIndex
	case *k.InstanceIndex < 0:
		return ErrKeyBadIdx
	}
	return nil
}

// Index returns the instance index, or -1 when it is missing.
func (k IdentityKey) Index() int {
	if k.InstanceIndex == nil {
		return -1
	}
	return *k.InstanceIndex
}

// NewKey builds a key with the given index.
func NewKey(name, marking string, bodyBased bool, filePath string, index int) IdentityKey {
	return IdentityKey{Name: name, Marking: marking, BodyBased: bodyBased, FilePath: filePath, InstanceIndex: &index}
}
