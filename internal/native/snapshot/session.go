package snapshot

import (
	"github.com/StinkyLord/cad-bom-builder/internal/native"
)

// Session is an offline native session. Open loads a snapshot file and makes
// it the active document.
type Session struct {
	active *Model
	models map[string]*Model
}

// NewSession returns a session with no open document.
func NewSession() *Session {
	return &Session{models: map[string]*Model{}}
}

// Attach makes an already built model the active document.
func (s *Session) Attach(m *Model) {
	s.active = m
	if m.path != "" {
		s.models[m.path] = m
	}
}

// Active returns the active model, or nil.
func (s *Session) Active() *Model { return s.active }

func (s *Session) ActiveDocument() (native.Document, error) {
	if s.active == nil {
		return nil, native.ErrSessionUnavailable
	}
	return s.active.Document(), nil
}

// Open returns a document on the snapshot at path, loading it once per session.
func (s *Session) Open(path string) (native.Document, error) {
	if m, ok := s.models[path]; ok {
		s.active = m
		return m.Document(), nil
	}
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.Attach(m)
	return m.Document(), nil
}
