// Package presence tracks which connections have joined a board and under
// what display name.
package presence

import (
	"maps"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	MaxNameLength = 32
	AnonymousName = "anonymous"
)

// Store is owned by a single board goroutine and is not safe for concurrent use.
type Store struct {
	users map[string]string
}

func NewStore() *Store {
	return &Store{users: make(map[string]string)}
}

// Join registers id under name. Joining again replaces the name. It returns
// the normalized name that was stored.
func (s *Store) Join(id, name string) string {
	name = NormalizeName(name)
	s.users[id] = name
	return name
}

// Leave removes id and reports whether it was present.
func (s *Store) Leave(id string) bool {
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	return true
}

func (s *Store) Name(id string) (string, bool) {
	name, ok := s.users[id]
	return name, ok
}

func (s *Store) Has(id string) bool {
	_, ok := s.users[id]
	return ok
}

func (s *Store) Len() int { return len(s.users) }

func (s *Store) Snapshot() map[string]string {
	return maps.Clone(s.users)
}

func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if r := []rune(name); len(r) > MaxNameLength {
		name = strings.TrimSpace(string(r[:MaxNameLength]))
	}
	if name == "" {
		return AnonymousName
	}
	return name
}
