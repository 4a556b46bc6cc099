package rowstore

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrTableExists  = errors.New("table already registered")
)

type table interface {
	Name() string
	Fields() []string
	Len() int
	Purge()
}

// Store groups named tables of any row type.
type Store struct {
	mu     sync.RWMutex
	tables map[string]table
}

func NewStore() *Store {
	return &Store{tables: make(map[string]table)}
}

// Register adds t to s under t.Name() and returns it.
func Register[K comparable, R any](s *Store, t *Table[K, R]) (*Table[K, R], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[t.Name()]; ok {
		return nil, errors.Wrap(ErrTableExists, t.Name())
	}
	s.tables[t.Name()] = t
	return t, nil
}

// Lookup returns the table registered under name with the given key and row types.
func Lookup[K comparable, R any](s *Store, name string) (*Table[K, R], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tbl, ok := s.tables[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownTable, name)
	}
	t, ok := tbl.(*Table[K, R])
	if !ok {
		return nil, errors.Errorf("table %s: row type mismatch (%T)", name, tbl)
	}
	return t, nil
}

func (s *Store) get(name string) (table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tbl, ok := s.tables[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownTable, name)
	}
	return tbl, nil
}

// Purge empties the named table.
func (s *Store) Purge(name string) error {
	tbl, err := s.get(name)
	if err != nil {
		return err
	}
	tbl.Purge()
	return nil
}

// Fields returns the updatable fields of the named table.
func (s *Store) Fields(name string) ([]string, error) {
	tbl, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return tbl.Fields(), nil
}

// Stats returns the row count of every table.
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int, len(s.tables))
	for name, tbl := range s.tables {
		stats[name] = tbl.Len()
	}
	return stats
}

func (s *Store) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
