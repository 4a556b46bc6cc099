// Package rowstore provides named, keyed, in-memory tables that are safe for concurrent use.
//
// Structural operations (Insert, Purge, DeleteFunc) take the table lock exclusively.
// Row mutations (Update, UpdateField) only hold the table lock long enough to find the
// row and then serialize on that row's own lock, so updates to different rows never
// wait on each other while updates to the same row are linearizable.
//
// Tables are independent: nothing spans two tables atomically.
package rowstore

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrUnknownField = errors.New("unknown field")
	ErrFieldType    = errors.New("invalid field value type")
)

type (
	// Setter assigns value to one field of row.
	Setter[R any] func(row *R, value interface{}) error

	// Schema maps field names to their setters.
	Schema[R any] map[string]Setter[R]

	entry[R any] struct {
		mu      sync.Mutex
		row     R
		deleted bool
	}

	// Table is a keyed table of R rows. The zero value is not usable; see NewTable.
	Table[K comparable, R any] struct {
		name   string
		keyOf  func(R) K
		schema Schema[R]

		mu    sync.RWMutex
		index map[K]*entry[R]
		order []K // insertion order
	}
)

// Field builds a typed Setter.
func Field[R, V any](set func(row *R, v V)) Setter[R] {
	return func(row *R, value interface{}) error {
		v, ok := value.(V)
		if !ok {
			return errors.Wrapf(ErrFieldType, "got %T", value)
		}
		set(row, v)
		return nil
	}
}

func NewTable[K comparable, R any](name string, keyOf func(R) K, schema Schema[R]) *Table[K, R] {
	if schema == nil {
		schema = Schema[R]{}
	}
	return &Table[K, R]{
		name:   name,
		keyOf:  keyOf,
		schema: schema,
		index:  make(map[K]*entry[R]),
	}
}

func (t *Table[K, R]) Name() string { return t.name }

// Fields returns the names of the updatable fields, sorted. They survive Purge.
func (t *Table[K, R]) Fields() []string {
	names := make([]string, 0, len(t.schema))
	for name := range t.schema {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t *Table[K, R]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.index)
}

// Insert appends row. It fails with ErrDuplicateKey if a row with the same key exists.
func (t *Table[K, R]) Insert(row R) error {
	key := t.keyOf(row)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.index[key]; ok {
		return errors.Wrapf(ErrDuplicateKey, "%s: %v", t.name, key)
	}
	t.index[key] = &entry[R]{row: row}
	t.order = append(t.order, key)
	return nil
}

// lookup returns the entry of key, locked. Callers must unlock it.
func (t *Table[K, R]) lookup(key K) (*entry[R], error) {
	t.mu.RLock()
	e, ok := t.index[key]
	t.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrKeyNotFound, "%s: %v", t.name, key)
	}

	e.mu.Lock()
	if e.deleted { // purged between lookup and lock
		e.mu.Unlock()
		return nil, errors.Wrapf(ErrKeyNotFound, "%s: %v", t.name, key)
	}
	return e, nil
}

func (t *Table[K, R]) Get(key K) (R, error) {
	e, err := t.lookup(key)
	if err != nil {
		var zero R
		return zero, err
	}
	defer e.mu.Unlock()
	return e.row, nil
}

// Update runs fn on a copy of the row under the row lock and stores the copy if fn succeeds.
// The read, the computation and the write form one critical section.
func (t *Table[K, R]) Update(key K, fn func(row *R) error) (R, error) {
	e, err := t.lookup(key)
	if err != nil {
		var zero R
		return zero, err
	}
	defer e.mu.Unlock()

	row := e.row
	if err = fn(&row); err != nil {
		return e.row, err
	}
	e.row = row
	return row, nil
}

// UpdateField sets a single named field of the row with the given key.
func (t *Table[K, R]) UpdateField(key K, field string, value interface{}) error {
	set, ok := t.schema[field]
	if !ok {
		return errors.Wrapf(ErrUnknownField, "%s.%s", t.name, field)
	}
	_, err := t.Update(key, func(row *R) error {
		return set(row, value)
	})
	return errors.Wrapf(err, "%s.%s", t.name, field)
}

// GetAll returns a snapshot of every row in insertion order.
func (t *Table[K, R]) GetAll() []R {
	return t.Filter(nil)
}

// Filter returns the rows matching pred (all rows if pred is nil) in insertion order.
func (t *Table[K, R]) Filter(pred func(R) bool) []R {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rows := make([]R, 0, len(t.order))
	for _, key := range t.order {
		e := t.index[key]
		e.mu.Lock()
		row := e.row
		e.mu.Unlock()
		if pred == nil || pred(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

// DeleteFunc removes every row matching pred and returns them in insertion order.
func (t *Table[K, R]) DeleteFunc(pred func(R) bool) []R {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []R
	kept := t.order[:0]
	for _, key := range t.order {
		e := t.index[key]
		e.mu.Lock()
		if pred(e.row) {
			e.deleted = true
			removed = append(removed, e.row)
			delete(t.index, key)
		} else {
			kept = append(kept, key)
		}
		e.mu.Unlock()
	}
	t.order = kept
	return removed
}

// Purge empties the table. The schema is retained.
func (t *Table[K, R]) Purge() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.index {
		e.mu.Lock()
		e.deleted = true
		e.mu.Unlock()
	}
	t.index = make(map[K]*entry[R])
	t.order = nil
}
