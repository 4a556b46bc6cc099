package rowstore

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	ID    string
	Name  string
	Count int
}

func newCounterTable() *Table[string, counter] {
	return NewTable("counters", func(c counter) string { return c.ID }, Schema[counter]{
		"name":  Field(func(c *counter, v string) { c.Name = v }),
		"count": Field(func(c *counter, v int) { c.Count = v }),
	})
}

func TestTable_InsertGetAll(t *testing.T) {
	tbl := newCounterTable()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, tbl.Insert(counter{ID: id}))
	}

	err := tbl.Insert(counter{ID: "a", Name: "dup"})
	assert.Equal(t, ErrDuplicateKey, errors.Cause(err))

	rows := tbl.GetAll()
	require.Len(t, rows, 3)
	assert.Equal(t, "c", rows[0].ID)
	assert.Equal(t, "a", rows[1].ID)
	assert.Equal(t, "b", rows[2].ID)
	assert.Equal(t, "", rows[1].Name, "duplicate insert must not overwrite")
}

func TestTable_UpdateField(t *testing.T) {
	tbl := newCounterTable()
	require.NoError(t, tbl.Insert(counter{ID: "a"}))

	tests := []struct {
		name    string
		key     string
		field   string
		value   interface{}
		wantErr error
	}{
		{name: "ok", key: "a", field: "name", value: "Alice"},
		{name: "missing key", key: "zz", field: "name", value: "x", wantErr: ErrKeyNotFound},
		{name: "unknown field", key: "a", field: "lol", value: "x", wantErr: ErrUnknownField},
		{name: "wrong type", key: "a", field: "count", value: "3", wantErr: ErrFieldType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tbl.UpdateField(tt.key, tt.field, tt.value)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			assert.NoError(t, err)
		})
	}

	row, err := tbl.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", row.Name)
	assert.Equal(t, 0, row.Count)

	_, err = tbl.Get("zz")
	assert.Equal(t, ErrKeyNotFound, errors.Cause(err))
}

func TestTable_UpdateRollsBackOnError(t *testing.T) {
	tbl := newCounterTable()
	require.NoError(t, tbl.Insert(counter{ID: "a", Count: 1}))

	boom := errors.New("boom")
	_, err := tbl.Update("a", func(c *counter) error {
		c.Count = 99
		return boom
	})
	assert.Equal(t, boom, err)

	row, _ := tbl.Get("a")
	assert.Equal(t, 1, row.Count)
}

func TestTable_ConcurrentUpdatesAreNotLost(t *testing.T) {
	tbl := newCounterTable()
	require.NoError(t, tbl.Insert(counter{ID: "a"}))
	require.NoError(t, tbl.Insert(counter{ID: "b"}))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		for _, id := range []string{"a", "b"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := tbl.Update(id, func(c *counter) error {
					c.Count++
					return nil
				})
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"a", "b"} {
		row, err := tbl.Get(id)
		require.NoError(t, err)
		assert.Equal(t, workers, row.Count, id)
	}
}

func TestTable_DeleteFunc(t *testing.T) {
	tbl := newCounterTable()
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, tbl.Insert(counter{ID: id, Count: i}))
	}

	removed := tbl.DeleteFunc(func(c counter) bool { return c.Count%2 == 0 })
	require.Len(t, removed, 2)
	assert.Equal(t, "a", removed[0].ID)
	assert.Equal(t, "c", removed[1].ID)

	rows := tbl.GetAll()
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0].ID)
	assert.Equal(t, "d", rows[1].ID)

	// a removed key can be inserted again
	assert.NoError(t, tbl.Insert(counter{ID: "a"}))
}

func TestStore_PurgeKeepsSchema(t *testing.T) {
	store := NewStore()
	tbl, err := Register(store, newCounterTable())
	require.NoError(t, err)

	_, err = Register(store, newCounterTable())
	assert.Equal(t, ErrTableExists, errors.Cause(err))

	require.NoError(t, tbl.Insert(counter{ID: "a"}))
	require.NoError(t, store.Purge("counters"))

	assert.Empty(t, tbl.GetAll())
	assert.Equal(t, 0, tbl.Len())
	fields, err := store.Fields("counters")
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "name"}, fields)

	err = tbl.UpdateField("a", "name", "x")
	assert.Equal(t, ErrKeyNotFound, errors.Cause(err))

	assert.Equal(t, ErrUnknownTable, errors.Cause(store.Purge("lol")))
}

func TestLookup(t *testing.T) {
	store := NewStore()
	_, err := Register(store, newCounterTable())
	require.NoError(t, err)

	tbl, err := Lookup[string, counter](store, "counters")
	require.NoError(t, err)
	assert.Equal(t, "counters", tbl.Name())

	_, err = Lookup[int, counter](store, "counters")
	assert.Error(t, err)

	_, err = Lookup[string, counter](store, "nope")
	assert.Equal(t, ErrUnknownTable, errors.Cause(err))

	assert.Equal(t, []string{"counters"}, store.Tables())
	assert.Equal(t, map[string]int{"counters": 0}, store.Stats())
}
