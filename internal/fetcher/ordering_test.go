package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortKeys_RealtimeDatabaseOrder(t *testing.T) {
	keys := []string{"b", "10", "-Nabc", "2", "007", "a", "-1", "99999999999"}
	sortKeys(keys)
	assert.Equal(t, []string{"-1", "2", "10", "-Nabc", "007", "99999999999", "a", "b"}, keys)
}

func TestEntriesFromObject(t *testing.T) {
	raw := map[string]any{"3": "c", "1": "a", "2": "b", "4": "d"}

	entries := entriesFromObject(raw, 2)
	assert.Equal(t, []Entry{{Key: "3", Value: "c"}, {Key: "4", Value: "d"}}, entries)

	assert.Len(t, entriesFromObject(raw, 0), 4)
	assert.Empty(t, entriesFromObject(nil, 5))
	assert.Empty(t, entriesFromObject("scalar", 5))
}

func TestEntriesFromObject_DenseArray(t *testing.T) {
	raw := []any{nil, "a", "b", nil, "d", "e", "f", "g", "h", "i", "j", "k"}

	entries := entriesFromObject(raw, 3)
	assert.Equal(t, []Entry{{Key: "9", Value: "i"}, {Key: "10", Value: "j"}, {Key: "11", Value: "k"}}, entries)

	all := entriesFromObject(raw, 0)
	require.Len(t, all, 10)
	assert.Equal(t, Entry{Key: "1", Value: "a"}, all[0])
	assert.Equal(t, Entry{Key: "4", Value: "d"}, all[2])

	assert.Empty(t, entriesFromObject([]any{nil, nil}, 5))
}

func TestAsObject(t *testing.T) {
	assert.Nil(t, asObject(nil))
	assert.Equal(t, map[string]any{}, asObject(12.5))
	assert.Equal(t, map[string]any{"a": 1.0}, asObject(map[string]any{"a": 1.0}))
}
