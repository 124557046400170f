package fingerprint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	type entry struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}

	a, err := Compute([]entry{{ID: 1, Title: "Gottesdienst"}})
	require.NoError(t, err)
	assert.Len(t, a, 64)

	same, err := Compute([]entry{{ID: 1, Title: "Gottesdienst"}})
	require.NoError(t, err)
	assert.Equal(t, a, same)

	changed, err := Compute([]entry{{ID: 1, Title: "Jugendgottesdienst"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, changed)

	reordered, err := Compute([]entry{{ID: 2}, {ID: 1}})
	require.NoError(t, err)
	ordered, err := Compute([]entry{{ID: 1}, {ID: 2}})
	require.NoError(t, err)
	assert.NotEqual(t, ordered, reordered)
}

func TestCompute_Unserializable(t *testing.T) {
	_, err := Compute(make(chan int))
	require.Error(t, err)
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state"))
	value, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "", value)
}

func TestStore_RoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "sub", "state"))

	require.NoError(t, store.Save("abc123"))
	value, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc123", value)

	require.NoError(t, store.Save("def456"))
	value, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "def456", value)
}
