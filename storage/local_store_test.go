package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLocalStore_GetMissing(t *testing.T) {
	s := openTestStore(t)

	v, ok, err := s.Get("agri_profile")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestLocalStore_SetOverwrites(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("k", `{"a":1}`))
	require.NoError(t, s.Set("k", `{"a":2}`))

	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"a":2}`, v)

	var count int64
	require.NoError(t, s.DB.Model(&KVEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestLocalStore_Delete(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("never-set"))

	_, ok, err := s.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "local.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("agri_profile", "{not json"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Get("agri_profile")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{not json", v, "store keeps bytes verbatim; parsing is the caller's concern")
}
