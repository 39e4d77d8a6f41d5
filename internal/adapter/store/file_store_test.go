package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, content string) *FileScheduleStore {
	path := filepath.Join(t.TempDir(), "schedule.json")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return NewFileScheduleStore(path, zap.NewNop())
}

func TestFileStoreLoad(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	store := newTestStore(t, `{"************":"netzero","202503010800":-400,"2025030109**":300}`)
	entries, err := store.Load()
	require.NoError(err)
	assert.Len(entries, 3)
	assert.Equal(domain.NetZeroValue(), entries["************"])
	assert.Equal(domain.FixedValue(-400), entries["202503010800"])

	sorted, err := store.Entries()
	require.NoError(err)
	assert.Equal("************", sorted[0].Key)
	assert.Equal("202503010800", sorted[1].Key)
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	entries, err := newTestStore(t, "").Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreLoadInvalid(t *testing.T) {
	_, err := newTestStore(t, `{"************":"max"}`).Load()
	assert.Error(t, err)
}

func TestFileStoreUpsertAndRename(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	store := newTestStore(t, "")
	changes := 0
	store.OnChange(func() { changes++ })

	require.NoError(store.Upsert("202503010800", domain.FixedValue(500), ""))
	require.NoError(store.Upsert("202503010800", domain.FixedValue(600), ""))
	require.NoError(store.Upsert("202503010900", domain.NetZeroPlusValue(), "202503010800"))

	entries, err := store.Load()
	require.NoError(err)
	assert.Equal(map[string]domain.ScheduleValue{"202503010900": domain.NetZeroPlusValue()}, entries)
	assert.Equal(3, changes)

	data, err := os.ReadFile(store.Path)
	require.NoError(err)
	assert.JSONEq(`{"202503010900":"netzero+"}`, string(data))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(store.Path), "*.tmp"))
	require.NoError(err)
	assert.Empty(matches, "no temp file left behind")
}

func TestFileStoreRejectsInvalidKey(t *testing.T) {
	store := newTestStore(t, `{"************":0}`)

	err := store.Upsert("2025-03-01", domain.FixedValue(1), "")
	assert.ErrorIs(t, err, domain.ErrInvalidScheduleKey)

	err = store.Delete("abc")
	assert.ErrorIs(t, err, domain.ErrInvalidScheduleKey)

	entries, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1, "store untouched")
}

func TestFileStoreDelete(t *testing.T) {
	store := newTestStore(t, `{"************":0,"202503010800":100}`)

	require.NoError(t, store.Delete("202503010800"))
	err := store.Delete("202503010800")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	entries, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.ScheduleValue{"************": domain.FixedValue(0)}, entries)
}

func TestFileStoreWriteFailureKeepsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "schedule.json")
	store := NewFileScheduleStore(path, zap.NewNop())

	err := store.Upsert("202503010800", domain.FixedValue(1), "")
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
