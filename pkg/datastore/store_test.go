package datastore

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
)

const storePath = "/config/transmission-process-torrents/db.json"

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	fsys := afero.NewMemMapFs()

	store, err := Open(fsys, storePath, false)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
	assert.False(t, store.IsProcessed("/downloads/a"))

	exists, err := afero.Exists(fsys, storePath)
	require.NoError(t, err)
	assert.False(t, exists, "opening must not create the file")
}

func TestOpen_CorruptFileFails(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"/downloads/a": tr`},
		{"not an object", `["/downloads/a"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fsys, storePath, []byte(tt.content), 0644))

			_, err := Open(fsys, storePath, false)
			require.Error(t, err)
			assert.True(t, perrors.IsErrorCode(err, perrors.ErrStoreLoad))
		})
	}
}

func TestOpen_EmptyFileIsEmpty(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, storePath, []byte("\n"), 0644))

	store, err := Open(fsys, storePath, false)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestOpen_Markers(t *testing.T) {
	fsys := afero.NewMemMapFs()
	content := `{"/d/bool": true, "/d/false": false, "/d/one": 1, "/d/zero": 0, "/d/str": "yes", "/d/null": null}`
	require.NoError(t, afero.WriteFile(fsys, storePath, []byte(content), 0644))

	store, err := Open(fsys, storePath, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"/d/bool", "/d/one", "/d/str"}, store.Keys())
	assert.False(t, store.IsProcessed("/d/false"))
	assert.False(t, store.IsProcessed("/d/null"))
}

func TestStore_SetPersists(t *testing.T) {
	fsys := afero.NewMemMapFs()

	store, err := Open(fsys, storePath, false)
	require.NoError(t, err)
	require.NoError(t, store.Set("/downloads/Show.S01"))
	assert.True(t, store.IsProcessed("/downloads/Show.S01"))

	data, err := afero.ReadFile(fsys, storePath)
	require.NoError(t, err)
	var onDisk map[string]bool
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, map[string]bool{"/downloads/Show.S01": true}, onDisk)

	reopened, err := Open(fsys, storePath, false)
	require.NoError(t, err)
	assert.True(t, reopened.IsProcessed("/downloads/Show.S01"))
}

func TestStore_DeletePersists(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, storePath, []byte(`{"/d/a": true, "/d/b": true}`), 0644))

	store, err := Open(fsys, storePath, false)
	require.NoError(t, err)

	existed, err := store.Delete("/d/a")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete("/d/missing")
	require.NoError(t, err)
	assert.False(t, existed)

	reopened, err := Open(fsys, storePath, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/d/b"}, reopened.Keys())
}

func TestStore_KeysIsSnapshot(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, storePath, []byte(`{"/d/c": true, "/d/a": true, "/d/b": true}`), 0644))

	store, err := Open(fsys, storePath, false)
	require.NoError(t, err)

	keys := store.Keys()
	assert.Equal(t, []string{"/d/a", "/d/b", "/d/c"}, keys)
	for _, key := range keys {
		_, err := store.Delete(key)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, store.Len())
	assert.Len(t, keys, 3)
}

func TestStore_DryRunNeverWrites(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, storePath, []byte(`{"/d/old": true}`), 0644))

	store, err := Open(fsys, storePath, true)
	require.NoError(t, err)
	require.NoError(t, store.Set("/d/new"))
	_, err = store.Delete("/d/old")
	require.NoError(t, err)

	assert.True(t, store.IsProcessed("/d/new"))
	assert.False(t, store.IsProcessed("/d/old"))

	data, err := afero.ReadFile(fsys, storePath)
	require.NoError(t, err)
	assert.JSONEq(t, `{"/d/old": true}`, string(data))
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()

	store, err := Open(fsys, storePath, false)
	require.NoError(t, err)
	require.NoError(t, store.Set("/d/a"))
	require.NoError(t, store.Set("/d/b"))

	entries, err := afero.ReadDir(fsys, "/config/transmission-process-torrents")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "db.json", entries[0].Name())
}

func TestStore_SaveFailure(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())

	store, err := Open(fsys, storePath, false)
	require.NoError(t, err)

	err = store.Set("/d/a")
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrStoreSave))
}
