package datastore

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
	"github.com/mrmachine/transmission-process-torrents/pkg/logging"
)

// Store is the processed record store.
type Store struct {
	fs      afero.Fs
	path    string
	dryRun  bool
	records map[string]bool
	logger  zerolog.Logger
}

// Open loads the store at path. A missing file yields an empty store; a file
// that cannot be read or parsed is an error.
func Open(fsys afero.Fs, path string, dryRun bool) (*Store, error) {
	s := &Store{
		fs:      fsys,
		path:    path,
		dryRun:  dryRun,
		records: make(map[string]bool),
		logger:  logging.GetLogger("datastore").With().Str("path", path).Bool("dry_run", dryRun).Logger(),
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Msg("No processed record store yet, starting empty")
			return s, nil
		}
		return nil, perrors.Wrapf(err, perrors.ErrStoreLoad, "cannot read processed record store %s", path)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		s.logger.Debug().Msg("Processed record store is empty")
		return s, nil
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, perrors.Wrapf(err, perrors.ErrStoreLoad, "processed record store %s is corrupt", path)
	}
	for key, marker := range raw {
		if truthy(marker) {
			s.records[key] = true
		}
	}

	s.logger.Debug().Int("records", len(s.records)).Msg("Loaded processed record store")
	return s, nil
}

// truthy accepts the markers older versions of the store may contain.
func truthy(v interface{}) bool {
	switch m := v.(type) {
	case bool:
		return m
	case float64:
		return m != 0
	case string:
		return m != ""
	case nil:
		return false
	default:
		return true
	}
}

// Path returns the store file location.
func (s *Store) Path() string {
	return s.path
}

// IsProcessed reports whether remotePath has been merged.
func (s *Store) IsProcessed(remotePath string) bool {
	return s.records[remotePath]
}

// Set records remotePath as processed and saves the store.
func (s *Store) Set(remotePath string) error {
	if s.records[remotePath] {
		return nil
	}
	s.records[remotePath] = true
	s.logger.Debug().Str("remote_path", remotePath).Msg("Recording processed item")
	return s.Save()
}

// Delete forgets remotePath and saves the store. It reports whether a record
// existed; deleting an absent record is not an error and does not write.
func (s *Store) Delete(remotePath string) (bool, error) {
	if _, ok := s.records[remotePath]; !ok {
		return false, nil
	}
	delete(s.records, remotePath)
	s.logger.Debug().Str("remote_path", remotePath).Msg("Forgetting processed item")
	return true, s.Save()
}

// Keys returns a sorted snapshot of the recorded remote paths. Callers may
// mutate the store while ranging over it.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Save writes the store through a temporary file renamed over the target.
// It does nothing in dry-run mode.
func (s *Store) Save() error {
	if s.dryRun {
		s.logger.Trace().Msg("Dry run, not saving processed record store")
		return nil
	}

	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return perrors.Wrap(err, perrors.ErrStoreSave, "cannot encode processed record store")
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return perrors.Wrapf(err, perrors.ErrStoreSave, "cannot create directory %s", dir)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return perrors.Wrapf(err, perrors.ErrStoreSave, "cannot create temporary file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return perrors.Wrapf(err, perrors.ErrStoreSave, "cannot write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return perrors.Wrapf(err, perrors.ErrStoreSave, "cannot sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return perrors.Wrapf(err, perrors.ErrStoreSave, "cannot close %s", tmpName)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return perrors.Wrapf(err, perrors.ErrStoreSave, "cannot replace %s", s.path)
	}

	s.logger.Trace().Int("records", len(s.records)).Msg("Saved processed record store")
	return nil
}
