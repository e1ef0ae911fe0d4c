package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentx-labs/regsync/internal/branding"
	"github.com/agentx-labs/regsync/internal/manifest"
	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned by ReadRecord when no record exists.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidName is returned for names that cannot be used as a filename
	// inside the registry directory.
	ErrInvalidName = errors.New("invalid plugin name")
)

const recordExt = ".json"

// Store reads and writes plugin records and the index in a registry
// directory. It is not safe for concurrent use.
type Store struct {
	fs        afero.Fs
	dir       string
	indexFile string
}

// NewStore returns a Store rooted at dir on fs.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir, indexFile: branding.IndexFile()}
}

// Dir returns the registry directory.
func (s *Store) Dir() string { return s.dir }

// Fs returns the filesystem the store writes to.
func (s *Store) Fs() afero.Fs { return s.fs }

// Init creates the registry directory if it does not exist.
func (s *Store) Init() error {
	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating registry directory %s: %w", s.dir, err)
	}
	return nil
}

// ValidateName checks that name can be used as a record filename.
func (s *Store) ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case name+recordExt == s.indexFile:
		return fmt.Errorf("%w: %q collides with the index file", ErrInvalidName, name)
	}
	return nil
}

// RecordPath returns the path of the record file for name.
func (s *Store) RecordPath(name string) string {
	return filepath.Join(s.dir, name+recordExt)
}

// IndexPath returns the path of the index file.
func (s *Store) IndexPath() string {
	return filepath.Join(s.dir, s.indexFile)
}

// ReadRecord loads the record for name. Returns ErrNotFound if absent.
func (s *Store) ReadRecord(name string) (*manifest.Record, error) {
	if err := s.ValidateName(name); err != nil {
		return nil, err
	}

	path := s.RecordPath(name)
	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", path, err)
	}

	var rec manifest.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", path, err)
	}
	return &rec, nil
}

// WriteRecord replaces the record file for name.
func (s *Store) WriteRecord(name string, rec *manifest.Record) error {
	if err := s.ValidateName(name); err != nil {
		return err
	}
	return s.writeJSON(s.RecordPath(name), rec)
}

// WriteIndex replaces the index file. A nil slice is written as [].
func (s *Store) WriteIndex(entries []manifest.IndexEntry) error {
	if entries == nil {
		entries = []manifest.IndexEntry{}
	}
	return s.writeJSON(s.IndexPath(), entries)
}

// ReadIndex loads the index file. A missing index yields an empty slice.
func (s *Store) ReadIndex() ([]manifest.IndexEntry, error) {
	data, err := afero.ReadFile(s.fs, s.IndexPath())
	if errors.Is(err, os.ErrNotExist) {
		return []manifest.IndexEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	var entries []manifest.IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	return entries, nil
}

// writeJSON encodes v with two-space indentation and replaces path with it.
// The data is written to a temporary file in the same directory and renamed
// over the target, so readers never observe a partial file.
func (s *Store) writeJSON(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := s.fs.Chmod(tmpName, 0644); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
