package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// Change is one change captured by Memory.
type Change struct {
	Paths []string
	Label string
}

// Memory is an in-memory Recorder. It snapshots file contents on each
// recorded change and compares against them for HasPendingChange.
type Memory struct {
	fs        afero.Fs
	committed map[string][]byte
	changes   []Change

	// Err, when set, is returned by RecordChange without recording anything.
	Err error
}

// NewMemory returns a Memory recorder reading files from fs.
func NewMemory(fs afero.Fs) *Memory {
	return &Memory{fs: fs, committed: make(map[string][]byte)}
}

// RecordChange snapshots paths under label.
func (m *Memory) RecordChange(_ context.Context, paths []string, label string) error {
	if m.Err != nil {
		return m.Err
	}
	for _, p := range paths {
		data, err := afero.ReadFile(m.fs, p)
		if err != nil {
			return fmt.Errorf("staging %s: %w", p, err)
		}
		m.committed[p] = data
	}
	m.changes = append(m.changes, Change{Paths: append([]string(nil), paths...), Label: label})
	return nil
}

// HasPendingChange reports whether path differs from its last snapshot.
func (m *Memory) HasPendingChange(path string) (bool, error) {
	data, err := afero.ReadFile(m.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		_, tracked := m.committed[path]
		return tracked, nil
	}
	if err != nil {
		return false, err
	}
	prev, tracked := m.committed[path]
	return !tracked || !bytes.Equal(prev, data), nil
}

// Changes returns the recorded changes in order.
func (m *Memory) Changes() []Change {
	return append([]Change(nil), m.changes...)
}

// Labels returns the labels of the recorded changes in order.
func (m *Memory) Labels() []string {
	labels := make([]string, len(m.changes))
	for i, c := range m.changes {
		labels[i] = c.Label
	}
	return labels
}
