// Package history records labeled changes to registry files. The Git
// recorder commits them to the repository containing the registry; Nop and
// Memory stand in when no history should be written or in tests.
package history

import (
	"context"
)

// Recorder persists labeled changes.
type Recorder interface {
	// RecordChange stages paths and persists them as one change labeled label.
	RecordChange(ctx context.Context, paths []string, label string) error
	// HasPendingChange reports whether path differs from the last recorded state.
	HasPendingChange(path string) (bool, error)
}

// Nop records nothing and never reports pending changes.
type Nop struct{}

// RecordChange does nothing.
func (Nop) RecordChange(context.Context, []string, string) error { return nil }

// HasPendingChange always reports false.
func (Nop) HasPendingChange(string) (bool, error) { return false, nil }
