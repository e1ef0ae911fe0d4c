package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentx-labs/regsync/internal/manifest"
	"github.com/spf13/afero"
)

// SourceFile is one entry of the source directory. Exactly one of Source and
// Err is set.
type SourceFile struct {
	File   string
	Source *manifest.Source
	Err    error
}

// DiscoverSources lists the *.json source declarations in dir in
// lexicographic filename order and decodes each one. A file that cannot be
// decoded is returned with Err set rather than failing the listing.
func DiscoverSources(fs afero.Fs, dir string) ([]SourceFile, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isSourceFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	result := make([]SourceFile, 0, len(names))
	for _, name := range names {
		src, err := manifest.ParseSource(fs, filepath.Join(dir, name))
		if err != nil {
			result = append(result, SourceFile{File: name, Err: err})
			continue
		}
		result = append(result, SourceFile{File: name, Source: src})
	}
	return result, nil
}

// isSourceFile returns true if the filename is a source declaration.
func isSourceFile(name string) bool {
	return strings.HasSuffix(name, ".json")
}
