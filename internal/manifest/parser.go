package manifest

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// DecodeManifest checks the consumed fields of an upstream manifest document
// against the manifest schema and decodes it.
func DecodeManifest(data []byte) (*Manifest, error) {
	result, err := ValidateManifest(data)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, result
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

// DecodeSource checks and decodes a source declaration. file is recorded on
// the returned Source.
func DecodeSource(data []byte, file string) (*Source, error) {
	result, err := ValidateSource(data)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", file, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("source %s: %w", file, result)
	}

	var s Source
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding source %s: %w", file, err)
	}
	s.File = file
	return &s, nil
}

// ParseSource reads and decodes the source file at path on fs.
func ParseSource(fs afero.Fs, path string) (*Source, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return DecodeSource(data, filepath.Base(path))
}
