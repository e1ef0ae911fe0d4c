package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON field names of the upstream manifest document.
const (
	FieldName        = "name"
	FieldVersion     = "version"
	FieldDownloadURL = "downloadUrl"
	FieldDescription = "description"
	FieldHomepage    = "homepage"
	FieldSHA256      = "sha256"
)

// Source declares one plugin the registry tracks. It is read from a JSON file
// in the source directory.
type Source struct {
	Name        string `json:"name"`
	ManifestURL string `json:"manifestUrl"`

	// File is the source filename it was read from (not serialized).
	File string `json:"-"`
}

// Manifest is the upstream description of a plugin's current release.
// Description and Homepage are optional; nil means absent.
type Manifest struct {
	Name        string
	Version     string
	DownloadURL string
	Description *string
	Homepage    *string

	// Extra holds every other top-level field of the upstream document so the
	// persisted record carries the manifest as published.
	Extra map[string]json.RawMessage
}

// DescriptionOrEmpty returns the description, or "" when absent.
func (m *Manifest) DescriptionOrEmpty() string {
	if m.Description == nil {
		return ""
	}
	return *m.Description
}

// HomepageOrEmpty returns the homepage, or "" when absent.
func (m *Manifest) HomepageOrEmpty() string {
	if m.Homepage == nil {
		return ""
	}
	return *m.Homepage
}

// IndexEntry summarizes the manifest for the consolidated index.
func (m *Manifest) IndexEntry() IndexEntry {
	return IndexEntry{
		Name:     m.Name,
		Desc:     m.DescriptionOrEmpty(),
		Homepage: m.HomepageOrEmpty(),
	}
}

// UnmarshalJSON decodes the consumed fields and keeps the rest in Extra.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("manifest is not a JSON object")
	}

	var out Manifest
	if err := takeString(raw, FieldName, &out.Name); err != nil {
		return err
	}
	if err := takeString(raw, FieldVersion, &out.Version); err != nil {
		return err
	}
	if err := takeString(raw, FieldDownloadURL, &out.DownloadURL); err != nil {
		return err
	}
	var err error
	if out.Description, err = takeOptional(raw, FieldDescription); err != nil {
		return err
	}
	if out.Homepage, err = takeOptional(raw, FieldHomepage); err != nil {
		return err
	}
	if len(raw) > 0 {
		out.Extra = raw
	}

	*m = out
	return nil
}

// MarshalJSON encodes the manifest as a single JSON object. Keys are emitted
// in sorted order so identical manifests always encode identically.
func (m Manifest) MarshalJSON() ([]byte, error) {
	fields, err := m.fields()
	if err != nil {
		return nil, err
	}
	return marshal(fields)
}

func (m Manifest) fields() (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage, len(m.Extra)+5)
	for k, v := range m.Extra {
		fields[k] = v
	}

	put := func(key string, v interface{}) error {
		b, err := marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		fields[key] = b
		return nil
	}

	if err := put(FieldName, m.Name); err != nil {
		return nil, err
	}
	if err := put(FieldVersion, m.Version); err != nil {
		return nil, err
	}
	if err := put(FieldDownloadURL, m.DownloadURL); err != nil {
		return nil, err
	}
	if m.Description != nil {
		if err := put(FieldDescription, *m.Description); err != nil {
			return nil, err
		}
	}
	if m.Homepage != nil {
		if err := put(FieldHomepage, *m.Homepage); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// Record is the persisted, digest-enriched manifest for one plugin.
// SHA256 is always the digest of the artifact published for Version.
type Record struct {
	Manifest
	SHA256 string
}

// NewRecord attaches digest to a copy of m. A sha256 field published upstream
// is replaced by the computed one.
func NewRecord(m *Manifest, digest string) *Record {
	cp := *m
	if len(m.Extra) > 0 {
		cp.Extra = make(map[string]json.RawMessage, len(m.Extra))
		for k, v := range m.Extra {
			if k == FieldSHA256 {
				continue
			}
			cp.Extra[k] = v
		}
	}
	return &Record{Manifest: cp, SHA256: digest}
}

// MarshalJSON encodes the record as the manifest object plus "sha256".
func (r Record) MarshalJSON() ([]byte, error) {
	fields, err := r.Manifest.fields()
	if err != nil {
		return nil, err
	}
	b, err := marshal(r.SHA256)
	if err != nil {
		return nil, err
	}
	fields[FieldSHA256] = b
	return marshal(fields)
}

// UnmarshalJSON decodes a record written by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var digest string
	if err := takeString(m.Extra, FieldSHA256, &digest); err != nil {
		return err
	}
	if len(m.Extra) == 0 {
		m.Extra = nil
	}
	r.Manifest = m
	r.SHA256 = digest
	return nil
}

// IndexEntry is the lightweight summary of one plugin in the index.
type IndexEntry struct {
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	Homepage string `json:"homepage"`
}

// marshal encodes v without HTML escaping, so URLs keep their literal '&'.
func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// takeString removes key from raw and decodes it into dst. A missing key
// leaves dst unchanged.
func takeString(raw map[string]json.RawMessage, key string, dst *string) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	delete(raw, key)
	if string(v) == "null" {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

// takeOptional removes key from raw and decodes it. Missing or null yields nil.
func takeOptional(raw map[string]json.RawMessage, key string) (*string, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	delete(raw, key)
	if string(v) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return &s, nil
}
