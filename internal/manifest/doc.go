// Package manifest defines the plugin data model shared by the fetcher, the
// registry store and the reconciliation engine: the Source a plugin is
// declared by, the Manifest its author publishes, the Record persisted in the
// registry, and the IndexEntry summarizing it. It also checks the fields
// regsync consumes against embedded JSON Schemas.
package manifest
