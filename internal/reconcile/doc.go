// Package reconcile synchronizes registry records with upstream manifests.
//
// For each plugin source, in order, the Engine fetches the manifest, checks
// that it declares the expected name, and compares its version with the
// stored record by exact string equality. Only a changed version triggers an
// artifact download; the artifact's SHA-256 is attached to the manifest and
// the resulting record is written and recorded as one labeled change. Every
// plugin whose manifest was fetched and identity-checked contributes an index
// entry, whether or not it changed, unless a later step for it failed.
//
// Plugins are independent: a failure is logged and the plugin contributes
// nothing, and the batch continues. After the batch, the full index is
// written and recorded when it differs from the last recorded state.
package reconcile
