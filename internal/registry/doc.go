// Package registry is the durable store of the plugin registry. It discovers
// plugin source declarations in the source directory, and reads and writes
// per-plugin records and the consolidated index in the target directory.
// Every write replaces a whole file; there are no partial updates.
package registry
