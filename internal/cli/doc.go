// Package cli defines the Cobra command tree for the regsync CLI. The root
// command runs a sync of a source directory into a target registry
// directory; the version and config subcommands register themselves with it.
// Command implementations delegate to internal packages for the sync itself
// and only handle flags, configuration and process wiring.
package cli
