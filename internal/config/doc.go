// Package config manages run settings for regsync. Values come from, in
// increasing priority: built-in defaults, ~/.regsync/config.yaml (or the file
// named by --config), REGSYNC_* environment variables, and command-line flags
// bound by the cli package.
package config
