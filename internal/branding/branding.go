// Package branding provides compile-time identity values for the CLI.
//
// Forks edit branding.yaml in this package. Go's //go:embed bakes it into
// the binary, so the values are available without any runtime lookup.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName      string `yaml:"cli_name"`
	DisplayName  string `yaml:"display_name"`
	Description  string `yaml:"description"`
	HomeDir      string `yaml:"home_dir"`
	EnvPrefix    string `yaml:"env_prefix"`
	UserAgent    string `yaml:"user_agent"`
	AuthorName   string `yaml:"author_name"`
	AuthorEmail  string `yaml:"author_email"`
	IndexFile    string `yaml:"index_file"`
	IndexMessage string `yaml:"index_message"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:      "regsync",
			DisplayName:  "RegSync",
			Description:  "Synchronize a plugin registry with upstream manifests",
			HomeDir:      ".regsync",
			EnvPrefix:    "REGSYNC",
			UserAgent:    "regsync",
			AuthorName:   "github-actions[bot]",
			AuthorEmail:  "41898282+github-actions[bot]@users.noreply.github.com",
			IndexFile:    "index.json",
			IndexMessage: "Update plugin index",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "regsync").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".regsync").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "REGSYNC").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// UserAgent returns the User-Agent header sent with every HTTP request.
func UserAgent() string { load(); return defaults.UserAgent }

// AuthorName returns the default commit author name.
func AuthorName() string { load(); return defaults.AuthorName }

// AuthorEmail returns the default commit author email.
func AuthorEmail() string { load(); return defaults.AuthorEmail }

// IndexFile returns the filename of the consolidated index in the target directory.
func IndexFile() string { load(); return defaults.IndexFile }

// IndexMessage returns the commit message used when the index changes.
func IndexMessage() string { load(); return defaults.IndexMessage }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("CONFIG") → "REGSYNC_CONFIG".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
