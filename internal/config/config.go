package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentx-labs/regsync/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Setting keys.
const (
	KeyManifestTimeout   = "manifest_timeout"
	KeyArtifactTimeout   = "artifact_timeout"
	KeyLogLevel          = "log_level"
	KeyLogFormat         = "log_format"
	KeyCommit            = "commit"
	KeyAuthorName        = "author_name"
	KeyAuthorEmail       = "author_email"
	KeyMetricsFile       = "metrics_file"
	KeyUserAgent         = "user_agent"
	KeyRequestsPerSecond = "requests_per_second"
)

// Settings is the resolved configuration for one run.
type Settings struct {
	ManifestTimeout   time.Duration
	ArtifactTimeout   time.Duration
	LogLevel          string
	LogFormat         string
	Commit            bool
	AuthorName        string
	AuthorEmail       string
	MetricsFile       string
	UserAgent         string
	RequestsPerSecond float64
}

// Defaults returns the built-in values for every key. Durations are kept as
// strings so a written config file stays human readable.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		KeyManifestTimeout:   "30s",
		KeyArtifactTimeout:   "60s",
		KeyLogLevel:          "info",
		KeyLogFormat:         "console",
		KeyCommit:            true,
		KeyAuthorName:        branding.AuthorName(),
		KeyAuthorEmail:       branding.AuthorEmail(),
		KeyMetricsFile:       "",
		KeyUserAgent:         branding.UserAgent(),
		KeyRequestsPerSecond: 0.0,
	}
}

// Keys returns all known setting keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(Defaults()))
	for k := range Defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dir returns the path to the config directory (~/.regsync/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the default config file (~/.regsync/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper with defaults, the config file and the environment.
// An empty path selects FilePath(). A missing default file is not an error;
// a missing file that was named explicitly is.
func Load(path string) error {
	for k, v := range Defaults() {
		viper.SetDefault(k, v)
	}

	explicit := path != ""
	if !explicit {
		path = FilePath()
	}
	viper.SetConfigFile(path)
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		if _, statErr := os.Stat(path); !explicit && os.IsNotExist(statErr) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

// Current resolves Settings from the loaded configuration.
func Current() Settings {
	return Settings{
		ManifestTimeout:   viper.GetDuration(KeyManifestTimeout),
		ArtifactTimeout:   viper.GetDuration(KeyArtifactTimeout),
		LogLevel:          viper.GetString(KeyLogLevel),
		LogFormat:         viper.GetString(KeyLogFormat),
		Commit:            viper.GetBool(KeyCommit),
		AuthorName:        viper.GetString(KeyAuthorName),
		AuthorEmail:       viper.GetString(KeyAuthorEmail),
		MetricsFile:       viper.GetString(KeyMetricsFile),
		UserAgent:         viper.GetString(KeyUserAgent),
		RequestsPerSecond: viper.GetFloat64(KeyRequestsPerSecond),
	}
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// IsKnownKey reports whether key is a recognized setting.
func IsKnownKey(key string) bool {
	_, ok := Defaults()[key]
	return ok
}

// Set writes a config key-value pair to path (FilePath() when empty) and
// saves the file.
func Set(path, key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	if path == "" {
		if err := EnsureDir(); err != nil {
			return err
		}
		path = FilePath()
	}

	viper.Set(key, value)

	// Create the file if it doesn't exist.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", path, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
