package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/agentx-labs/regsync/internal/config"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() config.Settings {
	return config.Settings{
		ManifestTimeout: 5 * time.Second,
		ArtifactTimeout: 5 * time.Second,
		LogLevel:        "debug",
		LogFormat:       "console",
		UserAgent:       "regsync-test",
		AuthorName:      "regsync-test",
		AuthorEmail:     "regsync@example.test",
	}
}

// newUpstream serves a manifest and an artifact for each name.
func newUpstream(t *testing.T, versions map[string]string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		version, ok := versions[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch filepath.Dir(r.URL.Path) {
		case "/manifests":
			fmt.Fprintf(w, `{"name":%q,"version":%q,"downloadUrl":"%s/artifacts/%s","description":"%s plugin"}`,
				name, version, srv.URL, name, name)
		case "/artifacts":
			fmt.Fprintf(w, "zip for %s %s", name, version)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeSources(t *testing.T, srv *httptest.Server, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		body := fmt.Sprintf(`{"name":%q,"manifestUrl":"%s/manifests/%s"}`, name, srv.URL, name)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(body), 0644))
	}
	return dir
}

func TestRootCmd_RequiresSourceAndTarget(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no args", []string{}},
		{"one arg", []string{"sources"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetOut(&out)
			rootCmd.SetErr(&out)
			rootCmd.SetArgs(tt.args)
			t.Cleanup(func() {
				rootCmd.SetOut(nil)
				rootCmd.SetErr(nil)
				rootCmd.SetArgs(nil)
			})

			err := rootCmd.Execute()
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, out.String(), "Usage:")
			assert.Contains(t, out.String(), "<source-dir> <target-dir>")
		})
	}
}

func TestRootCmd_IgnoresExtraArgs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := newUpstream(t, map[string]string{"alpha": "1.0.0"})
	sources := writeSources(t, srv, "alpha")
	target := filepath.Join(t.TempDir(), "plugins")

	rootCmd.SetArgs([]string{sources, target, "extra", "--no-commit"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		flagNoCommit = false
		viper.Reset()
	})

	require.NoError(t, rootCmd.Execute())
	_, err := os.Stat(filepath.Join(target, "alpha.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(target, "index.json"))
	assert.NoError(t, err)
}

func TestRunSync_SourceDirErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.json")
	require.NoError(t, os.WriteFile(file, []byte("{}"), 0644))

	tests := []struct {
		name   string
		source string
	}{
		{"missing", filepath.Join(dir, "nope")},
		{"not a directory", file},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := filepath.Join(t.TempDir(), "out")
			_, err := runSync(context.Background(), syncOptions{
				SourceDir: tt.source,
				TargetDir: target,
				Settings:  testSettings(),
			})
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)

			_, statErr := os.Stat(target)
			assert.True(t, os.IsNotExist(statErr), "nothing is created before the source directory is validated")
		})
	}
}

func TestRunSync_WritesRegistry(t *testing.T) {
	srv := newUpstream(t, map[string]string{"alpha": "1.0.0", "beta": "0.3.0"})
	sources := writeSources(t, srv, "beta", "alpha", "missing")
	target := filepath.Join(t.TempDir(), "nested", "plugins")

	summary, err := runSync(context.Background(), syncOptions{
		SourceDir: sources,
		TargetDir: target,
		Settings:  testSettings(),
		RunID:     "run-1",
	})
	require.NoError(t, err, "per-plugin failures are not a run error")
	assert.Equal(t, 2, summary.Updated())
	assert.Equal(t, 1, summary.Failed())
	assert.Equal(t, "run-1", summary.RunID)

	for _, name := range []string{"alpha", "beta"} {
		_, err := os.Stat(filepath.Join(target, name+".json"))
		assert.NoError(t, err)
	}
	index, err := os.ReadFile(filepath.Join(target, "index.json"))
	require.NoError(t, err)
	alpha := strings.Index(string(index), `"alpha"`)
	beta := strings.Index(string(index), `"beta"`)
	assert.True(t, alpha >= 0 && beta > alpha, "index follows source file order: %s", index)
	assert.NotContains(t, string(index), "missing")
}

func commitMessages(t *testing.T, repo *git.Repository) []string {
	t.Helper()
	iter, err := repo.Log(&git.LogOptions{})
	require.NoError(t, err)
	var msgs []string
	require.NoError(t, iter.ForEach(func(c *object.Commit) error {
		msgs = append(msgs, c.Message)
		return nil
	}))
	return msgs
}

func TestRunSync_RecordsInGit(t *testing.T) {
	srv := newUpstream(t, map[string]string{"alpha": "1.0.0"})
	sources := writeSources(t, srv, "alpha")
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	settings := testSettings()
	settings.Commit = true
	opts := syncOptions{SourceDir: sources, TargetDir: filepath.Join(root, "plugins"), Settings: settings}

	summary, err := runSync(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, summary.IndexRecorded)

	// Log is newest first.
	assert.Equal(t, []string{"Update plugin index", "alpha: Update to version 1.0.0"}, commitMessages(t, repo))

	summary, err = runSync(context.Background(), opts)
	require.NoError(t, err)
	assert.False(t, summary.IndexRecorded)
	assert.Len(t, commitMessages(t, repo), 2, "a re-run commits nothing")
}

func TestRunSync_NoRepositoryStillWrites(t *testing.T) {
	srv := newUpstream(t, map[string]string{"alpha": "1.0.0"})
	sources := writeSources(t, srv, "alpha")
	target := t.TempDir()

	settings := testSettings()
	settings.Commit = true
	summary, err := runSync(context.Background(), syncOptions{SourceDir: sources, TargetDir: target, Settings: settings})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated())
	assert.False(t, summary.IndexRecorded)
	_, err = os.Stat(filepath.Join(target, "alpha.json"))
	assert.NoError(t, err)
}

func TestRunSync_MetricsFile(t *testing.T) {
	srv := newUpstream(t, map[string]string{"alpha": "1.0.0"})
	sources := writeSources(t, srv, "alpha")
	metricsFile := filepath.Join(t.TempDir(), "regsync.prom")

	settings := testSettings()
	settings.MetricsFile = metricsFile
	_, err := runSync(context.Background(), syncOptions{SourceDir: sources, TargetDir: t.TempDir(), Settings: settings})
	require.NoError(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `regsync_plugins_total{outcome="updated"} 1`)
	assert.Contains(t, string(data), "regsync_index_entries 1")
}

func TestRunSync_Canceled(t *testing.T) {
	srv := newUpstream(t, map[string]string{"alpha": "1.0.0"})
	sources := writeSources(t, srv, "alpha")
	target := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runSync(ctx, syncOptions{SourceDir: sources, TargetDir: target, Settings: testSettings()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	_, statErr := os.Stat(filepath.Join(target, "index.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() {
		viper.Reset()
		flagConfig = ""
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append(args, "--config", path))
		err := rootCmd.Execute()
		return out.String(), err
	}

	out, err := run("config", "set", config.KeyManifestTimeout, "45s")
	require.NoError(t, err)
	assert.Equal(t, "Set manifest_timeout = 45s\n", out)

	viper.Reset()
	out, err = run("config", "get", config.KeyManifestTimeout)
	require.NoError(t, err)
	assert.Equal(t, "45s\n", out)

	out, err = run("config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "manifest_timeout = 45s\n")
	assert.Contains(t, out, "log_level = info\n")

	_, err = run("config", "set", "mirror", "x")
	assert.Error(t, err)
	_, err = run("config", "get", "mirror")
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	savedVersion, savedCommit, savedDate := buildVersion, buildCommit, buildDate
	buildVersion, buildCommit, buildDate = "1.2.3", "abc123", "2026-01-01"
	t.Cleanup(func() {
		buildVersion, buildCommit, buildDate = savedVersion, savedCommit, savedDate
		versionShort, versionJSON = false, false
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		viper.Reset()
	})

	run := func(args ...string) string {
		t.Helper()
		versionShort, versionJSON = false, false
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		require.NoError(t, rootCmd.Execute())
		return out.String()
	}

	platform := runtime.GOOS + "/" + runtime.GOARCH
	assert.Equal(t,
		fmt.Sprintf("regsync 1.2.3 (commit abc123, built 2026-01-01, %s %s)\n", runtime.Version(), platform),
		run("version"))
	assert.Equal(t, "1.2.3\n", run("version", "--short"))

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(run("version", "--json")), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "abc123", info["commit"])
	assert.Equal(t, "regsync/1.2.3", info["user_agent"])
	assert.Equal(t, "index.json", info["index_file"])
	assert.Equal(t, platform, info["platform"])
	assert.Contains(t, info["commit_author"], "github-actions[bot]")
}

func TestUserAgent(t *testing.T) {
	saved := buildVersion
	t.Cleanup(func() { buildVersion = saved })

	buildVersion = "0.4.0"
	assert.Equal(t, "regsync/0.4.0", userAgent("regsync"))
	assert.Equal(t, "mirror-bot/2", userAgent("mirror-bot/2"), "configured agents are sent unchanged")

	buildVersion = ""
	assert.Equal(t, "regsync", userAgent("regsync"))
}
