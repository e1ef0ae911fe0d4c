//go:build integration

package integration_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentx-labs/regsync/internal/fetch"
	"github.com/agentx-labs/regsync/internal/history"
	"github.com/agentx-labs/regsync/internal/reconcile"
	"github.com/agentx-labs/regsync/internal/registry"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/afero"
)

// testEnv holds an isolated registry checkout and source directory.
type testEnv struct {
	RepoDir   string // git repository root
	TargetDir string // RepoDir/plugins
	SourceDir string // plugin declarations

	Repo     *git.Repository
	Upstream *upstream
}

// setupTestEnv creates a git repository with an empty plugins/ directory,
// a source directory, and a fake upstream host.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		RepoDir:   t.TempDir(),
		SourceDir: t.TempDir(),
		Upstream:  newUpstream(t),
	}
	env.TargetDir = filepath.Join(env.RepoDir, "plugins")

	repo, err := git.PlainInit(env.RepoDir, false)
	if err != nil {
		t.Fatalf("initializing repository: %v", err)
	}
	env.Repo = repo
	return env
}

// addSource declares plugin name with its manifest on the fake upstream.
func (env *testEnv) addSource(t *testing.T, name string) {
	t.Helper()
	body := fmt.Sprintf(`{
  "name": %q,
  "manifestUrl": %q
}
`, name, env.Upstream.URL()+"/manifests/"+name+".json")
	writeFile(t, filepath.Join(env.SourceDir, name+".json"), body)
}

// sync runs one full reconciliation against the environment with a 2s
// manifest timeout.
func (env *testEnv) sync(t *testing.T, ctx context.Context) (*reconcile.Summary, error) {
	t.Helper()
	fs := afero.NewOsFs()
	store := registry.NewStore(fs, env.TargetDir)
	if err := store.Init(); err != nil {
		t.Fatalf("initializing store: %v", err)
	}
	recorder, err := history.OpenGit(env.TargetDir, history.Author{Name: "regsync-test", Email: "regsync@example.test"}, nil)
	if err != nil {
		t.Fatalf("opening repository: %v", err)
	}
	fetcher := fetch.New(
		fetch.WithManifestTimeout(2*time.Second),
		fetch.WithArtifactTimeout(2*time.Second),
		fetch.WithTempDir(t.TempDir()),
	)
	return reconcile.New(store, fetcher, recorder).RunDir(ctx, env.SourceDir)
}

// commitMessages returns the commit subjects, newest first.
func (env *testEnv) commitMessages(t *testing.T) []string {
	t.Helper()
	iter, err := env.Repo.Log(&git.LogOptions{})
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil
		}
		t.Fatalf("reading log: %v", err)
	}
	var msgs []string
	iter.ForEach(func(c *object.Commit) error {
		msgs = append(msgs, c.Message)
		return nil
	})
	return msgs
}

// release is one published plugin version on the fake upstream.
type release struct {
	Name     string // name declared in the manifest
	Version  string
	Artifact string
	Delay    time.Duration
}

// upstream serves /manifests/<name>.json and /artifacts/<name>.zip.
type upstream struct {
	srv *httptest.Server

	mu       sync.Mutex
	releases map[string]release
	onHit    func(path string)
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{releases: make(map[string]release)}
	u.srv = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) URL() string { return u.srv.URL }

// setOnHit installs a hook called for every request before it is served.
func (u *upstream) setOnHit(fn func(path string)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onHit = fn
}

func (u *upstream) publish(key string, r release) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if r.Name == "" {
		r.Name = key
	}
	if r.Artifact == "" {
		r.Artifact = "zip:" + key + "@" + r.Version
	}
	u.releases[key] = r
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	onHit := u.onHit
	base := filepath.Base(r.URL.Path)
	key := strings.TrimSuffix(strings.TrimSuffix(base, ".json"), ".zip")
	rel, ok := u.releases[key]
	u.mu.Unlock()

	if onHit != nil {
		onHit(r.URL.Path)
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if rel.Delay > 0 {
		select {
		case <-time.After(rel.Delay):
		case <-r.Context().Done():
			return
		}
	}

	switch filepath.Dir(r.URL.Path) {
	case "/manifests":
		fmt.Fprintf(w, `{"name":%q,"version":%q,"downloadUrl":%q,"description":"%s plugin","homepage":null,"author":"someone"}`,
			rel.Name, rel.Version, u.srv.URL+"/artifacts/"+key+".zip", key)
	case "/artifacts":
		fmt.Fprint(w, rel.Artifact)
	default:
		http.NotFound(w, r)
	}
}

// writeFile creates parent directories and writes content to path.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s", path)
	}
}

func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file to not exist: %s", path)
	}
}

func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	if content := readFile(t, path); !strings.Contains(content, substr) {
		t.Errorf("file %s does not contain %q\ncontent:\n%s", path, substr, content)
	}
}

func assertMessages(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("commits = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("commit %d = %q, want %q", i, got[i], want[i])
		}
	}
}
