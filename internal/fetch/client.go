package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/agentx-labs/regsync/internal/branding"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultManifestTimeout bounds a manifest request.
	DefaultManifestTimeout = 30 * time.Second
	// DefaultArtifactTimeout bounds an artifact download, body included.
	DefaultArtifactTimeout = 60 * time.Second

	tempPattern = "regsync-artifact-*"
)

// Client fetches manifests and artifacts.
type Client struct {
	httpClient      *http.Client
	fs              afero.Fs
	tempDir         string
	userAgent       string
	manifestTimeout time.Duration
	artifactTimeout time.Duration
	limiter         *rate.Limiter
	logger          *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithFs sets the filesystem temporary artifacts are written to.
func WithFs(fs afero.Fs) Option {
	return func(c *Client) {
		c.fs = fs
	}
}

// WithTempDir sets the directory temporary artifacts are created in.
// Empty means the system temp directory.
func WithTempDir(dir string) Option {
	return func(c *Client) {
		c.tempDir = dir
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithManifestTimeout sets the manifest request timeout.
func WithManifestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.manifestTimeout = d
		}
	}
}

// WithArtifactTimeout sets the artifact download timeout.
func WithArtifactTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.artifactTimeout = d
		}
	}
}

// WithRateLimit paces outbound requests to at most rps per second.
// Zero or negative disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:      http.DefaultClient,
		fs:              afero.NewOsFs(),
		userAgent:       branding.UserAgent(),
		manifestTimeout: DefaultManifestTimeout,
		artifactTimeout: DefaultArtifactTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.tempDir == "" {
		c.tempDir = os.TempDir()
	}
	return c
}

// get issues a single GET bounded by timeout. The returned cancel func must be
// called once the body has been consumed.
func (c *Client) get(ctx context.Context, url string, timeout time.Duration) (*http.Response, context.CancelFunc, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, &Error{URL: url, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, nil, &Error{URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, &Error{URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, nil, &Error{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, cancel, nil
}
