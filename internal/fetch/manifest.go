package fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/agentx-labs/regsync/internal/manifest"
	"go.uber.org/zap"
)

// maxManifestSize caps how much of a manifest response is read.
const maxManifestSize = 4 << 20

// FetchManifest retrieves and decodes the manifest at url.
func (c *Client) FetchManifest(ctx context.Context, url string) (*manifest.Manifest, error) {
	resp, cancel, err := c.get(ctx, url, c.manifestTimeout)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize+1))
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if len(body) > maxManifestSize {
		return nil, &ParseError{URL: url, Err: fmt.Errorf("manifest larger than %d bytes", maxManifestSize)}
	}

	m, err := manifest.DecodeManifest(body)
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}

	c.logger.Debug("fetched manifest",
		zap.String("url", url),
		zap.String("name", m.Name),
		zap.String("version", m.Version),
	)
	return m, nil
}
