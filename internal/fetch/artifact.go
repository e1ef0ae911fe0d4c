package fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/agentx-labs/regsync/internal/checksum"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// TempArtifact is a downloaded artifact held in a temporary file. It is owned
// by a single fetch-and-hash step and must be released with Remove.
type TempArtifact struct {
	Path string
	Size int64

	fs      afero.Fs
	removed bool
}

// Digest returns the SHA-256 of the artifact contents.
func (a *TempArtifact) Digest() (string, error) {
	return checksum.File(a.fs, a.Path)
}

// Remove deletes the temporary file. It is safe to call more than once.
func (a *TempArtifact) Remove() error {
	if a == nil || a.removed {
		return nil
	}
	a.removed = true
	if err := a.fs.Remove(a.Path); err != nil {
		return fmt.Errorf("removing temp artifact %s: %w", a.Path, err)
	}
	return nil
}

// FetchToTemp streams the artifact at url into a new temporary file. On any
// failure the partial file is removed before returning.
func (c *Client) FetchToTemp(ctx context.Context, url string) (*TempArtifact, error) {
	resp, cancel, err := c.get(ctx, url, c.artifactTimeout)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	if err := c.fs.MkdirAll(c.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	f, err := afero.TempFile(c.fs, c.tempDir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("creating download file: %w", err)
	}
	artifact := &TempArtifact{Path: f.Name(), fs: c.fs}

	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		artifact.Remove()
		return nil, &Error{URL: url, Err: fmt.Errorf("reading download stream: %w", copyErr)}
	}
	if closeErr != nil {
		artifact.Remove()
		return nil, fmt.Errorf("writing download: %w", closeErr)
	}
	artifact.Size = n

	c.logger.Debug("downloaded artifact",
		zap.String("url", url),
		zap.String("path", artifact.Path),
		zap.Int64("bytes", n),
	)
	return artifact, nil
}
