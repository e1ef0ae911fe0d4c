package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/agentx-labs/regsync/internal/fetch"
)

// IdentityMismatchError is returned when a manifest declares a different
// name than its source.
type IdentityMismatchError struct {
	Source   string
	Manifest string
}

func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("name mismatch: source=%s, manifest=%s", e.Source, e.Manifest)
}

// SourceError is returned for a source file that could not be loaded.
type SourceError struct {
	File string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("loading source %s: %v", e.File, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Error kinds reported by Kind.
const (
	KindFetch    = "fetch"
	KindParse    = "parse"
	KindIdentity = "identity"
	KindSource   = "source"
	KindCanceled = "canceled"
	KindIO       = "io"
)

// Kind classifies err for logging.
func Kind(err error) string {
	var mismatch *IdentityMismatchError
	var source *SourceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &mismatch):
		return KindIdentity
	case errors.As(err, &source):
		return KindSource
	case fetch.IsParseError(err):
		return KindParse
	case fetch.IsFetchError(err):
		return KindFetch
	default:
		return KindIO
	}
}
