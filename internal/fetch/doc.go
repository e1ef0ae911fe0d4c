// Package fetch retrieves upstream plugin manifests and release artifacts
// over HTTP. Every call is a single bounded-timeout attempt; there is no
// retry. Artifacts are streamed into uniquely named temporary files that the
// caller releases with TempArtifact.Remove.
package fetch
