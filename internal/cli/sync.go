package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/agentx-labs/regsync/internal/config"
	"github.com/agentx-labs/regsync/internal/fetch"
	"github.com/agentx-labs/regsync/internal/history"
	"github.com/agentx-labs/regsync/internal/logging"
	"github.com/agentx-labs/regsync/internal/metrics"
	"github.com/agentx-labs/regsync/internal/reconcile"
	"github.com/agentx-labs/regsync/internal/registry"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func runRoot(cmd *cobra.Command, args []string) error {
	settings := config.Current()
	settings.UserAgent = userAgent(settings.UserAgent)
	logger, err := logging.New(settings.LogLevel, settings.LogFormat)
	if err != nil {
		return &ConfigError{Err: err}
	}
	defer logger.Sync()

	if len(args) > 2 {
		logger.Warn("ignoring extra arguments", zap.Strings("args", args[2:]))
	}

	_, err = runSync(cmd.Context(), syncOptions{
		SourceDir: args[0],
		TargetDir: args[1],
		Settings:  settings,
		Logger:    logger,
		RunID:     uuid.NewString(),
	})
	return err
}

// syncOptions carries everything one sync run needs.
type syncOptions struct {
	SourceDir  string
	TargetDir  string
	Settings   config.Settings
	Logger     *zap.Logger
	RunID      string
	HTTPClient *http.Client
}

// runSync wires the store, fetcher, recorder and metrics and runs the engine
// over the source directory. Per-plugin failures are reported in the summary
// and do not produce an error.
func runSync(ctx context.Context, opts syncOptions) (*reconcile.Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := opts.Settings

	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("source directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, &ConfigError{Err: fmt.Errorf("source path %s is not a directory", opts.SourceDir)}
	}

	fs := afero.NewOsFs()
	store := registry.NewStore(fs, opts.TargetDir)
	if err := store.Init(); err != nil {
		return nil, err
	}

	fetchOpts := []fetch.Option{
		fetch.WithFs(fs),
		fetch.WithUserAgent(s.UserAgent),
		fetch.WithManifestTimeout(s.ManifestTimeout),
		fetch.WithArtifactTimeout(s.ArtifactTimeout),
		fetch.WithRateLimit(s.RequestsPerSecond),
		fetch.WithLogger(logger),
	}
	if opts.HTTPClient != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(opts.HTTPClient))
	}

	m := metrics.New()
	engine := reconcile.New(store, fetch.New(fetchOpts...), newRecorder(logger, opts.TargetDir, s),
		reconcile.WithSourceFs(fs),
		reconcile.WithLogger(logger),
		reconcile.WithMetrics(m),
		reconcile.WithRunID(opts.RunID),
	)

	summary, runErr := engine.RunDir(ctx, opts.SourceDir)

	if s.MetricsFile != "" {
		if err := m.WriteTextfile(s.MetricsFile); err != nil {
			logger.Error("writing metrics failed", zap.Error(err))
		}
	}
	return summary, runErr
}

// newRecorder returns a git recorder for targetDir, or a no-op recorder when
// recording is disabled or targetDir is not inside a repository.
func newRecorder(logger *zap.Logger, targetDir string, s config.Settings) history.Recorder {
	if !s.Commit {
		logger.Info("change recording disabled")
		return history.Nop{}
	}
	author := history.Author{Name: s.AuthorName, Email: s.AuthorEmail}
	g, err := history.OpenGit(targetDir, author, logger)
	if err != nil {
		logger.Warn("changes will not be recorded", zap.String("target", targetDir), zap.Error(err))
		return history.Nop{}
	}
	return g
}
