package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentx-labs/regsync/internal/branding"
	"github.com/agentx-labs/regsync/internal/history"
	"github.com/agentx-labs/regsync/internal/manifest"
	"github.com/agentx-labs/regsync/internal/metrics"
	"github.com/agentx-labs/regsync/internal/registry"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "github.com/agentx-labs/regsync/internal/reconcile"
	spanName   = "regsync.reconcile.plugin"
)

// Engine reconciles plugin sources against the registry store.
type Engine struct {
	store    Store
	fetcher  Fetcher
	recorder history.Recorder

	sourceFs   afero.Fs
	logger     *zap.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	runID      string
	indexLabel string
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithRunID tags every log line of the run.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// WithSourceFs sets the filesystem RunDir reads source files from.
func WithSourceFs(fs afero.Fs) Option {
	return func(e *Engine) {
		e.sourceFs = fs
	}
}

// New creates an Engine.
func New(store Store, fetcher Fetcher, recorder history.Recorder, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		fetcher:    fetcher,
		recorder:   recorder,
		sourceFs:   afero.NewOsFs(),
		indexLabel: branding.IndexMessage(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.recorder == nil {
		e.recorder = history.Nop{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	if e.runID != "" {
		e.logger = e.logger.With(zap.String("run_id", e.runID))
	}
	return e
}

// RunDir discovers the sources in dir and runs them. Source files that
// cannot be decoded are reported as failed outcomes.
func (e *Engine) RunDir(ctx context.Context, dir string) (*Summary, error) {
	files, err := registry.DiscoverSources(e.sourceFs, dir)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, files)
}

// Run processes sources in the given order, then writes the index and
// records it when it changed. Per-plugin failures are reported in the
// Summary; an error is returned only when the run could not complete.
func (e *Engine) Run(ctx context.Context, sources []manifest.Source) (*Summary, error) {
	files := make([]registry.SourceFile, len(sources))
	for i := range sources {
		src := sources[i]
		files[i] = registry.SourceFile{File: src.File, Source: &src}
	}
	return e.run(ctx, files)
}

func (e *Engine) run(ctx context.Context, files []registry.SourceFile) (*Summary, error) {
	start := e.now()
	summary := &Summary{RunID: e.runID}
	entries := []manifest.IndexEntry{}

	e.logger.Info("sync started", zap.Int("sources", len(files)))

	for _, sf := range files {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run canceled: %w", err)
		}
		var out Outcome
		if sf.Err != nil {
			out = e.failSource(sf)
		} else {
			out = e.process(ctx, sf.File, sf.Source)
		}
		summary.Outcomes = append(summary.Outcomes, out)
		e.metrics.ObservePlugin(metricOutcome(out.State))
		if out.Entry != nil {
			entries = append(entries, *out.Entry)
		}
	}
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run canceled: %w", err)
	}

	summary.Index = entries
	if err := e.store.WriteIndex(entries); err != nil {
		e.logger.Error("writing index failed", zap.Error(err))
		return summary, fmt.Errorf("writing index: %w", err)
	}
	e.finalizeIndex(ctx, summary)

	e.metrics.ObserveIndex(len(entries), summary.IndexRecorded)
	e.metrics.ObserveRun(start, e.now())

	directions := summary.Directions()
	e.logger.Info("sync finished",
		zap.Int("updated", summary.Updated()),
		zap.Int("new", directions[DirectionNew]),
		zap.Int("upgrades", directions[DirectionUpgrade]),
		zap.Int("downgrades", directions[DirectionDowngrade]),
		zap.Int("unchanged", summary.Unchanged()),
		zap.Int("failed", summary.Failed()),
		zap.Int("index_entries", len(entries)),
		zap.Bool("index_recorded", summary.IndexRecorded),
		zap.Duration("elapsed", e.now().Sub(start)),
	)
	return summary, nil
}

func (e *Engine) failSource(sf registry.SourceFile) Outcome {
	err := &SourceError{File: sf.File, Err: sf.Err}
	e.logger.Warn("skipping source",
		zap.String("source", sf.File),
		zap.String("kind", Kind(err)),
		zap.Error(sf.Err),
	)
	return Outcome{Source: sf.File, State: StateFailed, FailedAt: StateFetching, Err: err}
}

// process runs the per-plugin state machine for one source.
func (e *Engine) process(ctx context.Context, file string, src *manifest.Source) Outcome {
	ctx, span := e.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("plugin.name", src.Name),
		attribute.String("plugin.source", file),
	))
	defer span.End()

	log := e.logger.With(zap.String("plugin", src.Name), zap.String("source", file))
	out := Outcome{Source: file, Name: src.Name}

	fail := func(state State, err error) Outcome {
		out.State = StateFailed
		out.FailedAt = state
		out.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		kind := Kind(err)
		if kind == KindIO {
			log.Error("plugin failed", zap.String("state", string(state)), zap.String("kind", kind), zap.Error(err))
		} else {
			log.Warn("plugin failed", zap.String("state", string(state)), zap.String("kind", kind), zap.Error(err))
		}
		return out
	}

	log.Debug("fetching manifest", zap.String("state", string(StateFetching)), zap.String("url", src.ManifestURL))
	m, err := e.fetcher.FetchManifest(ctx, src.ManifestURL)
	if err != nil {
		return fail(StateFetching, err)
	}

	if m.Name != src.Name {
		return fail(StateValidating, &IdentityMismatchError{Source: src.Name, Manifest: m.Name})
	}
	if err := e.store.ValidateName(m.Name); err != nil {
		return fail(StateValidating, err)
	}
	out.Version = m.Version
	span.SetAttributes(attribute.String("plugin.version", m.Version))

	changed, previous := e.compareVersion(log, m)
	out.PreviousVersion = previous
	if !changed {
		log.Info("version unchanged", zap.String("state", string(StateUnchanged)), zap.String("version", m.Version))
		entry := m.IndexEntry()
		out.State = StateUnchanged
		out.Entry = &entry
		return out
	}

	digest, state, err := e.digestArtifact(ctx, log, m.DownloadURL)
	if err != nil {
		return fail(state, err)
	}

	rec := manifest.NewRecord(m, digest)
	if err := e.store.WriteRecord(m.Name, rec); err != nil {
		return fail(StatePersisting, err)
	}

	label := UpdateLabel(m.Name, m.Version)
	if err := e.recorder.RecordChange(ctx, []string{e.store.RecordPath(m.Name)}, label); err != nil {
		out.RecordErr = err
		log.Error("recording change failed", zap.String("state", string(StateRecording)), zap.Error(err))
	}

	out.Direction = Direction(previous, m.Version)
	span.SetAttributes(attribute.String("plugin.direction", out.Direction))
	if out.Direction == DirectionDowngrade {
		log.Warn("published version is older than the recorded one",
			zap.String("version", m.Version),
			zap.String("previous_version", previous),
		)
	}
	log.Info("plugin updated",
		zap.String("state", string(StateDone)),
		zap.String("version", m.Version),
		zap.String("previous_version", previous),
		zap.String("direction", out.Direction),
		zap.String("sha256", digest),
	)
	entry := m.IndexEntry()
	out.State = StateDone
	out.SHA256 = digest
	out.Entry = &entry
	return out
}

// compareVersion reports whether m differs from the stored record, and the
// stored version when there is one. An unreadable record counts as changed.
func (e *Engine) compareVersion(log *zap.Logger, m *manifest.Manifest) (bool, string) {
	rec, err := e.store.ReadRecord(m.Name)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		log.Debug("no existing record", zap.String("state", string(StateComparingVersion)))
		return true, ""
	case err != nil:
		log.Warn("existing record unreadable, treating as changed",
			zap.String("state", string(StateComparingVersion)), zap.Error(err))
		return true, ""
	}
	return rec.Version != m.Version, rec.Version
}

// digestArtifact downloads the artifact to a temporary file and hashes it.
// The temporary file is always released. On failure the returned State is
// the step that failed.
func (e *Engine) digestArtifact(ctx context.Context, log *zap.Logger, url string) (string, State, error) {
	log.Debug("downloading artifact", zap.String("state", string(StateDownloading)), zap.String("url", url))
	artifact, err := e.fetcher.FetchToTemp(ctx, url)
	if err != nil {
		return "", StateDownloading, err
	}
	defer func() {
		if err := artifact.Remove(); err != nil {
			log.Warn("releasing temp artifact failed", zap.Error(err))
		}
	}()
	e.metrics.ObserveDownload(artifact.Size)

	digest, err := artifact.Digest()
	if err != nil {
		return "", StateHashing, fmt.Errorf("hashing artifact: %w", err)
	}
	return digest, "", nil
}

// finalizeIndex records the index when it differs from its recorded state.
func (e *Engine) finalizeIndex(ctx context.Context, summary *Summary) {
	path := e.store.IndexPath()
	pending, err := e.recorder.HasPendingChange(path)
	if err != nil {
		summary.IndexRecordErr = err
		e.logger.Error("checking index status failed", zap.Error(err))
		return
	}
	if !pending {
		e.logger.Info("no changes in index, skipping record")
		return
	}
	if err := e.recorder.RecordChange(ctx, []string{path}, e.indexLabel); err != nil {
		summary.IndexRecordErr = err
		e.logger.Error("recording index failed", zap.Error(err))
		return
	}
	summary.IndexRecorded = true
}

func metricOutcome(s State) string {
	switch s {
	case StateDone:
		return "updated"
	case StateUnchanged:
		return "unchanged"
	default:
		return "failed"
	}
}
