package reconcile

import (
	"context"

	"github.com/agentx-labs/regsync/internal/fetch"
	"github.com/agentx-labs/regsync/internal/manifest"
)

// State is a step of the per-plugin state machine.
type State string

const (
	StateFetching         State = "fetching"
	StateValidating       State = "validating"
	StateComparingVersion State = "comparing_version"
	StateUnchanged        State = "unchanged"
	StateDownloading      State = "downloading"
	StateHashing          State = "hashing"
	StatePersisting       State = "persisting"
	StateRecording        State = "recording"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Outcome describes what happened to one plugin source.
type Outcome struct {
	Source          string // source filename
	Name            string // declared name, or the manifest name once validated
	State           State  // StateDone, StateUnchanged or StateFailed
	FailedAt        State  // state in which processing failed; empty otherwise
	Version         string
	PreviousVersion string // empty when no record existed
	Direction       string // how the version moved; set when State is StateDone
	SHA256          string // set when State is StateDone
	Err             error
	RecordErr       error // change recording failure; the record was still written

	// Entry is the index entry the plugin contributes, nil when failed.
	Entry *manifest.IndexEntry
}

// Summary is the result of a whole run.
type Summary struct {
	RunID          string
	Outcomes       []Outcome
	Index          []manifest.IndexEntry
	IndexRecorded  bool
	IndexRecordErr error
}

func (s *Summary) count(state State) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// Updated returns the number of plugins whose record was rewritten.
func (s *Summary) Updated() int { return s.count(StateDone) }

// Unchanged returns the number of plugins already at the published version.
func (s *Summary) Unchanged() int { return s.count(StateUnchanged) }

// Failed returns the number of plugins that contributed nothing.
func (s *Summary) Failed() int { return s.count(StateFailed) }

// Directions counts updated plugins by Direction.
func (s *Summary) Directions() map[string]int {
	counts := make(map[string]int)
	for _, o := range s.Outcomes {
		if o.State == StateDone {
			counts[o.Direction]++
		}
	}
	return counts
}

// Fetcher retrieves manifests and artifacts.
type Fetcher interface {
	FetchManifest(ctx context.Context, url string) (*manifest.Manifest, error)
	FetchToTemp(ctx context.Context, url string) (*fetch.TempArtifact, error)
}

// Store persists records and the index.
type Store interface {
	ValidateName(name string) error
	ReadRecord(name string) (*manifest.Record, error)
	WriteRecord(name string, rec *manifest.Record) error
	WriteIndex(entries []manifest.IndexEntry) error
	RecordPath(name string) string
	IndexPath() string
}
