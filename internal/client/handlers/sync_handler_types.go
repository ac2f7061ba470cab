package handlers

import (
	"time"

	"github.com/openmined/syftnotes/internal/synchronizer"
)

// SyncReport is the wire form of a synchronization pass.
type SyncReport struct {
	StartedAt  time.Time         `json:"started_at"`
	DurationMs int64             `json:"duration_ms"`
	Generation uint64            `json:"generation"`
	Committed  []string          `json:"committed"`
	Skipped    []string          `json:"skipped"`
	Failed     []string          `json:"failed"`
	Errors     map[string]string `json:"errors,omitempty"`
	Commands   int               `json:"commands"`
	Dropped    int               `json:"dropped"`
	Imported   ImportCounts      `json:"imported"`
	Cancelled  bool              `json:"cancelled,omitempty"`
}

type ImportCounts struct {
	Local  int `json:"local"`
	Remote int `json:"remote"`
}

// SyncResult is a report together with the import step that preceded it.
type SyncResult struct {
	Report         *synchronizer.Report
	ImportedLocal  int
	ImportedRemote int
}

func NewSyncReport(res *SyncResult) *SyncReport {
	r := res.Report
	out := &SyncReport{
		StartedAt:  r.StartedAt,
		DurationMs: r.Duration.Milliseconds(),
		Generation: r.Generation,
		Committed:  nonNil(r.Committed),
		Skipped:    nonNil(r.Skipped),
		Failed:     nonNil(r.Failed),
		Commands:   r.Commands,
		Dropped:    r.Dropped,
		Imported:   ImportCounts{Local: res.ImportedLocal, Remote: res.ImportedRemote},
		Cancelled:  r.Cancelled,
	}
	if len(r.Errors) > 0 {
		out.Errors = make(map[string]string, len(r.Errors))
		for id, err := range r.Errors {
			out.Errors[id] = err.Error()
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
