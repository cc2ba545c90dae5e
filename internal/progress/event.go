package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunQueued Stage = "RUN_QUEUED"
	StageRunStart  Stage = "RUN_START"
	StageRunDone   Stage = "RUN_DONE"
	StageRunError  Stage = "RUN_ERROR"
	// StagePhase marks a controller state change; Note carries the phase.
	StagePhase Stage = "PHASE"
	StagePage  Stage = "PAGE"
	StagePDF   Stage = "PDF"
	// StageBatch reports one embedding batch; Count is the chunks stored.
	StageBatch Stage = "BATCH"
)

// Lifecycle reports whether the stage changes a run's overall state.
func (s Stage) Lifecycle() bool {
	switch s {
	case StageRunQueued, StageRunStart, StageRunDone, StageRunError:
		return true
	}
	return false
}

// Kind is the type of run an event belongs to.
type Kind string

// Run kinds.
const (
	KindCrawl Kind = "crawl"
	KindIndex Kind = "index"
)

// Item outcomes carried in Event.Status.
const (
	StatusOK        = "ok"
	StatusFailed    = "failed"
	StatusDuplicate = "duplicate"
)

// Event captures a single step of a run.
type Event struct {
	// RunID identifies the crawl or index run.
	RunID string
	// Kind is the run type.
	Kind Kind
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// URL is the page or PDF the event is about.
	URL string
	// Status is the item outcome for page, PDF and batch events.
	Status string
	// Count carries a quantity, e.g. chunks stored by a batch.
	Count int
	// Dur is the run duration on RUN_DONE/RUN_ERROR.
	Dur time.Duration
	// Note carries low-volume context such as the phase name or error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunQueued, StageRunStart, StageRunDone, StageRunError:
	case StagePhase:
		if e.Note == "" {
			return errors.New("phase event requires a note")
		}
	case StagePage, StagePDF:
		if e.URL == "" {
			return fmt.Errorf("%s event requires a url", e.Stage)
		}
		if e.Status == "" {
			return fmt.Errorf("%s event requires a status", e.Stage)
		}
	case StageBatch:
		if e.Status == "" {
			return errors.New("batch event requires a status")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
