// Package progress defines the event stream emitted by a workflow run.
//
// A run produces a lazy, finite sequence of Events: zero or more progress
// events in strict stage order followed by exactly one terminal event
// (complete or error). CurrentStage never decreases within a run.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"newsharvest/internal/scraper"
)

// Status tells consumers whether an event is informational or terminal.
type Status string

// Event statuses. Complete and Error are terminal; a run emits exactly one.
const (
	StatusProgress Status = "progress"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Stage identifies the workflow state that produced an event.
type Stage string

// Workflow stages in execution order.
const (
	StageInitialization     Stage = "initialization"
	StageFastPath           Stage = "fast_path"
	StageRobustPath         Stage = "robust_path"
	StageNavigation         Stage = "navigation"
	StageContentExtraction  Stage = "content_extraction"
	StageMetadataExtraction Stage = "metadata_extraction"
	StageValidation         Stage = "validation"
	StageCompletion         Stage = "completion"
)

// TotalStages is the number of counted stages in a full workflow run.
const TotalStages = 6

// Snapshot carries coarse timing for dashboards and log lines.
type Snapshot struct {
	ElapsedSeconds float64   `json:"total_elapsed_time_seconds"`
	StartedAt      time.Time `json:"started_at"`
}

// Event is a single element of the workflow output sequence.
type Event struct {
	RunID        uuid.UUID        `json:"run_id"`
	Status       Status           `json:"status"`
	Stage        Stage            `json:"stage"`
	CurrentStage int              `json:"current_stage"`
	TotalStages  int              `json:"total_stages"`
	Message      string           `json:"message"`
	Article      *scraper.Article `json:"data,omitempty"`
	Error        string           `json:"error,omitempty"`
	ErrorKind    string           `json:"error_kind,omitempty"`
	Performance  Snapshot         `json:"performance_metrics"`
}

// Terminal reports whether the event ends the sequence.
func (e Event) Terminal() bool {
	return e.Status == StatusComplete || e.Status == StatusError
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	switch e.Status {
	case StatusProgress:
	case StatusComplete:
		if e.Article == nil {
			return errors.New("complete event requires an article")
		}
	case StatusError:
		if e.Error == "" {
			return errors.New("error event requires an error message")
		}
	default:
		return fmt.Errorf("unknown status %q", e.Status)
	}
	switch e.Stage {
	case StageInitialization, StageFastPath, StageRobustPath, StageNavigation,
		StageContentExtraction, StageMetadataExtraction, StageValidation, StageCompletion:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.CurrentStage < 0 || e.CurrentStage > e.TotalStages {
		return fmt.Errorf("current stage %d out of range", e.CurrentStage)
	}
	return nil
}
