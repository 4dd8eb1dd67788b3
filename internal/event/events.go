package event

import (
	"time"

	"github.com/mangadl/manga-downloader/internal/model"
)

// Type discriminates the event kinds carried by the bus
type Type string

const (
	// TypeProgress reports per-chapter download progress from a connector
	TypeProgress Type = "progress"

	// TypeLog carries an operational log line, optionally tied to a job
	TypeLog Type = "log"

	// TypeStateChanged reports a job status transition from the orchestrator
	TypeStateChanged Type = "state_changed"
)

// Log levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warning"
	LevelError = "error"
)

// Event is one notification on the bus. Only the fields relevant to the
// event's Type are populated.
type Event struct {
	Type  Type      `json:"type"`
	JobID string    `json:"job_id,omitempty"`
	Time  time.Time `json:"time"`

	// Progress fields
	ChapterNumber float64 `json:"chapter_number,omitempty"`
	PageIndex     int     `json:"page_index,omitempty"`
	PageTotal     int     `json:"page_total,omitempty"`
	Bytes         int64   `json:"bytes,omitempty"`

	// Log fields
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	// StateChanged fields
	From model.JobStatus `json:"from,omitempty"`
	To   model.JobStatus `json:"to,omitempty"`
}

// NewProgress builds a progress event
func NewProgress(jobID string, chapter float64, pageIndex, pageTotal int, bytes int64) Event {
	return Event{
		Type:          TypeProgress,
		JobID:         jobID,
		Time:          time.Now(),
		ChapterNumber: chapter,
		PageIndex:     pageIndex,
		PageTotal:     pageTotal,
		Bytes:         bytes,
	}
}

// NewLog builds a log event; jobID may be empty for engine-level messages
func NewLog(jobID, level, message string) Event {
	return Event{
		Type:    TypeLog,
		JobID:   jobID,
		Time:    time.Now(),
		Level:   level,
		Message: message,
	}
}

// NewStateChanged builds a state transition event
func NewStateChanged(jobID string, from, to model.JobStatus) Event {
	return Event{
		Type:  TypeStateChanged,
		JobID: jobID,
		Time:  time.Now(),
		From:  from,
		To:    to,
	}
}
