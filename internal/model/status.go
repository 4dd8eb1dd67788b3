package model

// JobStatus represents the state of a download job
type JobStatus string

const (
	// StatusQueued means the job was submitted but not yet validated
	StatusQueued JobStatus = "Queued"

	// StatusValidating means content metadata is being fetched
	StatusValidating JobStatus = "Validating"

	// StatusReady means the job has a non-empty plan and awaits a download slot
	StatusReady JobStatus = "Ready"

	// StatusDownloading means the download is in progress
	StatusDownloading JobStatus = "Downloading"

	// StatusPaused means the job was paused mid-download and holds no slot
	StatusPaused JobStatus = "Paused"

	// StatusCompleted means the job finished successfully
	StatusCompleted JobStatus = "Completed"

	// StatusFailed means the job failed with an error
	StatusFailed JobStatus = "Failed"

	// StatusCanceled means the job was canceled by the user
	StatusCanceled JobStatus = "Canceled"
)

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// IsActive returns true while a worker may be running on the job's behalf
func (s JobStatus) IsActive() bool {
	return s == StatusValidating || s == StatusDownloading
}

// transitions lists every legal edge of the job state machine. Cancellation
// from any non-terminal state is handled separately in CanTransition.
var transitions = map[JobStatus][]JobStatus{
	StatusQueued:      {StatusValidating},
	StatusValidating:  {StatusReady, StatusFailed},
	StatusReady:       {StatusDownloading},
	StatusDownloading: {StatusCompleted, StatusFailed, StatusPaused},
	StatusPaused:      {StatusDownloading},
}

// CanTransition reports whether moving from one status to another is a legal
// edge of the state machine. Terminal states cannot be left.
func CanTransition(from, to JobStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusCanceled {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
