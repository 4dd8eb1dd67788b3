package task

import (
	"github.com/mangadl/manga-downloader/internal/model"
)

// Orchestrator defines the job submission and control contract consumed by
// presentation collaborators. All methods are safe for concurrent use.
type Orchestrator interface {
	// Submit resolves a connector for the raw input and enqueues a new job.
	// Fails with model.ErrNoConnector when nothing matches; no job is
	// created in that case. An empty outputRoot uses the configured default.
	Submit(rawURL, outputRoot string) (string, error)

	// SubmitList submits one job per non-empty, non-comment line
	SubmitList(text, outputRoot string) ([]string, error)

	// Snapshot returns a point-in-time copy of a job
	Snapshot(id string) (model.Job, error)

	// Jobs returns snapshots of all jobs in submission order
	Jobs() []model.Job

	// SetSelection replaces the chapter selection. Legal only while Ready.
	SetSelection(id string, sel model.Selection) error

	// SetOptions replaces the option values after validating them against
	// the connector's schema. Legal only while Ready.
	SetOptions(id string, opts map[string]any) error

	// Start admits a Ready job to the download queue. Needed when auto
	// start is disabled; a no-op for jobs already waiting.
	Start(id string) error

	// StartAllReady admits every Ready job, returning the count admitted
	StartAllReady() int

	RequestPause(id string) error
	RequestResume(id string) error
	RequestCancel(id string) error

	// Remove deletes a job record. Legal only on terminal states.
	Remove(id string) error

	// ClearFinished removes all terminal jobs, returning the count removed
	ClearFinished() int
}
