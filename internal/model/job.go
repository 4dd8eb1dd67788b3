package model

import "time"

// Job represents one user-initiated unit of work tracked by the orchestrator.
// The record is owned exclusively by the orchestrator; everyone else reads
// point-in-time snapshots produced by Clone.
type Job struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ConnectorID string    `json:"connector_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Status      JobStatus `json:"status"`

	Progress          float64 `json:"progress"` // 0.0 to 1.0
	Speed             string  `json:"speed,omitempty"`
	CurrentChapter    string  `json:"current_chapter,omitempty"`
	CompletedChapters int     `json:"completed_chapters"`
	TotalChapters     int     `json:"total_chapters"`

	RetryCount int    `json:"retry_count"`
	LastError  string `json:"last_error,omitempty"` // set only in Failed

	Selection Selection      `json:"selection"`
	Options   map[string]any `json:"options,omitempty"`
	OutputDir string         `json:"output_dir"`

	Info *ContentInfo  `json:"info,omitempty"`
	Plan *DownloadPlan `json:"-"`

	SubmittedAt time.Time               `json:"submitted_at"`
	FinishedAt  time.Time               `json:"finished_at,omitempty"`
	StatusTimes map[JobStatus]time.Time `json:"status_times,omitempty"`
}

// DisplayTitle returns the fetched title, falling back to the source URL
func (j *Job) DisplayTitle() string {
	if j.Title != "" {
		return j.Title
	}
	return j.URL
}

// Percent returns the progress as an integer percentage
func (j *Job) Percent() int {
	p := int(j.Progress * 100)
	if p > 100 {
		p = 100
	}
	return p
}

// Clone returns a deep-enough copy for a point-in-time snapshot. The shared
// Info and Plan are immutable after validation, so the pointers are kept.
func (j *Job) Clone() Job {
	c := *j
	if j.Options != nil {
		c.Options = make(map[string]any, len(j.Options))
		for k, v := range j.Options {
			c.Options[k] = v
		}
	}
	if j.StatusTimes != nil {
		c.StatusTimes = make(map[JobStatus]time.Time, len(j.StatusTimes))
		for k, v := range j.StatusTimes {
			c.StatusTimes[k] = v
		}
	}
	return c
}
