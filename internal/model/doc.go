package model

// Package model defines domain data structures used across the app: jobs and
// their status state machine, fetched content metadata, option schemas,
// download plans, and the error taxonomy. Job records are owned by the
// orchestrator and exposed to other packages only as snapshots.
