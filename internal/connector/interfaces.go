package connector

import (
	"context"
	"time"

	"github.com/mangadl/manga-downloader/internal/model"
	"github.com/mangadl/manga-downloader/internal/token"
)

// ContractVersion is the capability contract version this engine supports.
// The registry rejects connectors declaring any other version.
const ContractVersion = 1

// Descriptor carries a connector's identity and static settings
type Descriptor struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Version         string        `json:"version"`
	Author          string        `json:"author,omitempty"`
	Description     string        `json:"description,omitempty"`
	Domains         []string      `json:"domains"`
	ContractVersion int           `json:"contract_version"`
	RateLimit       time.Duration `json:"-"` // minimum delay between requests
	PageConcurrency int           `json:"-"` // max parallel page fetches per chapter
}

// ProgressSink receives progress and log reports from an executing connector.
// The orchestrator hands an implementation to Execute; connectors never talk
// to the event bus directly.
type ProgressSink interface {
	// Progress reports page-level progress within a chapter. A report with
	// pageIndex == pageTotal (pageTotal > 0) marks the chapter as fully
	// written; Execute must emit exactly one such report per finished
	// chapter, since the orchestrator derives the resume prefix from it.
	Progress(chapter float64, pageIndex, pageTotal int, bytes int64)

	// Log emits an operational message tied to the running job
	Log(level, message string)
}

// Connector is the capability contract for one remote source.
//
// Matches and Normalize are pure and perform no I/O. FetchInfo and Execute
// perform network work and must honour the context for transport deadlines.
// Execute must call tok.Err() at every safe suspension point, at minimum
// before starting each chapter, and return the error it yields unchanged.
type Connector interface {
	// Describe returns the connector's identity and static settings
	Describe() Descriptor

	// Matches reports whether this connector can handle the raw input
	Matches(rawURL string) bool

	// Normalize canonicalizes a raw locator without network access
	Normalize(rawURL string) string

	// FetchInfo retrieves series metadata. Fails with *model.FetchError on
	// transport failure or *model.ParseError on a malformed response.
	FetchInfo(ctx context.Context, url string) (*model.ContentInfo, error)

	// DescribeOptions is a pure function of already-fetched metadata
	DescribeOptions(info *model.ContentInfo) model.OptionsSchema

	// BuildPlan filters the fetched chapters by the selection and validates
	// the options. Fails with *model.SelectionError when the selection is
	// empty or references an unknown group.
	BuildPlan(url string, info *model.ContentInfo, sel model.Selection, opts map[string]any) (*model.DownloadPlan, error)

	// Execute downloads the plan, reporting through sink and polling tok.
	// Fails with *model.FetchError, *model.IOError, model.ErrCancelled, or
	// model.ErrPaused.
	Execute(ctx context.Context, plan *model.DownloadPlan, sink ProgressSink, tok *token.Token) error
}
