package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mangadl/manga-downloader/internal/config"
	"github.com/mangadl/manga-downloader/internal/connector"
	"github.com/mangadl/manga-downloader/internal/event"
	"github.com/mangadl/manga-downloader/internal/model"
	"github.com/mangadl/manga-downloader/internal/token"
)

const jobIDPrefix = "job-"

// jobEntry pairs the job record with its bound connector instance and token.
// The connector binding survives registry reloads for the job's lifetime.
type jobEntry struct {
	job  *model.Job
	conn connector.Connector
	tok  *token.Token

	// dirty marks that selection or options changed while Ready, so the
	// plan must be rebuilt before the download starts
	dirty bool
}

// Service is the task orchestrator. The jobs map and every job record are
// guarded by mu; workers never touch a record directly, they go through the
// service so no two goroutines mutate the same job.
type Service struct {
	registry *connector.Registry
	bus      *event.Bus
	cfg      *config.Settings

	mu      sync.Mutex
	jobs    map[string]*jobEntry
	order   []string // submission order
	pending []string // ids waiting for a download slot, submission order
	active  int      // jobs currently Downloading
	closed  bool

	wg sync.WaitGroup
}

var _ Orchestrator = (*Service)(nil)

// NewService creates the orchestrator with its collaborators: the connector
// registry, the event bus it publishes on, and the configuration snapshot.
func NewService(registry *connector.Registry, bus *event.Bus, cfg *config.Settings) *Service {
	return &Service{
		registry: registry,
		bus:      bus,
		cfg:      cfg,
		jobs:     make(map[string]*jobEntry),
	}
}

// Submit resolves a connector and enqueues a new job for validation
func (s *Service) Submit(rawURL, outputRoot string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty input")
	}

	conn, err := s.registry.Resolve(rawURL)
	if err != nil {
		return "", err
	}

	if outputRoot == "" {
		outputRoot = s.cfg.DownloadDir
	}

	now := time.Now()
	job := &model.Job{
		ID:          generateJobID(),
		URL:         conn.Normalize(rawURL),
		ConnectorID: conn.Describe().ID,
		Status:      model.StatusQueued,
		OutputDir:   outputRoot,
		SubmittedAt: now,
		StatusTimes: map[model.JobStatus]time.Time{model.StatusQueued: now},
	}
	entry := &jobEntry{job: job, conn: conn, tok: token.New()}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", fmt.Errorf("orchestrator is shut down")
	}
	s.jobs[job.ID] = entry
	s.order = append(s.order, job.ID)
	s.wg.Add(1)
	s.mu.Unlock()

	s.emitLog(job.ID, event.LevelInfo, fmt.Sprintf("job added for %s via %s", job.URL, job.ConnectorID))
	go s.validate(entry)

	return job.ID, nil
}

// SubmitList submits one job per line, skipping blanks and # comments.
// Lines that resolve no connector are reported and skipped; they do not
// abort the rest of the list.
func (s *Service) SubmitList(text, outputRoot string) ([]string, error) {
	var ids []string
	var firstErr error
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := s.Submit(line, outputRoot)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", line, err)
			}
			s.emitLog("", event.LevelWarn, fmt.Sprintf("skipped %s: %v", line, err))
			continue
		}
		ids = append(ids, id)
	}
	return ids, firstErr
}

// Snapshot returns a point-in-time copy of the job record
func (s *Service) Snapshot(id string) (model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return model.Job{}, fmt.Errorf("job not found: %s", id)
	}
	return entry.job.Clone(), nil
}

// Jobs returns snapshots of all jobs in submission order
func (s *Service) Jobs() []model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Job, 0, len(s.order))
	for _, id := range s.order {
		if entry, ok := s.jobs[id]; ok {
			out = append(out, entry.job.Clone())
		}
	}
	return out
}

// SetSelection replaces the selection of a Ready job
func (s *Service) SetSelection(id string, sel model.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if entry.job.Status != model.StatusReady {
		return fmt.Errorf("selection can only change while %s, job is %s", model.StatusReady, entry.job.Status)
	}
	if entry.job.Info != nil && sel.GroupID != "" {
		if _, ok := entry.job.Info.GroupByID(sel.GroupID); !ok {
			return &model.SelectionError{Reason: fmt.Sprintf("unknown group %q", sel.GroupID)}
		}
	}
	entry.job.Selection = sel
	entry.dirty = true
	return nil
}

// SetOptions replaces the option values of a Ready job after schema validation
func (s *Service) SetOptions(id string, opts map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if entry.job.Status != model.StatusReady {
		return fmt.Errorf("options can only change while %s, job is %s", model.StatusReady, entry.job.Status)
	}
	if entry.job.Info != nil {
		schema := entry.conn.DescribeOptions(entry.job.Info)
		if err := schema.Validate(opts); err != nil {
			return err
		}
	}
	merged := entry.job.Options
	if merged == nil {
		merged = make(map[string]any)
	}
	for k, v := range opts {
		merged[k] = v
	}
	entry.job.Options = merged
	entry.dirty = true
	return nil
}

// Start admits a Ready job to the download queue
func (s *Service) Start(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if entry.job.Status != model.StatusReady {
		return fmt.Errorf("job is not %s: %s", model.StatusReady, entry.job.Status)
	}
	s.enqueueLocked(entry)
	s.admitLocked()
	return nil
}

// StartAllReady admits every Ready job, returning the count admitted
func (s *Service) StartAllReady() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := 0
	for _, id := range s.order {
		entry := s.jobs[id]
		if entry != nil && entry.job.Status == model.StatusReady && !s.isPendingLocked(id) {
			s.enqueueLocked(entry)
			started++
		}
	}
	s.admitLocked()
	return started
}

// RequestPause asks the executing worker to pause at its next safe point.
// The Paused transition is recorded when the worker observes the request.
func (s *Service) RequestPause(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if entry.job.Status != model.StatusDownloading {
		return fmt.Errorf("only a %s job can pause, job is %s", model.StatusDownloading, entry.job.Status)
	}
	entry.tok.Pause()
	return nil
}

// RequestResume re-queues a Paused job behind the jobs already downloading,
// preserving its original submission order among waiters.
func (s *Service) RequestResume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if entry.job.Status != model.StatusPaused {
		return fmt.Errorf("only a %s job can resume, job is %s", model.StatusPaused, entry.job.Status)
	}
	entry.tok.Resume()
	s.enqueueLocked(entry)
	s.admitLocked()
	return nil
}

// RequestCancel cancels a job in any non-terminal state. A job with a live
// worker transitions once the worker observes the token; idle jobs
// transition immediately.
func (s *Service) RequestCancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if entry.job.Status.IsTerminal() {
		return fmt.Errorf("job already finished: %s", entry.job.Status)
	}

	entry.tok.Cancel()
	switch entry.job.Status {
	case model.StatusDownloading:
		// the worker observes the token at its next poll and reports back
	default:
		s.dropPendingLocked(id)
		s.transitionLocked(entry, model.StatusCanceled, "")
	}
	return nil
}

// Remove deletes a terminal job record
func (s *Service) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if !entry.job.Status.IsTerminal() {
		return fmt.Errorf("cannot remove job in state %s", entry.job.Status)
	}
	s.removeLocked(id)
	return nil
}

// ClearFinished removes all terminal jobs, returning the count removed
func (s *Service) ClearFinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range append([]string(nil), s.order...) {
		if entry, ok := s.jobs[id]; ok && entry.job.Status.IsTerminal() {
			s.removeLocked(id)
			removed++
		}
	}
	return removed
}

// Shutdown cancels every live job and waits for workers to drain
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.closed = true
	for _, entry := range s.jobs {
		if !entry.job.Status.IsTerminal() {
			entry.tok.Cancel()
		}
	}
	s.pending = nil
	s.mu.Unlock()

	s.wg.Wait()
}

// validate drives a job through the metadata phase: fetchInfo with retry,
// options defaults, default selection, and the initial plan build.
func (s *Service) validate(entry *jobEntry) {
	defer s.wg.Done()

	s.mu.Lock()
	if entry.job.Status != model.StatusQueued {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(entry, model.StatusValidating, "")
	url := entry.job.URL
	conn := entry.conn
	tok := entry.tok
	s.mu.Unlock()

	ctx := context.Background()
	var info *model.ContentInfo
	err := s.retryTransient(entry, func() error {
		var ferr error
		info, ferr = conn.FetchInfo(ctx, url)
		return ferr
	})
	if err == nil {
		err = tok.Err() // poll between contract calls
	}

	var sel model.Selection
	var opts map[string]any
	var plan *model.DownloadPlan
	if err == nil {
		schema := conn.DescribeOptions(info)
		opts = schema.Defaults()
		sel = defaultSelection(info)
		plan, err = conn.BuildPlan(url, info, sel, opts)
		if err == nil && plan.TotalChapters() == 0 {
			err = &model.SelectionError{Reason: "selection matches no chapters"}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.job.Status != model.StatusValidating {
		// canceled while we were fetching
		return
	}
	if err != nil {
		if errors.Is(err, model.ErrCancelled) {
			s.transitionLocked(entry, model.StatusCanceled, "")
		} else {
			s.transitionLocked(entry, model.StatusFailed, err.Error())
		}
		return
	}

	plan.OutputDir = entry.job.OutputDir
	entry.job.Info = info
	entry.job.Title = info.Title
	entry.job.Selection = sel
	entry.job.Options = opts
	entry.job.Plan = plan
	entry.job.TotalChapters = plan.TotalChapters()
	s.transitionLocked(entry, model.StatusReady, "")
	s.emitLog(entry.job.ID, event.LevelInfo,
		fmt.Sprintf("fetched info: %s (%d chapters)", info.Title, len(info.Chapters)))

	if s.cfg.AutoStart {
		s.enqueueLocked(entry)
		s.admitLocked()
	}
}

// runDownload owns one download slot for the duration of an Execute attempt
func (s *Service) runDownload(entry *jobEntry) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.active--
		s.admitLocked()
		s.mu.Unlock()
	}()

	s.mu.Lock()
	job := entry.job
	conn := entry.conn
	tok := entry.tok
	if entry.dirty {
		plan, err := conn.BuildPlan(job.URL, job.Info, job.Selection, job.Options)
		if err == nil && plan.TotalChapters() == 0 {
			err = &model.SelectionError{Reason: "selection matches no chapters"}
		}
		if err != nil {
			s.transitionLocked(entry, model.StatusFailed, err.Error())
			s.mu.Unlock()
			return
		}
		plan.OutputDir = job.OutputDir
		entry.dirty = false
		job.Plan = plan
		job.TotalChapters = plan.TotalChapters()
		job.CompletedChapters = 0
	}
	sink := newJobSink(s, entry)
	s.mu.Unlock()

	ctx := context.Background()
	err := s.retryTransient(entry, func() error {
		s.mu.Lock()
		// skip the chapters finished before a pause or a retried attempt
		remaining := job.Plan.Remaining(job.CompletedChapters)
		s.mu.Unlock()
		if remaining.TotalChapters() == 0 {
			return nil
		}
		return conn.Execute(ctx, remaining, sink, tok)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.job.Status != model.StatusDownloading {
		return
	}

	// a cancel request always wins, even when Execute returned first
	if tok.Poll() == token.SignalCancelled || errors.Is(err, model.ErrCancelled) {
		s.transitionLocked(entry, model.StatusCanceled, "")
		return
	}
	if errors.Is(err, model.ErrPaused) {
		s.transitionLocked(entry, model.StatusPaused, "")
		return
	}
	if err != nil {
		s.transitionLocked(entry, model.StatusFailed, err.Error())
		return
	}

	job.Progress = 1.0
	job.CompletedChapters = job.TotalChapters
	job.CurrentChapter = ""
	job.Speed = ""
	s.transitionLocked(entry, model.StatusCompleted, "")
	s.emitLog(job.ID, event.LevelInfo, fmt.Sprintf("download complete: %s", job.DisplayTitle()))
}

// retryTransient runs fn, retrying transport-level failures with exponential
// backoff up to the configured bound. The token preempts both the sleep and
// the next attempt, so cancel and pause are honoured between retries.
func (s *Service) retryTransient(entry *jobEntry, fn func() error) error {
	delay := s.cfg.BackoffBase
	for attempt := 0; ; attempt++ {
		if err := entry.tok.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || !model.IsTransient(err) {
			return err
		}
		if attempt >= s.cfg.RetryLimit {
			return err
		}

		s.mu.Lock()
		entry.job.RetryCount++
		s.mu.Unlock()
		s.emitLog(entry.job.ID, event.LevelWarn,
			fmt.Sprintf("transient failure (attempt %d/%d), retrying in %s: %v",
				attempt+1, s.cfg.RetryLimit, delay, err))

		select {
		case <-time.After(delay):
		case <-entry.tok.Cancelled():
			return model.ErrCancelled
		case <-entry.tok.Paused():
			return model.ErrPaused
		}

		delay *= 2
		if delay > s.cfg.BackoffMax {
			delay = s.cfg.BackoffMax
		}
	}
}

// transitionLocked applies a state machine edge, records timestamps and the
// failure cause, and publishes the change. Callers hold mu. An illegal edge
// is a programmer error and panics; worker outcomes are guarded by status
// checks before calling in.
func (s *Service) transitionLocked(entry *jobEntry, to model.JobStatus, cause string) {
	job := entry.job
	from := job.Status
	if !model.CanTransition(from, to) {
		panic(fmt.Sprintf("illegal job transition %s -> %s (job %s)", from, to, job.ID))
	}

	job.Status = to
	now := time.Now()
	if job.StatusTimes == nil {
		job.StatusTimes = make(map[model.JobStatus]time.Time)
	}
	job.StatusTimes[to] = now
	if to.IsTerminal() {
		job.FinishedAt = now
	}
	if to == model.StatusFailed {
		job.LastError = cause
	}

	log.Printf("[task] job %s: %s -> %s", job.ID, from, to)
	if s.bus != nil {
		s.bus.Publish(event.NewStateChanged(job.ID, from, to))
	}
}

// enqueueLocked adds the job to the slot wait list, keeping submission order
func (s *Service) enqueueLocked(entry *jobEntry) {
	id := entry.job.ID
	if s.isPendingLocked(id) {
		return
	}
	pos := len(s.pending)
	for i, waiting := range s.pending {
		if s.submissionIndexLocked(waiting) > s.submissionIndexLocked(id) {
			pos = i
			break
		}
	}
	s.pending = append(s.pending, "")
	copy(s.pending[pos+1:], s.pending[pos:])
	s.pending[pos] = id
}

// admitLocked grants free download slots to the earliest waiting jobs
func (s *Service) admitLocked() {
	for s.active < s.cfg.MaxParallelDownloads && len(s.pending) > 0 {
		id := s.pending[0]
		s.pending = s.pending[1:]
		entry, ok := s.jobs[id]
		if !ok {
			continue
		}
		switch entry.job.Status {
		case model.StatusReady, model.StatusPaused:
			s.transitionLocked(entry, model.StatusDownloading, "")
			s.active++
			s.wg.Add(1)
			go s.runDownload(entry)
		default:
			// canceled or removed while waiting
		}
	}
}

func (s *Service) isPendingLocked(id string) bool {
	for _, p := range s.pending {
		if p == id {
			return true
		}
	}
	return false
}

func (s *Service) dropPendingLocked(id string) {
	for i, p := range s.pending {
		if p == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (s *Service) submissionIndexLocked(id string) int {
	for i, o := range s.order {
		if o == id {
			return i
		}
	}
	return len(s.order)
}

func (s *Service) removeLocked(id string) {
	delete(s.jobs, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.dropPendingLocked(id)
}

func (s *Service) emitLog(jobID, level, message string) {
	log.Printf("[task] %s", message)
	if s.bus != nil {
		s.bus.Publish(event.NewLog(jobID, level, message))
	}
}

// defaultSelection mirrors the initial selection offered after validation:
// the full chapter range, filtered to the first group when the series has
// named groups.
func defaultSelection(info *model.ContentInfo) model.Selection {
	sel := model.Selection{}
	if len(info.Chapters) > 0 {
		min, max := info.ChapterRange()
		sel.ChapterStart = &min
		sel.ChapterEnd = &max
	}
	if len(info.Groups) > 0 {
		sel.GroupID = info.Groups[0].ID
	}
	return sel
}

// generateJobID generates a unique job ID using UUID v7 for better uniqueness
// and time ordering
func generateJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf(jobIDPrefix+"%d", time.Now().UnixNano())
	}
	return jobIDPrefix + id.String()
}
