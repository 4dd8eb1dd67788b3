package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mangadl/manga-downloader/internal/config"
	"github.com/mangadl/manga-downloader/internal/connector"
	"github.com/mangadl/manga-downloader/internal/event"
	"github.com/mangadl/manga-downloader/internal/model"
	"github.com/mangadl/manga-downloader/internal/token"
)

// fakeConnector is a fully controllable in-memory connector. When step is
// set, Execute waits for one step per chapter, which lets tests hold a
// download mid-flight and exercise pause/cancel at defined points.
type fakeConnector struct {
	id       string
	domain   string
	chapters int
	step     chan struct{}

	mu         sync.Mutex
	fetchErrs  []error // consumed one per FetchInfo call
	execErrs   []error // consumed one per Execute call
	downloaded []float64
	execCalls  int
}

func (f *fakeConnector) Describe() connector.Descriptor {
	return connector.Descriptor{
		ID:              f.id,
		Name:            f.id,
		Version:         "1.0.0",
		Domains:         []string{f.domain},
		ContractVersion: connector.ContractVersion,
	}
}

func (f *fakeConnector) Matches(rawURL string) bool {
	return strings.Contains(rawURL, f.domain)
}

func (f *fakeConnector) Normalize(rawURL string) string { return rawURL }

func (f *fakeConnector) FetchInfo(ctx context.Context, url string) (*model.ContentInfo, error) {
	f.mu.Lock()
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()

	info := &model.ContentInfo{Title: "Series " + f.id, URL: url}
	for i := 1; i <= f.chapters; i++ {
		info.Chapters = append(info.Chapters, model.Chapter{
			ID:       fmt.Sprintf("ch-%d", i),
			Number:   float64(i),
			Title:    fmt.Sprintf("Chapter %d", i),
			Language: "en",
		})
	}
	return info, nil
}

func (f *fakeConnector) DescribeOptions(info *model.ContentInfo) model.OptionsSchema {
	return model.OptionsSchema{Fields: []model.OptionField{
		{Key: "format", Label: "Format", Kind: model.FieldDropdown, Choices: []string{"CBZ", "Folder"}, Default: "Folder"},
	}}
}

func (f *fakeConnector) BuildPlan(url string, info *model.ContentInfo, sel model.Selection, opts map[string]any) (*model.DownloadPlan, error) {
	if sel.GroupID != "" {
		if _, ok := info.GroupByID(sel.GroupID); !ok {
			return nil, &model.SelectionError{Reason: "unknown group " + sel.GroupID}
		}
	}
	return &model.DownloadPlan{
		Title:    info.Title,
		Chapters: sel.Filter(info.Chapters),
		Options:  opts,
	}, nil
}

func (f *fakeConnector) Execute(ctx context.Context, plan *model.DownloadPlan, sink connector.ProgressSink, tok *token.Token) error {
	f.mu.Lock()
	f.execCalls++
	if len(f.execErrs) > 0 {
		err := f.execErrs[0]
		f.execErrs = f.execErrs[1:]
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	for _, ch := range plan.Chapters {
		if err := tok.Err(); err != nil {
			return err
		}
		if f.step != nil {
			select {
			case <-f.step:
			case <-tok.Cancelled():
				return model.ErrCancelled
			case <-tok.Paused():
				return model.ErrPaused
			}
		}
		f.mu.Lock()
		f.downloaded = append(f.downloaded, ch.Number)
		f.mu.Unlock()
		sink.Progress(ch.Number, 1, 1, 64)
	}
	return nil
}

func (f *fakeConnector) downloadedChapters() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.downloaded...)
}

func testSettings(parallel int) *config.Settings {
	return &config.Settings{
		DownloadDir:          "/tmp/mangadl-test",
		MaxParallelDownloads: parallel,
		RetryLimit:           3,
		BackoffBase:          time.Millisecond,
		BackoffMax:           8 * time.Millisecond,
		AutoStart:            true,
		APIPort:              "0",
	}
}

func newTestService(cfg *config.Settings, conns ...connector.Connector) (*Service, *event.Bus) {
	bus := event.NewBus()
	reg := connector.NewRegistry(bus)
	reg.Load(conns...)
	return NewService(reg, bus, cfg), bus
}

// waitStatus polls until the job reaches the wanted status or the deadline
func waitStatus(t *testing.T, s *Service, id string, want model.JobStatus) model.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.Snapshot(id)
		if err != nil {
			t.Fatalf("snapshot failed: %v", err)
		}
		if job.Status == want {
			return job
		}
		if job.Status.IsTerminal() && !want.IsTerminal() {
			t.Fatalf("job reached terminal %s (error %q) while waiting for %s", job.Status, job.LastError, want)
		}
		time.Sleep(2 * time.Millisecond)
	}
	job, _ := s.Snapshot(id)
	t.Fatalf("timed out waiting for %s, job is %s", want, job.Status)
	return model.Job{}
}

func TestSubmit_NoConnector(t *testing.T) {
	s, _ := newTestService(testSettings(1), &fakeConnector{id: "ex", domain: "example.com", chapters: 1})
	defer s.Shutdown()

	if _, err := s.Submit("https://other.com/x", ""); !errors.Is(err, model.ErrNoConnector) {
		t.Fatalf("expected ErrNoConnector, got %v", err)
	}
	if len(s.Jobs()) != 0 {
		t.Error("no job should be created when resolution fails")
	}
}

func TestSubmit_ResolvesByDomain(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 2}
	s, _ := newTestService(testSettings(1), ex)
	defer s.Shutdown()

	id, err := s.Submit("https://example.com/title/42", "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	job := waitStatus(t, s, id, model.StatusCompleted)
	if job.ConnectorID != "ex" {
		t.Errorf("expected connector ex, got %s", job.ConnectorID)
	}
	if job.CompletedChapters != 2 || job.Progress != 1.0 {
		t.Errorf("expected 2/2 chapters at progress 1.0, got %d at %v", job.CompletedChapters, job.Progress)
	}
	if job.OutputDir == "" {
		t.Error("expected default output dir to be applied")
	}
}

func TestStateSequenceIsValid(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 3}
	s, bus := newTestService(testSettings(1), ex)
	defer s.Shutdown()

	events, cancel := bus.Subscribe(64)
	defer cancel()

	id, err := s.Submit("https://example.com/title/1", "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, s, id, model.StatusCompleted)

	var seq []model.JobStatus
	timeout := time.After(time.Second)
	for len(seq) < 4 {
		select {
		case e := <-events:
			if e.Type == event.TypeStateChanged && e.JobID == id {
				if len(seq) == 0 && e.From != model.StatusQueued {
					t.Fatalf("first transition must leave Queued, left %s", e.From)
				}
				if len(seq) > 0 && e.From != seq[len(seq)-1] {
					t.Fatalf("gap in recorded sequence: %s follows %s", e.From, seq[len(seq)-1])
				}
				if !model.CanTransition(e.From, e.To) {
					t.Fatalf("illegal transition published: %s -> %s", e.From, e.To)
				}
				seq = append(seq, e.To)
			}
		case <-timeout:
			t.Fatalf("incomplete state sequence: %v", seq)
		}
	}

	want := []model.JobStatus{model.StatusValidating, model.StatusReady, model.StatusDownloading, model.StatusCompleted}
	for i, st := range want {
		if seq[i] != st {
			t.Fatalf("state sequence %v, expected %v", seq, want)
		}
	}
}

func TestFIFOAdmission_PoolSizeOne(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 2, step: make(chan struct{})}
	s, _ := newTestService(testSettings(1), ex)
	defer s.Shutdown()

	first, err := s.Submit("https://example.com/title/1", "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, s, first, model.StatusDownloading)

	second, err := s.Submit("https://example.com/title/2", "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, s, second, model.StatusReady)

	// second must wait while the only slot is held
	time.Sleep(20 * time.Millisecond)
	if job, _ := s.Snapshot(second); job.Status != model.StatusReady {
		t.Fatalf("second job should stay Ready while pool is saturated, got %s", job.Status)
	}

	// release both chapters of the first job, then the second's two
	for i := 0; i < 4; i++ {
		ex.step <- struct{}{}
	}

	waitStatus(t, s, first, model.StatusCompleted)
	waitStatus(t, s, second, model.StatusCompleted)
}

func TestMaxParallelDownloads(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 1, step: make(chan struct{})}
	s, _ := newTestService(testSettings(2), ex)
	defer s.Shutdown()

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := s.Submit(fmt.Sprintf("https://example.com/title/%d", i), "")
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
		ids = append(ids, id)
	}

	// wait until the pool is saturated
	deadline := time.Now().Add(5 * time.Second)
	for {
		downloading := 0
		for _, job := range s.Jobs() {
			if job.Status == model.StatusDownloading {
				downloading++
			}
		}
		if downloading == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pool never saturated, %d downloading", downloading)
		}
		time.Sleep(2 * time.Millisecond)
	}

	// the bound holds while slots are blocked
	time.Sleep(20 * time.Millisecond)
	downloading := 0
	for _, job := range s.Jobs() {
		if job.Status == model.StatusDownloading {
			downloading++
		}
	}
	if downloading != 2 {
		t.Fatalf("expected exactly 2 downloading, got %d", downloading)
	}

	for i := 0; i < 4; i++ {
		ex.step <- struct{}{}
	}
	for _, id := range ids {
		waitStatus(t, s, id, model.StatusCompleted)
	}
}

func TestPauseResume_ResumesAtNextChapter(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 10, step: make(chan struct{})}
	s, _ := newTestService(testSettings(1), ex)
	defer s.Shutdown()

	id, err := s.Submit("https://example.com/title/1", "")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitStatus(t, s, id, model.StatusDownloading)

	// let exactly 3 chapters finish
	for i := 0; i < 3; i++ {
		ex.step <- struct{}{}
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, _ := s.Snapshot(id)
		if job.CompletedChapters == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("chapter 3 never completed, job at %d", job.CompletedChapters)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := s.RequestPause(id); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	job := waitStatus(t, s, id, model.StatusPaused)
	if job.CompletedChapters != 3 {
		t.Fatalf("expected pause after chapter 3, got %d", job.CompletedChapters)
	}
	if job.LastError != "" {
		t.Errorf("paused job must carry no cause, got %q", job.LastError)
	}

	if err := s.RequestResume(id); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	waitStatus(t, s, id, model.StatusDownloading)

	for i := 0; i < 7; i++ {
		ex.step <- struct{}{}
	}
	job = waitStatus(t, s, id, model.StatusCompleted)

	// exactly 10 chapters, zero duplicates, resumed at chapter 4
	got := ex.downloadedChapters()
	if len(got) != 10 {
		t.Fatalf("expected 10 downloads, got %d: %v", len(got), got)
	}
	for i, n := range got {
		if n != float64(i+1) {
			t.Fatalf("expected chapter %d at position %d, got %v (full: %v)", i+1, i, n, got)
		}
	}
	if job.CompletedChapters != 10 {
		t.Errorf("expected 10 completed chapters, got %d", job.CompletedChapters)
	}
}

func TestPause_OnlyWhileDownloading(t *testing.T) {
	cfg := testSettings(1)
	cfg.AutoStart = false
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 1}
	s, _ := newTestService(cfg, ex)
	defer s.Shutdown()

	id, _ := s.Submit("https://example.com/title/1", "")
	waitStatus(t, s, id, model.StatusReady)

	if err := s.RequestPause(id); err == nil {
		t.Error("expected pause of a Ready job to fail")
	}
}

func TestCancel_NonTerminalAlwaysCanceled(t *testing.T) {
	cfg := testSettings(1)
	cfg.AutoStart = false
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 1}
	s, _ := newTestService(cfg, ex)
	defer s.Shutdown()

	// Ready, no worker attached: cancel transitions immediately
	id, _ := s.Submit("https://example.com/title/1", "")
	waitStatus(t, s, id, model.StatusReady)
	if err := s.RequestCancel(id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	job := waitStatus(t, s, id, model.StatusCanceled)
	if job.LastError != "" {
		t.Errorf("canceled job must carry no cause, got %q", job.LastError)
	}

	if err := s.RequestCancel(id); err == nil {
		t.Error("expected cancel of a terminal job to fail")
	}
}

func TestCancel_DuringDownload(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 5, step: make(chan struct{})}
	s, _ := newTestService(testSettings(1), ex)
	defer s.Shutdown()

	id, _ := s.Submit("https://example.com/title/1", "")
	waitStatus(t, s, id, model.StatusDownloading)

	ex.step <- struct{}{}
	if err := s.RequestCancel(id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	waitStatus(t, s, id, model.StatusCanceled)

	if got := ex.downloadedChapters(); len(got) >= 5 {
		t.Errorf("download should have stopped early, got %v", got)
	}
}

func TestCancel_PreemptsRetryBackoff(t *testing.T) {
	cfg := testSettings(1)
	cfg.RetryLimit = 5
	cfg.BackoffBase = 10 * time.Second // cancel must not wait this out
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 2}
	ex.execErrs = []error{&model.FetchError{URL: "https://example.com/p/1", Err: errors.New("reset")}}

	s, bus := newTestService(cfg, ex)
	defer s.Shutdown()

	events, cancel := bus.Subscribe(64)
	defer cancel()

	id, _ := s.Submit("https://example.com/title/1", "")
	waitStatus(t, s, id, model.StatusDownloading)

	// wait for the retry delay to be announced, then cancel into the sleep
	deadline := time.After(5 * time.Second)
	for {
		var e event.Event
		select {
		case e = <-events:
		case <-deadline:
			t.Fatal("no retry event observed")
		}
		if e.Type == event.TypeLog && strings.Contains(e.Message, "retrying in") {
			break
		}
	}

	canceledAt := time.Now()
	if err := s.RequestCancel(id); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	job := waitStatus(t, s, id, model.StatusCanceled)
	if waited := time.Since(canceledAt); waited > 2*time.Second {
		t.Errorf("cancel should preempt the backoff sleep, took %v", waited)
	}
	if job.Status != model.StatusCanceled {
		t.Errorf("expected Canceled regardless of in-flight retry, got %s", job.Status)
	}
}

func TestRetry_BackoffDoublesAndCaps(t *testing.T) {
	cfg := testSettings(1)
	cfg.RetryLimit = 4
	cfg.BackoffBase = 4 * time.Millisecond
	cfg.BackoffMax = 10 * time.Millisecond
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 1}
	boom := &model.FetchError{URL: "u", Err: errors.New("connection reset")}
	ex.execErrs = []error{boom, boom, boom, boom, boom}

	s, bus := newTestService(cfg, ex)
	defer s.Shutdown()

	events, cancel := bus.Subscribe(128)
	defer cancel()

	id, _ := s.Submit("https://example.com/title/1", "")
	job := waitStatus(t, s, id, model.StatusFailed)

	if job.RetryCount != 4 {
		t.Errorf("expected 4 retries before failing, got %d", job.RetryCount)
	}
	if !strings.Contains(job.LastError, "connection reset") {
		t.Errorf("expected last error preserved, got %q", job.LastError)
	}

	// each retry event announces its delay; collect them in order
	var delays []time.Duration
	drain := time.After(200 * time.Millisecond)
loop:
	for {
		select {
		case e := <-events:
			if e.Type != event.TypeLog || !strings.Contains(e.Message, "retrying in ") {
				continue
			}
			rest := e.Message[strings.Index(e.Message, "retrying in ")+len("retrying in "):]
			d, err := time.ParseDuration(strings.SplitN(rest, ":", 2)[0])
			if err != nil {
				t.Fatalf("unparseable delay in %q: %v", e.Message, err)
			}
			delays = append(delays, d)
		case <-drain:
			break loop
		}
	}

	want := []time.Duration{
		4 * time.Millisecond,  // base
		8 * time.Millisecond,  // doubled
		10 * time.Millisecond, // capped
		10 * time.Millisecond, // stays capped
	}
	if len(delays) != len(want) {
		t.Fatalf("expected %d retry delays, got %v", len(want), delays)
	}
	for i, d := range delays {
		if d != want[i] {
			t.Fatalf("delay sequence %v, expected %v", delays, want)
		}
		if i > 0 && d < delays[i-1] {
			t.Errorf("delays must be non-decreasing, got %v", delays)
		}
		if d > cfg.BackoffMax {
			t.Errorf("delay %v exceeds cap %v", d, cfg.BackoffMax)
		}
	}
}

func TestValidate_RetriesTransientThenReady(t *testing.T) {
	cfg := testSettings(1)
	cfg.AutoStart = false
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 2}
	ex.fetchErrs = []error{
		&model.FetchError{URL: "https://example.com", Err: errors.New("timeout")},
		&model.FetchError{URL: "https://example.com", Err: errors.New("timeout")},
	}

	s, bus := newTestService(cfg, ex)
	defer s.Shutdown()

	events, cancel := bus.Subscribe(128)
	defer cancel()

	id, _ := s.Submit("https://example.com/title/1", "")
	job := waitStatus(t, s, id, model.StatusReady)

	if job.RetryCount != 2 {
		t.Errorf("expected 2 retries recorded, got %d", job.RetryCount)
	}

	// exactly two retry-delay events were published
	retries := 0
	drain := time.After(100 * time.Millisecond)
loop:
	for {
		select {
		case e := <-events:
			if e.Type == event.TypeLog && strings.Contains(e.Message, "retrying in") {
				retries++
			}
		case <-drain:
			break loop
		}
	}
	if retries != 2 {
		t.Errorf("expected 2 retry-delay events, got %d", retries)
	}
}

func TestValidate_ExhaustedRetriesFail(t *testing.T) {
	cfg := testSettings(1)
	cfg.RetryLimit = 1
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 2}
	ex.fetchErrs = []error{
		&model.FetchError{URL: "u", Err: errors.New("boom 1")},
		&model.FetchError{URL: "u", Err: errors.New("boom 2")},
	}

	s, _ := newTestService(cfg, ex)
	defer s.Shutdown()

	id, _ := s.Submit("https://example.com/title/1", "")
	job := waitStatus(t, s, id, model.StatusFailed)

	// the last error is preserved verbatim
	if !strings.Contains(job.LastError, "boom 2") {
		t.Errorf("expected last error preserved, got %q", job.LastError)
	}
}

func TestValidate_ParseErrorNotRetried(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 2}
	ex.fetchErrs = []error{&model.ParseError{URL: "u", Err: errors.New("bad json")}}

	s, _ := newTestService(testSettings(1), ex)
	defer s.Shutdown()

	id, _ := s.Submit("https://example.com/title/1", "")
	job := waitStatus(t, s, id, model.StatusFailed)
	if job.RetryCount != 0 {
		t.Errorf("parse errors must not be retried, got %d retries", job.RetryCount)
	}
}

func TestExecute_IOErrorNotRetried(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 2}
	ex.execErrs = []error{&model.IOError{Path: "/out/p.jpg", Err: errors.New("disk full")}}

	s, _ := newTestService(testSettings(1), ex)
	defer s.Shutdown()

	id, _ := s.Submit("https://example.com/title/1", "")
	job := waitStatus(t, s, id, model.StatusFailed)
	if job.RetryCount != 0 {
		t.Errorf("I/O errors must not be retried, got %d retries", job.RetryCount)
	}
	if !strings.Contains(job.LastError, "disk full") {
		t.Errorf("expected cause preserved, got %q", job.LastError)
	}
}

func TestValidate_EmptyCatalogFails(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 0}
	s, _ := newTestService(testSettings(1), ex)
	defer s.Shutdown()

	id, _ := s.Submit("https://example.com/title/1", "")
	job := waitStatus(t, s, id, model.StatusFailed)
	if !strings.Contains(job.LastError, "selection") {
		t.Errorf("expected selection failure, got %q", job.LastError)
	}
}

func TestSetSelectionAndOptions_OnlyWhileReady(t *testing.T) {
	cfg := testSettings(1)
	cfg.AutoStart = false
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 10}
	s, _ := newTestService(cfg, ex)
	defer s.Shutdown()

	id, _ := s.Submit("https://example.com/title/1", "")
	waitStatus(t, s, id, model.StatusReady)

	start, end := 2.0, 4.0
	if err := s.SetSelection(id, model.Selection{ChapterStart: &start, ChapterEnd: &end}); err != nil {
		t.Fatalf("set selection failed: %v", err)
	}
	if err := s.SetSelection(id, model.Selection{GroupID: "nope"}); err == nil {
		t.Error("expected unknown group to be rejected")
	}
	if err := s.SetOptions(id, map[string]any{"format": "CBZ"}); err != nil {
		t.Fatalf("set options failed: %v", err)
	}
	if err := s.SetOptions(id, map[string]any{"format": "RAR"}); err == nil {
		t.Error("expected invalid choice to be rejected")
	}
	if err := s.SetOptions(id, map[string]any{"bogus": 1}); err == nil {
		t.Error("expected unknown option key to be rejected")
	}

	if err := s.Start(id); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	job := waitStatus(t, s, id, model.StatusCompleted)

	// the narrowed selection drove the rebuilt plan
	if job.TotalChapters != 3 || job.CompletedChapters != 3 {
		t.Errorf("expected 3 chapters from narrowed selection, got %d/%d",
			job.CompletedChapters, job.TotalChapters)
	}
	if got := ex.downloadedChapters(); len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Errorf("expected chapters 2..4, got %v", got)
	}

	if err := s.SetSelection(id, model.Selection{}); err == nil {
		t.Error("expected selection change on a terminal job to fail")
	}
}

func TestStartAllReady(t *testing.T) {
	cfg := testSettings(2)
	cfg.AutoStart = false
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 1}
	s, _ := newTestService(cfg, ex)
	defer s.Shutdown()

	a, _ := s.Submit("https://example.com/title/1", "")
	b, _ := s.Submit("https://example.com/title/2", "")
	waitStatus(t, s, a, model.StatusReady)
	waitStatus(t, s, b, model.StatusReady)

	if got := s.StartAllReady(); got != 2 {
		t.Fatalf("expected 2 started, got %d", got)
	}
	waitStatus(t, s, a, model.StatusCompleted)
	waitStatus(t, s, b, model.StatusCompleted)

	if got := s.StartAllReady(); got != 0 {
		t.Errorf("expected nothing left to start, got %d", got)
	}
}

func TestRemove_OnlyTerminal(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 1, step: make(chan struct{})}
	s, _ := newTestService(testSettings(1), ex)
	defer s.Shutdown()

	id, _ := s.Submit("https://example.com/title/1", "")
	waitStatus(t, s, id, model.StatusDownloading)

	if err := s.Remove(id); err == nil {
		t.Error("expected removal of an active job to fail")
	}

	ex.step <- struct{}{}
	waitStatus(t, s, id, model.StatusCompleted)

	if err := s.Remove(id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := s.Snapshot(id); err == nil {
		t.Error("expected snapshot of a removed job to fail")
	}
}

func TestClearFinished(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 1}
	s, _ := newTestService(testSettings(2), ex)
	defer s.Shutdown()

	a, _ := s.Submit("https://example.com/title/1", "")
	b, _ := s.Submit("https://example.com/title/2", "")
	waitStatus(t, s, a, model.StatusCompleted)
	waitStatus(t, s, b, model.StatusCompleted)

	if got := s.ClearFinished(); got != 2 {
		t.Errorf("expected 2 cleared, got %d", got)
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("expected empty job list, got %d", len(s.Jobs()))
	}
}

func TestSubmitList(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 1}
	s, _ := newTestService(testSettings(2), ex)
	defer s.Shutdown()

	text := "https://example.com/title/1\n" +
		"# a comment\n" +
		"\n" +
		"https://other.com/nope\n" +
		"https://example.com/title/2\n"

	ids, err := s.SubmitList(text, "")
	if err == nil {
		t.Error("expected the unresolvable line to surface as an error")
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 submitted jobs, got %d", len(ids))
	}
	for _, id := range ids {
		waitStatus(t, s, id, model.StatusCompleted)
	}
}

func TestJobs_SubmissionOrder(t *testing.T) {
	ex := &fakeConnector{id: "ex", domain: "example.com", chapters: 1}
	s, _ := newTestService(testSettings(2), ex)
	defer s.Shutdown()

	a, _ := s.Submit("https://example.com/title/1", "")
	b, _ := s.Submit("https://example.com/title/2", "")

	jobs := s.Jobs()
	if len(jobs) != 2 || jobs[0].ID != a || jobs[1].ID != b {
		t.Errorf("expected submission order [%s %s], got %v", a, b, jobs)
	}
}
