package task

import (
	"log"
	"time"

	"github.com/mangadl/manga-downloader/internal/event"
	"github.com/mangadl/manga-downloader/internal/platform"
)

// jobSink is the progress sink handed to a connector's Execute. It updates
// the job's telemetry under the service lock and republishes every report on
// the event bus. A report with pageIndex == pageTotal marks the chapter as
// fully written, which is what the resume logic keys on.
type jobSink struct {
	s     *Service
	entry *jobEntry

	startedAt  time.Time
	totalBytes int64
}

func newJobSink(s *Service, entry *jobEntry) *jobSink {
	return &jobSink{s: s, entry: entry, startedAt: time.Now()}
}

func (k *jobSink) Progress(chapter float64, pageIndex, pageTotal int, bytes int64) {
	k.s.mu.Lock()
	job := k.entry.job

	job.CurrentChapter = platform.ChapterDirName(chapter)
	k.totalBytes += bytes
	if elapsed := time.Since(k.startedAt).Seconds(); elapsed > 0 && k.totalBytes > 0 {
		job.Speed = platform.FormatSpeed(float64(k.totalBytes) / elapsed)
	}

	chapterDone := pageTotal > 0 && pageIndex == pageTotal
	if chapterDone && job.CompletedChapters < job.TotalChapters {
		job.CompletedChapters++
	}

	if job.TotalChapters > 0 {
		partial := 0.0
		if !chapterDone && pageTotal > 0 {
			partial = float64(pageIndex) / float64(pageTotal)
		}
		progress := (float64(job.CompletedChapters) + partial) / float64(job.TotalChapters)
		if progress > 1 {
			progress = 1
		}
		job.Progress = progress
	}

	jobID := job.ID
	k.s.mu.Unlock()

	if k.s.bus != nil {
		k.s.bus.Publish(event.NewProgress(jobID, chapter, pageIndex, pageTotal, bytes))
	}
}

func (k *jobSink) Log(level, message string) {
	k.s.mu.Lock()
	jobID := k.entry.job.ID
	k.s.mu.Unlock()

	log.Printf("[%s] %s", jobID, message)
	if k.s.bus != nil {
		k.s.bus.Publish(event.NewLog(jobID, level, message))
	}
}
