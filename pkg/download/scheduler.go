package download

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kerbaras/mangago/pkg/assemble"
	"github.com/kerbaras/mangago/pkg/data"
	"github.com/kerbaras/mangago/pkg/progress"
)

// Assembler turns a completed chapter's page set into its final artifact
// and returns the artifact path.
type Assembler interface {
	Assemble(ctx context.Context, title *data.Title, chapter *data.Chapter, pages []data.Page, cfg data.Config) (string, error)
}

// Scheduler runs chapter downloads under a global concurrency bound.
// Chapters are dispatched in list order to a fixed pool of workers; each
// worker downloads a chapter synchronously and hands it to the assembler.
type Scheduler struct {
	fetcher   PageFetcher
	source    PageSource
	assembler Assembler
	tracker   *progress.Tracker
	log       *slog.Logger
}

// NewScheduler wires the pipeline stages together. source may be nil when
// chapters carry their page URLs already.
func NewScheduler(fetcher PageFetcher, source PageSource, assembler Assembler, tracker *progress.Tracker) *Scheduler {
	return &Scheduler{
		fetcher:   fetcher,
		source:    source,
		assembler: assembler,
		tracker:   tracker,
		log:       slog.Default(),
	}
}

type outcome struct {
	chapter *data.Chapter
	path    string
	err     error
}

// RunJob downloads and assembles every chapter of the job. Chapter
// failures are isolated: one chapter failing never aborts its siblings.
// On cancellation no new chapters are dispatched, in-flight fetches abort
// within their timeout, finished chapters keep their artifacts, and
// ErrCancelled is returned alongside the partial result.
func (s *Scheduler) RunJob(ctx context.Context, job *data.Job) (*data.JobResult, error) {
	start := time.Now()

	chapterWorkers := job.Config.Concurrency
	if chapterWorkers > len(job.Chapters) {
		chapterWorkers = len(job.Chapters)
	}
	// Page parallelism is derived from the global setting so that
	// chapterWorkers * pageWorkers never exceeds Config.Concurrency.
	pageWorkers := job.Config.Concurrency / chapterWorkers
	if pageWorkers < 1 {
		pageWorkers = 1
	}

	dl := NewDownloader(s.fetcher, s.source, s.tracker, pageWorkers)
	s.log.Info("starting job",
		"job", job.ID,
		"chapters", len(job.Chapters),
		"chapter_workers", chapterWorkers,
		"page_workers", pageWorkers,
		"format", job.Config.OutputFormat,
	)

	queue := make(chan *data.Chapter)
	out := make(chan outcome, len(job.Chapters))

	var wg sync.WaitGroup
	for i := 0; i < chapterWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chapter := range queue {
				out <- s.processChapter(ctx, dl, job, chapter)
			}
		}()
	}

	// Dispatch follows list order; completion order is up to the network.
dispatch:
	for _, chapter := range job.Chapters {
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- chapter:
		}
	}
	close(queue)
	wg.Wait()
	close(out)

	result := &data.JobResult{JobID: job.ID}
	for oc := range out {
		if oc.err != nil {
			result.ChaptersFailed = append(result.ChaptersFailed, data.ChapterFailure{
				ChapterID: oc.chapter.ID,
				Reason:    failureReason(oc.err),
			})
			continue
		}
		result.ChaptersSucceeded++
		result.OutputPaths = append(result.OutputPaths, oc.path)
	}
	result.Elapsed = time.Since(start)

	if ctx.Err() != nil {
		s.log.Info("job cancelled", "job", job.ID, "succeeded", result.ChaptersSucceeded)
		return result, ErrCancelled
	}
	s.log.Info("job finished",
		"job", job.ID,
		"succeeded", result.ChaptersSucceeded,
		"failed", len(result.ChaptersFailed),
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// processChapter owns the chapter from download through assembly. Status
// writes happen only here and in the downloader, never concurrently.
func (s *Scheduler) processChapter(ctx context.Context, dl *Downloader, job *data.Job, chapter *data.Chapter) outcome {
	res := dl.DownloadChapter(ctx, job.Title, chapter, job.Config)
	if res.Err != nil {
		partial := chapter.Status == data.StatusPartiallyFailed
		if !(partial && job.Config.AllowPartial && ctx.Err() == nil) {
			return outcome{chapter: chapter, err: res.Err}
		}
		s.log.Warn("assembling partial chapter", "chapter", chapter.ID, "missing", len(res.FailedPages()))
	}
	if ctx.Err() != nil {
		return outcome{chapter: chapter, err: &ChapterError{ChapterID: chapter.ID, Kind: FailCancelled, Err: ctx.Err()}}
	}

	s.setStatus(chapter, data.StatusConverting)
	path, err := s.assembler.Assemble(ctx, job.Title, chapter, res.Pages, job.Config)
	if err != nil {
		s.setStatus(chapter, data.StatusFailed)
		return outcome{chapter: chapter, err: err}
	}
	chapter.Downloaded = true
	chapter.FilePath = path
	s.setStatus(chapter, data.StatusDone)
	return outcome{chapter: chapter, path: path}
}

func (s *Scheduler) setStatus(chapter *data.Chapter, status data.ChapterStatus) {
	chapter.Status = status
	if s.tracker != nil {
		s.tracker.Record(progress.Event{
			Type:        progress.EventChapterStatus,
			ChapterID:   chapter.ID,
			ChapterName: chapter.Name,
			TotalPages:  chapter.PageCount,
			Status:      status,
		})
	}
}

// failureReason maps a classified error onto the reason string reported in
// the JobResult. Raw low-level faults never reach the report unclassified.
func failureReason(err error) string {
	var ce *ChapterError
	if errors.As(err, &ce) {
		return string(ce.Kind)
	}
	var ae *assemble.Error
	if errors.As(err, &ae) {
		return ae.Kind.String()
	}
	return "failed"
}
