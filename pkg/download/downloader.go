package download

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/kerbaras/mangago/pkg/data"
	"github.com/kerbaras/mangago/pkg/fetch"
	"github.com/kerbaras/mangago/pkg/progress"
)

// PageFetcher fetches one page image with a timeout.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// PageSource lazily resolves the page URLs of a chapter when the metadata
// collaborator did not report them up front.
type PageSource interface {
	GetPages(ctx context.Context, title *data.Title, chapter *data.Chapter) ([]string, error)
}

// ChapterResult holds the outcome of downloading one chapter. Pages keep
// their source index order regardless of fetch completion order.
type ChapterResult struct {
	Chapter *data.Chapter
	Pages   []data.Page
	Bytes   int64
	Err     error
}

// FailedPages returns the pages that did not download.
func (r *ChapterResult) FailedPages() []data.Page {
	var failed []data.Page
	for _, p := range r.Pages {
		if p.Err != nil {
			failed = append(failed, p)
		}
	}
	return failed
}

// Downloader fetches every page of one chapter under a bounded sub-pool,
// retrying transient failures with capped exponential backoff.
type Downloader struct {
	fetcher     PageFetcher
	source      PageSource
	tracker     *progress.Tracker
	pageWorkers int
	backoffBase time.Duration
	backoffMax  time.Duration
	log         *slog.Logger
}

// NewDownloader creates a chapter downloader. pageWorkers bounds the
// number of in-flight page fetches for one chapter. source may be nil when
// chapters always arrive with page URLs attached.
func NewDownloader(fetcher PageFetcher, source PageSource, tracker *progress.Tracker, pageWorkers int) *Downloader {
	if pageWorkers < 1 {
		pageWorkers = 1
	}
	return &Downloader{
		fetcher:     fetcher,
		source:      source,
		tracker:     tracker,
		pageWorkers: pageWorkers,
		backoffBase: 500 * time.Millisecond,
		backoffMax:  8 * time.Second,
		log:         slog.Default(),
	}
}

// DownloadChapter fetches all pages of one chapter. The chapter ends up
// Complete when every page succeeded, PartiallyFailed when at least one
// page failed after its retries, Failed when the chapter never got off the
// ground. One page failing never aborts its siblings.
func (d *Downloader) DownloadChapter(ctx context.Context, title *data.Title, chapter *data.Chapter, cfg data.Config) *ChapterResult {
	res := &ChapterResult{Chapter: chapter}
	d.setStatus(chapter, data.StatusFetching)

	urls := chapter.PageURLs
	if len(urls) == 0 && d.source != nil {
		var err error
		urls, err = d.source.GetPages(ctx, title, chapter)
		if err != nil {
			d.setStatus(chapter, data.StatusFailed)
			res.Err = &ChapterError{ChapterID: chapter.ID, Kind: d.classify(ctx), Err: fmt.Errorf("failed to resolve pages: %w", err)}
			return res
		}
	}
	if len(urls) == 0 {
		d.setStatus(chapter, data.StatusFailed)
		res.Err = &ChapterError{ChapterID: chapter.ID, Kind: FailPartial, Err: fmt.Errorf("no pages found for chapter")}
		return res
	}
	chapter.PageCount = len(urls)

	res.Pages = make([]data.Page, len(urls))
	var bytes atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.pageWorkers)
	for i, pageURL := range urls {
		res.Pages[i] = data.Page{Index: i + 1, URL: pageURL}
		p := &res.Pages[i]
		g.Go(func() error {
			p.Data, p.Retries, p.Err = d.fetchPage(gctx, p.URL, cfg)
			if p.Err != nil {
				d.record(progress.Event{
					Type:        progress.EventPageFailed,
					ChapterID:   chapter.ID,
					ChapterName: chapter.Name,
					PageIndex:   p.Index,
					TotalPages:  len(urls),
					Err:         p.Err,
				})
				d.log.Warn("page failed", "chapter", chapter.ID, "page", p.Index, "retries", p.Retries, "err", p.Err)
				return nil
			}
			n := int64(len(p.Data))
			bytes.Add(n)
			d.record(progress.Event{
				Type:        progress.EventPageDone,
				ChapterID:   chapter.ID,
				ChapterName: chapter.Name,
				PageIndex:   p.Index,
				TotalPages:  len(urls),
				Bytes:       n,
			})
			return nil
		})
	}
	g.Wait()
	res.Bytes = bytes.Load()

	if ctx.Err() != nil {
		d.setStatus(chapter, data.StatusFailed)
		res.Err = &ChapterError{ChapterID: chapter.ID, Kind: d.classify(ctx), Err: ctx.Err()}
		return res
	}

	if failed := res.FailedPages(); len(failed) > 0 {
		d.setStatus(chapter, data.StatusPartiallyFailed)
		res.Err = &ChapterError{
			ChapterID: chapter.ID,
			Kind:      FailPartial,
			Err:       fmt.Errorf("%d of %d pages failed", len(failed), len(res.Pages)),
		}
		return res
	}

	d.setStatus(chapter, data.StatusComplete)
	return res
}

// fetchPage runs one page through the retry policy. Only transient
// failures are retried; a permanent or invalid-content failure surfaces
// after the first attempt. Returns the attempts consumed either way.
func (d *Downloader) fetchPage(ctx context.Context, url string, cfg data.Config) ([]byte, int, error) {
	var body []byte
	var attempts int
	err := retry.Do(
		func() error {
			attempts++
			b, err := d.fetcher.Fetch(ctx, url, cfg.RequestTimeout)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(cfg.RetriesPerPage)),
		retry.Delay(d.backoffBase),
		retry.MaxDelay(d.backoffMax),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(fetch.IsTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, attempts, err
	}
	return body, attempts, nil
}

func (d *Downloader) setStatus(chapter *data.Chapter, status data.ChapterStatus) {
	chapter.Status = status
	d.record(progress.Event{
		Type:        progress.EventChapterStatus,
		ChapterID:   chapter.ID,
		ChapterName: chapter.Name,
		TotalPages:  chapter.PageCount,
		Status:      status,
	})
}

func (d *Downloader) record(ev progress.Event) {
	if d.tracker != nil {
		d.tracker.Record(ev)
	}
}

func (d *Downloader) classify(ctx context.Context) FailureKind {
	switch {
	case ctx.Err() == context.Canceled:
		return FailCancelled
	case ctx.Err() == context.DeadlineExceeded:
		return FailTimeout
	default:
		return FailPartial
	}
}
