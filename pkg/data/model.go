package data

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChapterStatus tracks a chapter through the download pipeline.
// Transitions: Pending -> Fetching -> PartiallyFailed | Complete ->
// Converting -> Done | Failed. Only the worker that owns the chapter
// writes its status.
type ChapterStatus string

const (
	StatusPending         ChapterStatus = "pending"
	StatusFetching        ChapterStatus = "fetching"
	StatusPartiallyFailed ChapterStatus = "partially_failed"
	StatusComplete        ChapterStatus = "complete"
	StatusConverting      ChapterStatus = "converting"
	StatusDone            ChapterStatus = "done"
	StatusFailed          ChapterStatus = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s ChapterStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusPartiallyFailed:
		return true
	}
	return false
}

// Format selects the artifact produced for each downloaded chapter.
type Format string

const (
	FormatImages Format = "images"
	FormatPDF    Format = "pdf"
	FormatCBZ    Format = "cbz"
	FormatEPUB   Format = "epub"
)

// ParseFormat converts a user supplied format name into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatImages, FormatPDF, FormatCBZ, FormatEPUB:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Title is the top-level work being downloaded. It is resolved by a
// metadata source and never mutated by the download pipeline.
type Title struct {
	ID       string
	Name     string
	Author   string
	Genres   []string
	CoverURL string
	Source   string
	Chapters []*Chapter
}

// Chapter is an ordered sub-unit of a Title.
type Chapter struct {
	ID      string
	TitleID string
	// Index is the chapter's position within the title, starting at 1.
	// It defines artifact naming and has nothing to do with completion order.
	Index int
	Name  string
	// PageCount is 0 until the source reveals it.
	PageCount int
	// PageURLs may be empty; the downloader re-derives them from the
	// source when a chapter arrives without page metadata.
	PageURLs []string
	Status   ChapterStatus

	Downloaded bool
	FilePath   string
}

// Page is one image within a chapter. Index is 1-based and fixes the
// page's position in any artifact regardless of fetch completion order.
type Page struct {
	Index   int
	URL     string
	Data    []byte
	Err     error
	Retries int
}

// Config holds the settings for one download job. It is validated once
// and never mutated for the lifetime of the job.
type Config struct {
	OutputDir                string
	Concurrency              int
	RetriesPerPage           int
	RequestTimeout           time.Duration
	OutputFormat             Format
	OverwriteExisting        bool
	DeleteImagesAfterConvert bool
	// AllowPartial hands chapters with missing pages to the assembler
	// instead of refusing them. Off unless the user explicitly opts in.
	AllowPartial bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		OutputDir:      "downloads",
		Concurrency:    5,
		RetriesPerPage: 3,
		RequestTimeout: 30 * time.Second,
		OutputFormat:   FormatImages,
	}
}

// Validate checks the config against its allowed ranges.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.Concurrency < 1 || c.Concurrency > 20 {
		return fmt.Errorf("concurrency must be between 1 and 20, got %d", c.Concurrency)
	}
	if c.RetriesPerPage < 1 {
		return fmt.Errorf("retries per page must be at least 1, got %d", c.RetriesPerPage)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if _, err := ParseFormat(string(c.OutputFormat)); err != nil {
		return err
	}
	return nil
}

// Job is one user-initiated download request: a chapter subset of a
// single title plus an immutable configuration.
type Job struct {
	ID        string
	Title     *Title
	Chapters  []*Chapter
	Config    Config
	CreatedAt time.Time
}

// NewJob validates the selection and configuration and assigns a job ID.
func NewJob(title *Title, chapters []*Chapter, cfg Config) (*Job, error) {
	if title == nil {
		return nil, errors.New("title cannot be nil")
	}
	if len(chapters) == 0 {
		return nil, errors.New("no chapters selected")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Job{
		ID:        uuid.NewString(),
		Title:     title,
		Chapters:  chapters,
		Config:    cfg,
		CreatedAt: time.Now(),
	}, nil
}

// ChapterFailure names one chapter that did not produce an artifact,
// with a classified reason.
type ChapterFailure struct {
	ChapterID string
	Reason    string
}

// JobResult is the final report for a job.
type JobResult struct {
	JobID             string
	ChaptersSucceeded int
	ChaptersFailed    []ChapterFailure
	OutputPaths       []string
	Elapsed           time.Duration
}
