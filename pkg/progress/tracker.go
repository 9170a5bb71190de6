package progress

import (
	"sync"
	"time"

	"github.com/kerbaras/mangago/pkg/data"
)

// EventType discriminates progress events.
type EventType int

const (
	EventChapterStatus EventType = iota
	EventPageDone
	EventPageFailed
)

// Event is one page outcome or chapter-state transition. Events carry the
// chapter identity so the tracker can attribute them regardless of the
// order workers deliver them in.
type Event struct {
	Type        EventType
	ChapterID   string
	ChapterName string
	PageIndex   int
	TotalPages  int
	Bytes       int64
	Status      data.ChapterStatus
	Err         error
}

// ChapterSnapshot is the read-only progress view of one chapter.
type ChapterSnapshot struct {
	ID         string
	Name       string
	PagesDone  int
	PagesFail  int
	PagesTotal int
	Bytes      int64
	Status     data.ChapterStatus
}

// Done reports whether the chapter reached a terminal state.
func (c ChapterSnapshot) Done() bool { return c.Status.Terminal() }

// Snapshot is a job-level progress view, recomputed on each event.
type Snapshot struct {
	// Chapters are ordered by first event, not by completion.
	Chapters       []ChapterSnapshot
	ChaptersDone   int
	ChaptersFailed int
	ChaptersTotal  int
	PagesDone      int
	PagesFailed    int
	Bytes          int64
	Elapsed        time.Duration
	BytesPerSec    float64
}

type chapterState struct {
	id         string
	name       string
	pagesDone  int
	pagesFail  int
	pagesTotal int
	bytes      int64
	status     data.ChapterStatus
}

// Tracker merges per-page and per-chapter events from many workers into
// job-level statistics. Every mutation happens under one mutex, so
// concurrent Record calls cannot interleave into an inconsistent total.
type Tracker struct {
	mu       sync.Mutex
	start    time.Time
	total    int
	order    []string
	chapters map[string]*chapterState
	updates  chan Snapshot
	closed   bool
}

// NewTracker creates a tracker expecting totalChapters chapters.
func NewTracker(totalChapters int) *Tracker {
	return &Tracker{
		start:    time.Now(),
		total:    totalChapters,
		chapters: make(map[string]*chapterState),
		updates:  make(chan Snapshot, 64),
	}
}

// Record merges one event. Safe for concurrent use.
func (t *Tracker) Record(ev Event) {
	t.mu.Lock()
	st, ok := t.chapters[ev.ChapterID]
	if !ok {
		st = &chapterState{id: ev.ChapterID, status: data.StatusPending}
		t.chapters[ev.ChapterID] = st
		t.order = append(t.order, ev.ChapterID)
	}
	if ev.ChapterName != "" {
		st.name = ev.ChapterName
	}
	if ev.TotalPages > 0 {
		st.pagesTotal = ev.TotalPages
	}
	switch ev.Type {
	case EventPageDone:
		st.pagesDone++
		st.bytes += ev.Bytes
	case EventPageFailed:
		st.pagesFail++
	case EventChapterStatus:
		st.status = ev.Status
	}
	snap := t.snapshotLocked()
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return
	}
	// Non-blocking: a slow observer drops intermediate snapshots but can
	// never stall a worker.
	select {
	case t.updates <- snap:
	default:
	}
}

// Snapshot returns the current job-level view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Updates exposes a stream of snapshots for an external observer. The
// channel is closed by Close once the job has finished.
func (t *Tracker) Updates() <-chan Snapshot {
	return t.updates
}

// Close ends the update stream. Call only after all workers have stopped
// recording.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.updates)
}

func (t *Tracker) snapshotLocked() Snapshot {
	snap := Snapshot{
		Chapters:      make([]ChapterSnapshot, 0, len(t.order)),
		ChaptersTotal: t.total,
		Elapsed:       time.Since(t.start),
	}
	for _, id := range t.order {
		st := t.chapters[id]
		snap.Chapters = append(snap.Chapters, ChapterSnapshot{
			ID:         st.id,
			Name:       st.name,
			PagesDone:  st.pagesDone,
			PagesFail:  st.pagesFail,
			PagesTotal: st.pagesTotal,
			Bytes:      st.bytes,
			Status:     st.status,
		})
		snap.PagesDone += st.pagesDone
		snap.PagesFailed += st.pagesFail
		snap.Bytes += st.bytes
		switch st.status {
		case data.StatusDone:
			snap.ChaptersDone++
		case data.StatusFailed, data.StatusPartiallyFailed:
			snap.ChaptersFailed++
		}
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.BytesPerSec = float64(snap.Bytes) / secs
	}
	return snap
}
