package app

import (
	"context"
	"fmt"
	"strings"

	bubbles "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/mangago/pkg/app/styles"
	"github.com/kerbaras/mangago/pkg/progress"
)

type snapshotMsg progress.Snapshot

type streamClosedMsg struct{}

// DownloadModel renders live job progress from tracker snapshots.
type DownloadModel struct {
	title   string
	updates <-chan progress.Snapshot
	cancel  context.CancelFunc
	bar     bubbles.Model
	snap    progress.Snapshot
	done    bool
}

// NewDownloadModel creates a model fed by the tracker's update stream.
// cancel is invoked when the user interrupts the download.
func NewDownloadModel(title string, updates <-chan progress.Snapshot, cancel context.CancelFunc) DownloadModel {
	return DownloadModel{
		title:   title,
		updates: updates,
		cancel:  cancel,
		bar:     bubbles.New(bubbles.WithDefaultGradient()),
	}
}

func (m DownloadModel) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m DownloadModel) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.updates
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m DownloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = progress.Snapshot(msg)
		return m, m.waitForSnapshot()
	case streamClosedMsg:
		m.done = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 8
		if m.bar.Width > 60 {
			m.bar.Width = 60
		}
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}
	}
	return m, nil
}

func (m DownloadModel) View() string {
	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("Downloading %s", m.title)))
	b.WriteString("\n")

	snap := m.snap
	var pct float64
	if snap.ChaptersTotal > 0 {
		pct = float64(snap.ChaptersDone+snap.ChaptersFailed) / float64(snap.ChaptersTotal)
	}
	b.WriteString(m.bar.ViewAs(pct))
	b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("  %d/%d chapters, %s",
		snap.ChaptersDone, snap.ChaptersTotal, formatBytes(snap.Bytes))))
	b.WriteString("\n\n")

	for _, ch := range snap.Chapters {
		line := ch.Name
		if line == "" {
			line = ch.ID
		}
		if ch.PagesTotal > 0 {
			line = fmt.Sprintf("%s  %d/%d pages", line, ch.PagesDone, ch.PagesTotal)
		}
		b.WriteString(styles.TextStyle.Render(line))
		b.WriteString("  ")
		b.WriteString(styles.StatusStyle(ch.Status).Render(string(ch.Status)))
		b.WriteString("\n")
	}

	b.WriteString(styles.HelpStyle.Render("press q to cancel"))
	b.WriteString("\n")
	return b.String()
}

// RunDownloadUI blocks rendering progress until the tracker stream closes.
func RunDownloadUI(title string, tracker *progress.Tracker, cancel context.CancelFunc) error {
	p := tea.NewProgram(NewDownloadModel(title, tracker.Updates(), cancel))
	_, err := p.Run()
	return err
}

func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
