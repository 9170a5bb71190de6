package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangago/pkg/app"
	"github.com/kerbaras/mangago/pkg/assemble"
	"github.com/kerbaras/mangago/pkg/data"
	"github.com/kerbaras/mangago/pkg/download"
	"github.com/kerbaras/mangago/pkg/fetch"
	"github.com/kerbaras/mangago/pkg/progress"
	"github.com/kerbaras/mangago/pkg/sources"
)

var downloadCmd = &cobra.Command{
	Use:   "download [title-id]",
	Short: "Download manga chapters",
	Long:  "Download a title's chapters and assemble each into the configured output format",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		titleID := args[0]

		cfg := appCfg.Download
		if cmd.Flags().Changed("output") {
			cfg.OutputDir, _ = cmd.Flags().GetString("output")
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}
		if cmd.Flags().Changed("format") {
			raw, _ := cmd.Flags().GetString("format")
			format, err := data.ParseFormat(raw)
			cobra.CheckErr(err)
			cfg.OutputFormat = format
		}
		if cmd.Flags().Changed("overwrite") {
			cfg.OverwriteExisting, _ = cmd.Flags().GetBool("overwrite")
		}
		if cmd.Flags().Changed("delete-images") {
			cfg.DeleteImagesAfterConvert, _ = cmd.Flags().GetBool("delete-images")
		}
		if cmd.Flags().Changed("allow-partial") {
			cfg.AllowPartial, _ = cmd.Flags().GetBool("allow-partial")
		}
		plain, _ := cmd.Flags().GetBool("plain")
		chaptersFlag, _ := cmd.Flags().GetString("chapters")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		source := sources.NewMangaDexWithURL(appCfg.SourceURL)

		title, err := source.GetTitle(ctx, titleID)
		cobra.CheckErr(err)

		chapters, err := source.GetChapters(ctx, title)
		cobra.CheckErr(err)
		if len(chapters) == 0 {
			fmt.Println("No chapters found.")
			return
		}

		selected, err := filterChapters(chapters, chaptersFlag)
		cobra.CheckErr(err)

		job, err := data.NewJob(title, selected, cfg)
		cobra.CheckErr(err)

		fmt.Printf("Downloading %q: %d chapters -> %s (%s)\n", title.Name, len(selected), cfg.OutputDir, cfg.OutputFormat)

		tracker := progress.NewTracker(len(selected))
		scheduler := download.NewScheduler(fetch.NewFetcher(), source, assemble.New(), tracker)

		jobCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var result *data.JobResult
		var runErr error
		done := make(chan struct{})
		go func() {
			defer close(done)
			result, runErr = scheduler.RunJob(jobCtx, job)
			tracker.Close()
		}()

		if plain {
			reportPlain(tracker)
		} else {
			if err := app.RunDownloadUI(title.Name, tracker, cancel); err != nil {
				// Keep draining so the pipeline never blocks on a dead UI.
				reportPlain(tracker)
			}
		}
		<-done

		if errors.Is(runErr, download.ErrCancelled) {
			fmt.Println("\nDownload cancelled.")
		} else {
			cobra.CheckErr(runErr)
		}

		recordLibrary(title, selected)
		printSummary(result)
	},
}

func init() {
	downloadCmd.Flags().StringP("chapters", "c", "", "chapter range to download (e.g. 1-10)")
	downloadCmd.Flags().StringP("format", "f", "", "output format: images, pdf, cbz or epub")
	downloadCmd.Flags().StringP("output", "o", "", "output directory")
	downloadCmd.Flags().IntP("concurrency", "n", 0, "global concurrency bound (1-20)")
	downloadCmd.Flags().Bool("overwrite", false, "overwrite existing artifacts")
	downloadCmd.Flags().Bool("delete-images", false, "delete page images after a successful conversion")
	downloadCmd.Flags().Bool("allow-partial", false, "assemble chapters even when some pages failed")
	downloadCmd.Flags().Bool("plain", false, "line-based progress output instead of the TUI")
}

// filterChapters applies an optional "start-end" index range.
func filterChapters(chapters []*data.Chapter, rangeFlag string) ([]*data.Chapter, error) {
	if rangeFlag == "" {
		return chapters, nil
	}
	parts := strings.Split(rangeFlag, "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid chapter range %q, use start-end (e.g. 1-10)", rangeFlag)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid chapter range %q: %w", rangeFlag, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid chapter range %q: %w", rangeFlag, err)
	}

	var selected []*data.Chapter
	for _, ch := range chapters {
		if ch.Index >= start && ch.Index <= end {
			selected = append(selected, ch)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no chapters in range %d-%d", start, end)
	}
	return selected, nil
}

// reportPlain prints one line per chapter state change.
func reportPlain(tracker *progress.Tracker) {
	reported := make(map[string]data.ChapterStatus)
	for snap := range tracker.Updates() {
		for _, ch := range snap.Chapters {
			if reported[ch.ID] == ch.Status {
				continue
			}
			reported[ch.ID] = ch.Status
			name := ch.Name
			if name == "" {
				name = ch.ID
			}
			if ch.PagesTotal > 0 {
				fmt.Printf("  %s: %s (%d/%d pages)\n", name, ch.Status, ch.PagesDone, ch.PagesTotal)
			} else {
				fmt.Printf("  %s: %s\n", name, ch.Status)
			}
		}
	}
}

// recordLibrary saves the title and chapter download state. Failures here
// never fail the download itself.
func recordLibrary(title *data.Title, chapters []*data.Chapter) {
	repo, err := data.NewRepository(appCfg.LibraryPath)
	if err != nil {
		fmt.Printf("warning: could not open library: %v\n", err)
		return
	}
	defer repo.Close()

	if err := repo.SaveTitle(title); err != nil {
		fmt.Printf("warning: could not save title: %v\n", err)
		return
	}
	for _, ch := range chapters {
		if err := repo.SaveChapter(ch); err != nil {
			fmt.Printf("warning: could not save chapter %s: %v\n", ch.ID, err)
		}
	}
}

func printSummary(result *data.JobResult) {
	if result == nil {
		return
	}
	fmt.Printf("\n%d chapter(s) succeeded, %d failed (%s)\n",
		result.ChaptersSucceeded, len(result.ChaptersFailed), result.Elapsed.Round(time.Second))
	for _, f := range result.ChaptersFailed {
		fmt.Printf("  failed: %s (%s)\n", f.ChapterID, f.Reason)
	}
	for _, p := range result.OutputPaths {
		fmt.Printf("  %s\n", p)
	}
}
