package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangago/pkg/assemble"
	"github.com/kerbaras/mangago/pkg/data"
)

var convertCmd = &cobra.Command{
	Use:   "convert [title-dir]",
	Short: "Convert downloaded chapter directories",
	Long:  "Convert already-downloaded chapter image directories into PDF, CBZ or EPUB artifacts",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		titleDir := args[0]

		raw, _ := cmd.Flags().GetString("format")
		format, err := data.ParseFormat(raw)
		cobra.CheckErr(err)
		if format == data.FormatImages {
			cobra.CheckErr(fmt.Errorf("convert requires a target format: pdf, cbz or epub"))
		}
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		deleteImages, _ := cmd.Flags().GetBool("delete-images")

		chapterDirs, err := listChapterDirs(titleDir)
		cobra.CheckErr(err)
		if len(chapterDirs) == 0 {
			fmt.Println("No chapter directories found.")
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		assembler := assemble.New()
		converted, skipped, failed := 0, 0, 0
		for _, dir := range chapterDirs {
			if ctx.Err() != nil {
				break
			}
			path, err := assembler.ConvertDir(ctx, dir, format, overwrite, deleteImages)
			switch {
			case err == nil:
				converted++
				fmt.Printf("  %s -> %s\n", filepath.Base(dir), path)
			case assemble.IsAlreadyExists(err):
				skipped++
				fmt.Printf("  %s: already converted, skipping\n", filepath.Base(dir))
			default:
				failed++
				fmt.Printf("  %s: %v\n", filepath.Base(dir), err)
			}
		}

		fmt.Printf("\n%d converted, %d skipped, %d failed\n", converted, skipped, failed)
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	convertCmd.Flags().StringP("format", "f", "pdf", "target format: pdf, cbz or epub")
	convertCmd.Flags().Bool("overwrite", false, "overwrite existing artifacts")
	convertCmd.Flags().Bool("delete-images", false, "delete page images after a successful conversion")
}

// listChapterDirs returns the subdirectories of titleDir in name order. If
// titleDir itself contains images rather than subdirectories, it is treated
// as a single chapter.
func listChapterDirs(titleDir string) ([]string, error) {
	info, err := os.Stat(titleDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("not a directory")
	}

	entries, err := os.ReadDir(titleDir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(titleDir, e.Name()))
		}
	}
	if len(dirs) == 0 {
		return []string{titleDir}, nil
	}
	sort.Strings(dirs)
	return dirs, nil
}
