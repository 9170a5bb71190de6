package assemble

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kerbaras/mangago/pkg/data"
	"github.com/kerbaras/mangago/pkg/fetch"
	"github.com/kerbaras/mangago/pkg/utils"
)

// Assembler converts a completed chapter's page set into its final
// artifact: loose page images, a PDF, a CBZ archive or an EPUB. Artifacts
// are staged under a temporary name and renamed into place only once fully
// written, so a crash mid-assembly never leaves a half-written file at the
// final path.
type Assembler struct {
	log *slog.Logger
}

// New creates an Assembler.
func New() *Assembler {
	return &Assembler{log: slog.Default()}
}

// ChapterBaseName is the deterministic artifact name for a chapter,
// derived from its index so reruns resolve to the same path.
func ChapterBaseName(chapter *data.Chapter) string {
	return fmt.Sprintf("Chapter_%04d", chapter.Index)
}

// ArtifactPath returns the final artifact path for a chapter in the given
// format, stable across reruns.
func ArtifactPath(outputDir string, title *data.Title, chapter *data.Chapter, format data.Format) string {
	titleDir := filepath.Join(outputDir, utils.SanitizeFilename(title.Name))
	base := ChapterBaseName(chapter)
	if format == data.FormatImages {
		return filepath.Join(titleDir, base)
	}
	return filepath.Join(titleDir, base+"."+string(format))
}

// Assemble builds the chapter artifact and returns its path.
//
// Preconditions: every page carries a payload unless cfg.AllowPartial is
// set. With OverwriteExisting false an existing artifact fails the call
// with AlreadyExists and is left untouched. DeleteImagesAfterConvert
// removes the raw page files only after the artifact rename succeeded.
func (a *Assembler) Assemble(ctx context.Context, title *data.Title, chapter *data.Chapter, pages []data.Page, cfg data.Config) (string, error) {
	usable := make([]data.Page, 0, len(pages))
	for _, p := range pages {
		if p.Err == nil && len(p.Data) > 0 {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return "", &Error{Kind: IncompleteInput, Err: fmt.Errorf("chapter has no downloaded pages")}
	}
	if len(usable) < len(pages) && !cfg.AllowPartial {
		return "", &Error{
			Kind: IncompleteInput,
			Err:  fmt.Errorf("%d of %d pages missing and partial output is not allowed", len(pages)-len(usable), len(pages)),
		}
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].Index < usable[j].Index })

	titleDir := filepath.Join(cfg.OutputDir, utils.SanitizeFilename(title.Name))
	base := ChapterBaseName(chapter)
	final := ArtifactPath(cfg.OutputDir, title, chapter, cfg.OutputFormat)

	if !cfg.OverwriteExisting {
		if _, err := os.Stat(final); err == nil {
			return "", &Error{Kind: AlreadyExists, Path: final}
		}
	}
	if err := utils.EnsureDir(titleDir); err != nil {
		return "", &Error{Kind: IOFailure, Path: titleDir, Err: err}
	}

	if cfg.OutputFormat == data.FormatImages {
		return a.assembleImages(ctx, titleDir, final, usable, cfg.OverwriteExisting)
	}

	// Conversions write the raw pages next to the artifact and read them
	// back, so delete-after-convert has real files to remove.
	imgDir := filepath.Join(titleDir, base)
	files, err := writePageFiles(ctx, imgDir, usable)
	if err != nil {
		return "", err
	}

	meta := artifactMeta{
		series:  title.Name,
		chapter: chapterLabel(chapter),
		number:  chapter.Index,
		writer:  title.Author,
		genre:   strings.Join(title.Genres, ", "),
	}

	switch cfg.OutputFormat {
	case data.FormatPDF:
		err = writePDF(files, final, cfg.OverwriteExisting)
	case data.FormatCBZ:
		err = writeCBZ(files, final, cfg.OverwriteExisting, meta)
	case data.FormatEPUB:
		err = writeEPUB(files, final, cfg.OverwriteExisting, meta)
	default:
		err = &Error{Kind: IOFailure, Err: fmt.Errorf("unsupported format %q", cfg.OutputFormat)}
	}
	if err != nil {
		return "", err
	}

	if cfg.DeleteImagesAfterConvert {
		// Strictly after the artifact rename; a failed conversion keeps
		// the page files around for a rerun.
		if err := os.RemoveAll(imgDir); err != nil {
			a.log.Warn("failed to delete page images", "dir", imgDir, "err", err)
		}
	}
	return final, nil
}

// assembleImages stages the page files in a temp directory and renames it
// to the final chapter directory once every page is on disk.
func (a *Assembler) assembleImages(ctx context.Context, titleDir, final string, pages []data.Page, overwrite bool) (string, error) {
	tmpDir, err := os.MkdirTemp(titleDir, "."+filepath.Base(final)+".tmp-")
	if err != nil {
		return "", &Error{Kind: IOFailure, Path: titleDir, Err: err}
	}
	if _, err := writePageFiles(ctx, tmpDir, pages); err != nil {
		os.RemoveAll(tmpDir)
		return "", err
	}
	if overwrite {
		if err := os.RemoveAll(final); err != nil {
			os.RemoveAll(tmpDir)
			return "", &Error{Kind: IOFailure, Path: final, Err: err}
		}
	}
	if err := os.Rename(tmpDir, final); err != nil {
		os.RemoveAll(tmpDir)
		return "", &Error{Kind: IOFailure, Path: final, Err: err}
	}
	return final, nil
}

// writePageFiles writes page payloads into dir named by zero-padded index,
// returning the paths in index order.
func writePageFiles(ctx context.Context, dir string, pages []data.Page) ([]string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, &Error{Kind: IOFailure, Path: dir, Err: err}
	}
	files := make([]string, 0, len(pages))
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return nil, &Error{Kind: IOFailure, Path: dir, Err: err}
		}
		name := fmt.Sprintf("%03d%s", p.Index, fetch.Ext(p.Data))
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, p.Data, 0o644); err != nil {
			return nil, &Error{Kind: IOFailure, Path: path, Err: err}
		}
		files = append(files, path)
	}
	return files, nil
}

// ConvertDir re-assembles an already-downloaded chapter directory into the
// requested format, placing the artifact next to the directory.
func (a *Assembler) ConvertDir(ctx context.Context, chapterDir string, format data.Format, overwrite, deleteImages bool) (string, error) {
	files, err := listImageFiles(chapterDir)
	if err != nil {
		return "", &Error{Kind: IOFailure, Path: chapterDir, Err: err}
	}
	if len(files) == 0 {
		return "", &Error{Kind: IncompleteInput, Path: chapterDir, Err: fmt.Errorf("no images found")}
	}
	if err := ctx.Err(); err != nil {
		return "", &Error{Kind: IOFailure, Path: chapterDir, Err: err}
	}

	base := filepath.Base(chapterDir)
	final := filepath.Join(filepath.Dir(chapterDir), base+"."+string(format))
	if !overwrite {
		if _, err := os.Stat(final); err == nil {
			return "", &Error{Kind: AlreadyExists, Path: final}
		}
	}

	meta := artifactMeta{
		series:  filepath.Base(filepath.Dir(chapterDir)),
		chapter: base,
	}

	switch format {
	case data.FormatPDF:
		err = writePDF(files, final, overwrite)
	case data.FormatCBZ:
		err = writeCBZ(files, final, overwrite, meta)
	case data.FormatEPUB:
		err = writeEPUB(files, final, overwrite, meta)
	default:
		err = &Error{Kind: IOFailure, Err: fmt.Errorf("unsupported format %q", format)}
	}
	if err != nil {
		return "", err
	}

	if deleteImages {
		if err := os.RemoveAll(chapterDir); err != nil {
			a.log.Warn("failed to delete page images", "dir", chapterDir, "err", err)
		}
	}
	return final, nil
}

// listImageFiles returns the image files of a chapter directory sorted by
// their numeric name (1.jpg, 2.jpg, 10.jpg), falling back to lexicographic
// order for non-numeric names.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Slice(files, func(i, j int) bool {
		ni, iOK := numericStem(files[i])
		nj, jOK := numericStem(files[j])
		if iOK && jOK {
			return ni < nj
		}
		return files[i] < files[j]
	})
	return files, nil
}

func numericStem(path string) (int, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	n, err := strconv.Atoi(stem)
	return n, err == nil
}

type artifactMeta struct {
	series  string
	chapter string
	number  int
	writer  string
	genre   string
}

func chapterLabel(chapter *data.Chapter) string {
	if chapter.Name != "" {
		return fmt.Sprintf("Chapter %d: %s", chapter.Index, chapter.Name)
	}
	return fmt.Sprintf("Chapter %d", chapter.Index)
}
