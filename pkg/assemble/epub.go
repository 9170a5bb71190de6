package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"

	"github.com/kerbaras/mangago/pkg/utils"
)

// writeEPUB builds a single-chapter EPUB with one section per page image,
// in index order. Written atomically via WriteTo into a staged temp file.
func writeEPUB(files []string, final string, overwrite bool, meta artifactMeta) error {
	name := meta.series
	if meta.chapter != "" {
		name = fmt.Sprintf("%s - %s", meta.series, meta.chapter)
	}
	e, err := epub.NewEpub(name)
	if err != nil {
		return &Error{Kind: IOFailure, Path: final, Err: err}
	}
	if meta.writer != "" {
		e.SetAuthor(meta.writer)
	}
	e.SetLang("en")

	var body strings.Builder
	body.WriteString(fmt.Sprintf("<h1>%s</h1>\n", meta.chapter))
	for _, file := range files {
		internal, err := e.AddImage(file, filepath.Base(file))
		if err != nil {
			return &Error{Kind: IOFailure, Path: file, Err: fmt.Errorf("failed to add image: %w", err)}
		}
		body.WriteString(fmt.Sprintf(`<div class="page"><img src="%s" alt="%s"/></div>`+"\n", internal, filepath.Base(file)))
	}
	if _, err := e.AddSection(body.String(), meta.chapter, "", ""); err != nil {
		return &Error{Kind: IOFailure, Path: final, Err: fmt.Errorf("failed to add section: %w", err)}
	}

	err = utils.AtomicWrite(final, overwrite, func(f *os.File) error {
		_, err := e.WriteTo(f)
		return err
	})
	if err != nil {
		return &Error{Kind: IOFailure, Path: final, Err: err}
	}
	return nil
}
