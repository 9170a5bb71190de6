package assemble

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kerbaras/mangago/pkg/utils"
)

// comicInfo is the ComicInfo.xml metadata record most comic readers pick up
// from inside the archive.
type comicInfo struct {
	XMLName   xml.Name `xml:"ComicInfo"`
	Title     string   `xml:"Title"`
	Series    string   `xml:"Series"`
	Number    int      `xml:"Number,omitempty"`
	Writer    string   `xml:"Writer,omitempty"`
	Genre     string   `xml:"Genre,omitempty"`
	PageCount int      `xml:"PageCount"`
}

// writeCBZ packs the page images into a CBZ archive in index order. Entry
// names keep the zero-padded page numbering so any reader sorts them
// correctly regardless of filesystem. The archive is staged under a temp
// name and renamed into place once flushed.
func writeCBZ(files []string, final string, overwrite bool, meta artifactMeta) error {
	err := utils.AtomicWrite(final, overwrite, func(f *os.File) error {
		zw := zip.NewWriter(f)

		info := comicInfo{
			Title:     meta.chapter,
			Series:    meta.series,
			Number:    meta.number,
			Writer:    meta.writer,
			Genre:     meta.genre,
			PageCount: len(files),
		}
		w, err := zw.Create("ComicInfo.xml")
		if err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", "  ")
		if err := enc.Encode(info); err != nil {
			return fmt.Errorf("failed to encode ComicInfo.xml: %w", err)
		}

		for _, file := range files {
			src, err := os.Open(file)
			if err != nil {
				return err
			}
			w, err := zw.Create(filepath.Base(file))
			if err != nil {
				src.Close()
				return err
			}
			if _, err := io.Copy(w, src); err != nil {
				src.Close()
				return err
			}
			src.Close()
		}
		return zw.Close()
	})
	if err != nil {
		return &Error{Kind: IOFailure, Path: final, Err: err}
	}
	return nil
}
