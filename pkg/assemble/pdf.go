package assemble

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/kerbaras/mangago/pkg/utils"
)

// writePDF concatenates the page images into one PDF in index order. Each
// page keeps the dimensions of its image (at 72 dpi) rather than being
// forced onto a uniform form size. The document is staged in memory and
// written atomically.
func writePDF(files []string, final string, overwrite bool) error {
	var doc []byte
	for _, file := range files {
		img, err := os.ReadFile(file)
		if err != nil {
			return &Error{Kind: IOFailure, Path: file, Err: err}
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
		if err != nil {
			return &Error{Kind: IOFailure, Path: file, Err: fmt.Errorf("failed to decode image: %w", err)}
		}

		imp, err := api.Import(fmt.Sprintf("dim:%d %d, pos:full", cfg.Width, cfg.Height), types.POINTS)
		if err != nil {
			return &Error{Kind: IOFailure, Path: file, Err: err}
		}

		var rs io.ReadSeeker
		if doc != nil {
			rs = bytes.NewReader(doc)
		}
		var buf bytes.Buffer
		if err := api.ImportImages(rs, &buf, []io.Reader{bytes.NewReader(img)}, imp, nil); err != nil {
			return &Error{Kind: IOFailure, Path: file, Err: fmt.Errorf("failed to append page: %w", err)}
		}
		doc = buf.Bytes()
	}

	err := utils.AtomicWrite(final, overwrite, func(f *os.File) error {
		_, err := f.Write(doc)
		return err
	})
	if err != nil {
		return &Error{Kind: IOFailure, Path: final, Err: err}
	}
	return nil
}
