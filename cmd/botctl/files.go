package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/botdash/botdash/internal/intake"
)

// localFiles describes files on disk for the intake policy. The media type
// is sniffed from content, not taken from the extension, and declared
// without parameters such as charset.
func localFiles(paths []string) ([]intake.File, error) {
	out := make([]intake.File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		mt, err := mimetype.DetectFile(p)
		if err != nil {
			return nil, fmt.Errorf("detect type of %s: %w", p, err)
		}
		path := p
		out = append(out, intake.File{
			Name:        filepath.Base(p),
			Size:        info.Size(),
			ContentType: essence(mt.String()),
			Open:        func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return out, nil
}

func essence(mediaType string) string {
	base, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return mediaType
	}
	return base
}
