// Package downloader fetches the media behind a supported link into a local file.
package downloader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupported = errors.New("unsupported link")
	ErrNoFormat    = errors.New("no suitable format")
)

// Cleanup removes dest and every sibling yt-dlp may leave next to it: files
// sharing dest as a prefix (".part", ".ytdl") and per-format fragments that
// replace the extension ("video.f137.mp4").
func Cleanup(dest string) error {
	stem := strings.TrimSuffix(dest, filepath.Ext(dest))

	seen := make(map[string]struct{})
	var errs []error
	for _, pattern := range []string{escapeGlob(dest) + "*", escapeGlob(stem) + ".*"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return err
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func escapeGlob(p string) string {
	out := make([]rune, 0, len(p))
	for _, r := range p {
		switch r {
		case '*', '?', '[', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
