package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// waitDelay bounds how long Wait keeps reading pipes after the process is killed.
const waitDelay = 2 * time.Second

var ytdlpErrorRe = regexp.MustCompile(`(?i)ERROR[:\s]+(.+?)(?:\n|$)`)

// YtDlp shells out to the yt-dlp binary.
type YtDlp struct {
	Path   string
	Format string
	logger *zerolog.Logger
}

func NewYtDlp(path, format string, logger *zerolog.Logger) *YtDlp {
	return &YtDlp{Path: path, Format: format, logger: logger}
}

func (d *YtDlp) args(url, dest string) []string {
	return []string{
		"--no-playlist",
		"--no-progress",
		"--no-part",
		"-f", d.Format,
		"--merge-output-format", "mp4",
		"-o", dest,
		url,
	}
}

func (d *YtDlp) Download(ctx context.Context, url, dest string) error {
	cmd := exec.CommandContext(ctx, d.Path, d.args(url, dest)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("yt-dlp: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := "download failed"
			if m := ytdlpErrorRe.FindStringSubmatch(stderr.String()); len(m) > 1 {
				msg = strings.TrimSpace(m[1])
			}
			d.logger.Debug().Int("exit_code", exitErr.ExitCode()).Str("stderr", stderr.String()).Msg("yt-dlp failed")
			return fmt.Errorf("yt-dlp: %s", msg)
		}
		return fmt.Errorf("failed to start yt-dlp: %w", err)
	}
	return nil
}
