package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// YouTube downloads progressive MP4 streams through the native client, so no
// external binary or muxing is needed for YouTube links.
type YouTube struct {
	client  *youtube.Client
	maxSize int64
}

func NewYouTube(client *youtube.Client, maxSize int64) *YouTube {
	if client == nil {
		client = &youtube.Client{}
	}
	return &YouTube{client: client, maxSize: maxSize}
}

func (d *YouTube) Download(ctx context.Context, url, dest string) error {
	video, err := d.client.GetVideoContext(ctx, url)
	if err != nil {
		return fmt.Errorf("youtube metadata: %w", err)
	}

	format, ok := pickFormat(video, d.maxSize)
	if !ok {
		return fmt.Errorf("youtube %s: %w", video.ID, ErrNoFormat)
	}

	stream, _, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("youtube stream: %w", err)
	}
	defer stream.Close()

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, stream); err != nil {
		f.Close()
		return fmt.Errorf("youtube download %s: %w", video.ID, err)
	}
	return f.Close()
}

// pickFormat chooses the highest-bitrate MP4 with both audio and video whose
// estimated size fits maxSize.
func pickFormat(video *youtube.Video, maxSize int64) (*youtube.Format, bool) {
	var best *youtube.Format
	formats := video.Formats.WithAudioChannels()
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "video/mp4") || f.QualityLabel == "" {
			continue
		}
		size := f.ContentLength
		if size == 0 {
			size = int64(f.Bitrate/8) * int64(video.Duration.Seconds())
		}
		if maxSize > 0 && size > maxSize {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best, best != nil
}
