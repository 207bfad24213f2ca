package downloader

import (
	"context"
	"fmt"

	"clipstore/internal/domain"
	"clipstore/internal/links"

	"github.com/rs/zerolog"
)

// Router sends YouTube links to the native client and everything else to
// yt-dlp. A native failure is retried once through yt-dlp.
type Router struct {
	native  domain.Downloader
	generic domain.Downloader
	logger  *zerolog.Logger
}

// NewRouter builds a router; native may be nil to send every link to generic.
func NewRouter(native, generic domain.Downloader, logger *zerolog.Logger) *Router {
	return &Router{native: native, generic: generic, logger: logger}
}

func (r *Router) Download(ctx context.Context, url, dest string) error {
	platform := links.PlatformOf(url)
	if platform == links.PlatformUnknown {
		return fmt.Errorf("%q: %w", url, ErrUnsupported)
	}

	if platform == links.PlatformYouTube && r.native != nil {
		err := r.native.Download(ctx, url, dest)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		r.logger.Warn().Err(err).Msg("Native YouTube download failed, falling back to yt-dlp")
		if cerr := Cleanup(dest); cerr != nil {
			r.logger.Warn().Err(cerr).Msg("Failed to clean partial download")
		}
	}

	return r.generic.Download(ctx, url, dest)
}
