package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"clipstore/internal/downloader"
	"clipstore/internal/logging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TempFilePrefix is the name prefix of every file the bot downloads.
const TempFilePrefix = "video_"

// spawnDownload runs one download on its own goroutine with the configured
// timeout. The request logger travels with it; the update context does not.
func (b *Bot) spawnDownload(ctx context.Context, chatID int64, replyTo int, url string) {
	l := logging.FromContext(ctx, b.logger).With().Int64("chat_id", chatID).Str("url", url).Logger()

	if !b.track() {
		l.Warn().Msg("Shutting down, download dropped")
		b.reply(ctx, chatID, textGenericError)
		return
	}
	go func() {
		defer b.wg.Done()

		jobCtx, cancel := context.WithTimeout(l.WithContext(b.jobs), b.config.Download.Timeout)
		defer cancel()

		b.withRecovery(func() {
			b.runDownload(jobCtx, chatID, replyTo, url)
		})
	}()
}

func (b *Bot) runDownload(ctx context.Context, chatID int64, replyTo int, url string) {
	l := logging.FromContext(ctx, b.logger)
	start := b.now()

	var waiting tgbotapi.Message
	defer b.recoverJob(ctx, func() {
		b.metrics.countDownload(outcomeFailed, b.now().Sub(start).Seconds())
		b.report(ctx, chatID, waiting.MessageID, textGenericError)
	})

	waiting, err := b.tgService.SendMessage(chatID, textDownloading)
	if err != nil {
		l.Warn().Err(err).Msg("Failed to send waiting message")
	}

	path := b.tempPath(chatID)
	defer b.cleanup(l, path)

	err = b.fetch(ctx, url, path)
	if err == nil {
		if _, sendErr := b.tgService.SendVideo(chatID, replyTo, path, textCaption); sendErr != nil {
			err = fmt.Errorf("%w: %w", ErrDeliveryFailed, sendErr)
		}
	}

	b.metrics.countDownload(outcomeOf(err), b.now().Sub(start).Seconds())

	if err != nil {
		l.Error().Err(err).Msg("Video request failed")
		b.report(ctx, chatID, waiting.MessageID, userMessage(err))
		return
	}

	l.Info().Dur("elapsed", b.now().Sub(start)).Msg("Video delivered")
	if waiting.MessageID != 0 {
		if err := b.tgService.DeleteMessage(chatID, waiting.MessageID); err != nil {
			l.Debug().Err(err).Msg("Failed to delete waiting message")
		}
	}
}

// fetch downloads url into path and checks that the result fits the upload cap.
func (b *Bot) fetch(ctx context.Context, url, path string) error {
	if err := b.downloader.Download(ctx, url, path); err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if info.Size() > b.config.Download.MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	return nil
}

// report replaces the waiting message with text, or sends text if there is none.
func (b *Bot) report(ctx context.Context, chatID int64, waitingID int, text string) {
	if waitingID != 0 {
		if _, err := b.tgService.EditMessage(chatID, waitingID, text, nil); err == nil {
			return
		}
	}
	b.reply(ctx, chatID, text)
}

func (b *Bot) tempPath(chatID int64) string {
	return filepath.Join(b.config.Download.TempDir, fmt.Sprintf("%s%d_%d.mp4", TempFilePrefix, chatID, b.stamp()))
}

// stamp is the current time in nanoseconds, strictly increasing across calls.
func (b *Bot) stamp() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts := b.now().UnixNano()
	if ts <= b.lastStamp {
		ts = b.lastStamp + 1
	}
	b.lastStamp = ts
	return ts
}

func (b *Bot) cleanup(l *zerolog.Logger, path string) {
	if err := downloader.Cleanup(path); err != nil {
		l.Warn().Err(err).Str("path", path).Msg("Failed to remove temp files")
	}
}
