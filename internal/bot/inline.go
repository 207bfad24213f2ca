package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clipstore/internal/links"
	"clipstore/internal/logging"
	"clipstore/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const inlineResultID = "1"

// handleInlineQuery answers every query: with an article for rejected input
// or, once the download finishes, with the cached video.
func (b *Bot) handleInlineQuery(ctx context.Context, q *tgbotapi.InlineQuery) {
	l := logging.FromContext(ctx, b.logger)

	decision, err := b.gate.Check(ctx, userEntity(q.From), models.KindUser)
	if err != nil {
		l.Error().Err(err).Int64("user_id", q.From.ID).Msg("Verification check failed")
		b.answerArticle(ctx, q.ID, textInlineErrorTitle, textGenericError)
		return
	}
	if decision != models.Allowed {
		b.answerArticle(ctx, q.ID, textInlineInactiveTitle, textInlineInactive)
		return
	}

	url, ok := links.Extract(strings.TrimSpace(q.Query))
	if !ok {
		b.answerArticle(ctx, q.ID, textInlineInvalidTitle, textInlineInvalid)
		return
	}

	queryID, userID := q.ID, q.From.ID
	jl := l.With().Int64("user_id", userID).Str("url", url).Logger()

	if !b.track() {
		jl.Warn().Msg("Shutting down, inline download dropped")
		b.answerArticle(ctx, queryID, textInlineErrorTitle, textGenericError)
		return
	}
	go func() {
		defer b.wg.Done()

		jobCtx, cancel := context.WithTimeout(jl.WithContext(b.jobs), b.config.Download.InlineTimeout)
		defer cancel()

		b.withRecovery(func() {
			b.serveInline(jobCtx, queryID, userID, url)
		})
	}()
}

func (b *Bot) serveInline(ctx context.Context, queryID string, userID int64, url string) {
	l := logging.FromContext(ctx, b.logger)
	start := b.now()

	defer b.recoverJob(ctx, func() {
		b.metrics.countDownload(outcomeInlineError, b.now().Sub(start).Seconds())
		b.answerArticle(ctx, queryID, textInlineErrorTitle, textGenericError)
	})

	path := b.tempPath(userID)
	defer b.cleanup(l, path)

	err := b.fetch(ctx, url, path)
	if err == nil {
		err = b.answerWithVideo(ctx, queryID, userID, path)
	}

	if err == nil {
		b.metrics.countDownload(outcomeInline, b.now().Sub(start).Seconds())
		return
	}

	b.metrics.countDownload(outcomeInlineError, b.now().Sub(start).Seconds())
	l.Error().Err(err).Msg("Inline request failed")

	if errors.Is(err, ErrFileTooLarge) {
		b.answerArticle(ctx, queryID, textInlineTooLargeTitle, textInlineTooLarge)
		return
	}
	b.answerArticle(ctx, queryID, textInlineErrorTitle, textGenericError)
}

// answerWithVideo uploads the file to the sender's private chat to obtain a
// file_id, answers the query with it and removes the helper message.
func (b *Bot) answerWithVideo(ctx context.Context, queryID string, userID int64, path string) error {
	helper, err := b.tgService.SendVideo(userID, 0, path, textInlineHelper)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer func() {
		if err := b.tgService.DeleteMessage(userID, helper.MessageID); err != nil {
			logging.FromContext(ctx, b.logger).Debug().Err(err).Msg("Failed to delete inline helper message")
		}
	}()

	if helper.Video == nil || helper.Video.FileID == "" {
		return fmt.Errorf("%w: upload returned no video", ErrDeliveryFailed)
	}

	result := tgbotapi.NewInlineQueryResultCachedVideo(inlineResultID, helper.Video.FileID, textInlineResultTitle)
	result.Description = "Downloaded video"
	result.Caption = textCaption

	if err := b.tgService.AnswerInlineQuery(queryID, result); err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

func (b *Bot) answerArticle(ctx context.Context, queryID, title, text string) {
	article := tgbotapi.NewInlineQueryResultArticle(inlineResultID, title, text)
	if err := b.tgService.AnswerInlineQuery(queryID, article); err != nil {
		logging.FromContext(ctx, b.logger).Warn().Err(err).Msg("Failed to answer inline query")
	}
}
