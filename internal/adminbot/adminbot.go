// Package adminbot implements the moderation bot: admin bootstrap, allow-list
// commands and the Activate/Reject buttons sent by the moderation notifier.
package adminbot

import (
	"context"
	"os"
	"time"

	"clipstore/internal/bot"
	"clipstore/internal/domain"
	"clipstore/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type AdminBot struct {
	tgService  domain.TelegramService
	console    domain.AdminConsole
	moderation domain.ModerationNotifier
	metrics    *bot.Metrics
	logger     *zerolog.Logger
}

func New(
	tgService domain.TelegramService,
	console domain.AdminConsole,
	moderation domain.ModerationNotifier,
	metrics *bot.Metrics,
	logger *zerolog.Logger,
) *AdminBot {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}
	return &AdminBot{
		tgService:  tgService,
		console:    console,
		moderation: moderation,
		metrics:    metrics,
		logger:     logger,
	}
}

var commands = []tgbotapi.BotCommand{
	{Command: "chats", Description: "List active users and groups"},
	{Command: "admins", Description: "List active admins"},
	{Command: "activate", Description: "Activate a chat by id"},
	{Command: "deactivate", Description: "Deactivate a chat by id"},
}

func (a *AdminBot) Start(ctx context.Context) {
	if err := a.tgService.SetCommands(commands...); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to register command menu")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := a.tgService.GetUpdatesChan(u)

	a.logger.Info().Str("username", a.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("Admin bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			a.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates.
func (a *AdminBot) Stop() {
	if a == nil || a.tgService == nil {
		return
	}
	a.tgService.StopReceivingUpdates()
}

func (a *AdminBot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	updateCtx, cancel := context.WithTimeout(ctx, models.UpdateTimeout)
	defer cancel()

	l := a.logger.With().Str("request_id", uuid.New().String()).Logger()
	updateCtx = l.WithContext(updateCtx)

	a.withRecovery(func() {
		switch {
		case update.CallbackQuery != nil:
			a.count("callback_query")
			a.handleCallback(updateCtx, update.CallbackQuery)
		case update.Message != nil:
			a.count("message")
			a.handleMessage(updateCtx, update.Message)
		default:
			a.count("other")
		}
	})
}

func (a *AdminBot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if a.metrics != nil {
				a.metrics.ErrorsTotal.Inc()
			}
			a.logger.Error().Interface("panic", r).Msg("Recovered from panic in admin handler")
		}
	}()
	handler()
}

func (a *AdminBot) count(kind string) {
	if a.metrics != nil {
		a.metrics.UpdatesTotal.WithLabelValues(kind).Inc()
	}
}
