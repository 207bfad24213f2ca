package domain

import (
	"context"
	"time"

	"clipstore/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Mutator changes an entity in place inside EntityRepository.Update.
type Mutator func(e *models.Entity) error

type EntityRepository interface {
	Get(ctx context.Context, kind models.Kind, id int64) (*models.Entity, error)
	Save(ctx context.Context, e *models.Entity) error
	Create(ctx context.Context, e *models.Entity) (bool, error)
	Update(ctx context.Context, kind models.Kind, id int64, mutate Mutator) (*models.Entity, error)
	Delete(ctx context.Context, kind models.Kind, id int64) error
	List(ctx context.Context, kind models.Kind) ([]*models.Entity, error)
	Ping(ctx context.Context) error
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	Reply(chatID int64, replyTo int, text string, quiet bool, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	DeleteMessage(chatID int64, messageID int) error
	SendVideo(chatID int64, replyTo int, path, caption string) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	AnswerInlineQuery(queryID string, results ...interface{}) error
	SetCommands(commands ...tgbotapi.BotCommand) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// VerificationGate decides whether a chat may use the main bot.
type VerificationGate interface {
	Check(ctx context.Context, candidate *models.Entity, kind models.Kind) (models.Decision, error)
}

type ModerationNotifier interface {
	Notify(ctx context.Context, e *models.Entity) int
	Approve(ctx context.Context, kind models.Kind, id int64) (bool, error)
	Reject(ctx context.Context, kind models.Kind, id int64) error
}

// Downloader fetches the media behind url into dest.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// AdminConsole is what the admin bot does with the allow-list.
type AdminConsole interface {
	Touch(ctx context.Context, sender *models.Entity) (*models.Entity, error)
	Bootstrap(ctx context.Context, admin *models.Entity, text string) (bool, error)
	ActiveChats(ctx context.Context) ([]*models.Entity, error)
	ActiveAdmins(ctx context.Context) ([]*models.Entity, error)
	SetVerified(ctx context.Context, id int64, verified bool, by int64) ([]*models.Entity, error)
}
