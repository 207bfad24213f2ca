package bot

import (
	"context"
	"os"
	"sync"
	"time"

	"clipstore/internal/config"
	"clipstore/internal/domain"
	"clipstore/internal/events"
	"clipstore/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Bot is the main bot: it gates chats, classifies links and runs downloads.
type Bot struct {
	tgService     domain.TelegramService
	config        *config.Config
	gate          domain.VerificationGate
	limiter       domain.RateLimiter
	downloader    domain.Downloader
	confirmations *confirmations
	metrics       *Metrics
	logger        *zerolog.Logger

	// jobs is the parent of every download context; Stop cancels it
	// once the shutdown grace period is over.
	jobs       context.Context
	cancelJobs context.CancelFunc
	wg         sync.WaitGroup
	now        func() time.Time

	mu        sync.Mutex
	stopping  bool
	lastStamp int64
}

func NewBot(
	tgService domain.TelegramService,
	config *config.Config,
	gate domain.VerificationGate,
	limiter domain.RateLimiter,
	downloader domain.Downloader,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	b := &Bot{
		tgService:  tgService,
		config:     config,
		gate:       gate,
		limiter:    limiter,
		downloader: downloader,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
	b.jobs, b.cancelJobs = context.WithCancel(context.Background())
	b.confirmations = newConfirmations(
		models.MaxPendingConfirmations,
		config.Confirmation.Timeout,
		func() time.Time { return b.now() },
		b.expirePrompt,
		func() { b.metrics.pending(-1) },
	)
	return b, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "inline_query", "my_chat_member"}

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, models.UpdateTimeout)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		switch {
		case update.InlineQuery != nil:
			b.metrics.countUpdate("inline_query")
			if !b.allow(updateCtx, update.InlineQuery.From.ID) {
				b.answerArticle(updateCtx, update.InlineQuery.ID, textInlineErrorTitle, textRateLimited)
				return
			}
			b.handleInlineQuery(updateCtx, update.InlineQuery)
		case update.CallbackQuery != nil:
			b.metrics.countUpdate("callback_query")
			b.handleCallbackQuery(updateCtx, update.CallbackQuery)
		case update.MyChatMember != nil:
			b.metrics.countUpdate("my_chat_member")
			b.handleMyChatMember(updateCtx, update.MyChatMember)
		case update.Message != nil:
			b.metrics.countUpdate("message")
			msg := update.Message
			if len(msg.NewChatMembers) > 0 || msg.LeftChatMember != nil {
				b.handleMembershipMessage(updateCtx, msg)
				return
			}
			if msg.From != nil && !b.allow(updateCtx, msg.From.ID) {
				if msg.Chat.IsPrivate() {
					b.reply(updateCtx, msg.Chat.ID, textRateLimited)
				}
				return
			}
			b.handleMessage(updateCtx, msg)
		default:
			b.metrics.countUpdate("other")
		}
	})
}

// HandleEntityActivated tells a freshly approved user or group that it may use the bot.
// It is subscribed to events.EventEntityActivated.
func (b *Bot) HandleEntityActivated(event *events.Event) error {
	payload, err := event.Entity()
	if err != nil {
		return err
	}
	if payload.Kind != models.KindUser && payload.Kind != models.KindGroup {
		return nil
	}
	if _, err := b.tgService.SendMessage(payload.ID, textActivated); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", payload.ID).Msg("Failed to send activation notice")
		return err
	}
	return nil
}
