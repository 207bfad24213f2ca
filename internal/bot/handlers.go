package bot

import (
	"context"
	"errors"
	"strings"

	"clipstore/internal/links"
	"clipstore/internal/logging"
	"clipstore/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}

	// Команды не проходят через обработку ссылок
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, msg, text)
		return
	}

	switch {
	case msg.Chat.IsPrivate():
		b.handlePrivateMessage(ctx, msg, text)
	case msg.Chat.IsGroup() || msg.Chat.IsSuperGroup():
		b.handleGroupMessage(ctx, msg, text)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, text string) {
	switch commandName(text) {
	case "start", "help":
		b.reply(ctx, msg.Chat.ID, greeting(b.tgService.GetSelf().UserName))
	default:
		logging.FromContext(ctx, b.logger).Debug().Str("command", commandName(text)).Msg("Ignoring unknown command")
	}
}

func (b *Bot) handlePrivateMessage(ctx context.Context, msg *tgbotapi.Message, text string) {
	if msg.From == nil {
		return
	}
	l := logging.FromContext(ctx, b.logger)

	candidate := userEntity(msg.From)
	candidate.ID = msg.Chat.ID

	decision, err := b.gate.Check(ctx, candidate, models.KindUser)
	if err != nil {
		l.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Verification check failed")
		b.reply(ctx, msg.Chat.ID, textGenericError)
		return
	}
	if decision != models.Allowed {
		b.reply(ctx, msg.Chat.ID, textNotActivatedUser)
		return
	}

	url, ok := links.Extract(text)
	if !ok {
		b.reply(ctx, msg.Chat.ID, textInvalidLink)
		return
	}

	b.spawnDownload(ctx, msg.Chat.ID, msg.MessageID, url)
}

func (b *Bot) handleGroupMessage(ctx context.Context, msg *tgbotapi.Message, text string) {
	l := logging.FromContext(ctx, b.logger)

	decision, err := b.gate.Check(ctx, groupEntity(msg.Chat), models.KindGroup)
	if err != nil {
		l.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Verification check failed")
		return
	}

	url, ok := links.Extract(text)
	if !ok {
		return
	}

	if decision != models.Allowed {
		if _, err := b.tgService.Reply(msg.Chat.ID, msg.MessageID, textNotActivatedGroup, true, nil); err != nil {
			l.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to send not-activated notice")
		}
		return
	}

	if msg.From == nil {
		return
	}
	b.askConfirmation(ctx, msg, url)
}

func (b *Bot) askConfirmation(ctx context.Context, msg *tgbotapi.Message, url string) {
	l := logging.FromContext(ctx, b.logger)

	p := &pendingDownload{
		token:     b.confirmations.newToken(msg.Chat.ID),
		chatID:    msg.Chat.ID,
		requestID: msg.MessageID,
		requester: msg.From.ID,
		url:       url,
	}

	keyboard, err := confirmationKeyboard(p.token)
	if err != nil {
		l.Error().Err(err).Msg("Failed to build confirmation keyboard")
		return
	}

	prompt, err := b.tgService.Reply(msg.Chat.ID, msg.MessageID, textConfirmDownload, true, &keyboard)
	if err != nil {
		l.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to send confirmation prompt")
		return
	}

	p.promptID = prompt.MessageID
	b.confirmations.add(p)
	b.metrics.pending(1)
}

func confirmationKeyboard(token string) (tgbotapi.InlineKeyboardMarkup, error) {
	yes, err := models.ConfirmationAnswer{Token: token, Yes: true}.Encode()
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}
	no, err := models.ConfirmationAnswer{Token: token, Yes: false}.Encode()
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes", yes),
			tgbotapi.NewInlineKeyboardButtonData("No", no),
		),
	), nil
}

// handleCallbackQuery resolves confirmation answers. Every press is acknowledged.
func (b *Bot) handleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	l := logging.FromContext(ctx, b.logger)

	notice := ""
	defer func() {
		if err := b.tgService.AnswerCallback(cq.ID, notice); err != nil {
			l.Warn().Err(err).Msg("Failed to answer callback")
		}
	}()

	if cq.Message == nil || cq.From == nil {
		return
	}

	answer, err := models.DecodeConfirmationAnswer(cq.Data)
	if err != nil {
		l.Debug().Err(err).Msg("Ignoring callback")
		return
	}

	p, err := b.confirmations.claim(answer.Token, cq.Message.Chat.ID, cq.Message.MessageID, cq.From.ID)
	switch {
	case errors.Is(err, errNotRequester):
		notice = textNotYourPrompt
		return
	case err != nil:
		notice = textPromptGone
		return
	}

	b.deletePrompt(ctx, p)

	if !answer.Yes {
		l.Info().Int64("chat_id", p.chatID).Msg("Download declined")
		return
	}
	b.spawnDownload(ctx, p.chatID, p.requestID, p.url)
}

func (b *Bot) deletePrompt(ctx context.Context, p *pendingDownload) {
	if err := b.tgService.DeleteMessage(p.chatID, p.promptID); err != nil {
		logging.FromContext(ctx, b.logger).Warn().Err(err).Int64("chat_id", p.chatID).Msg("Failed to delete confirmation prompt")
	}
}

// expirePrompt removes a prompt nobody answered in time.
func (b *Bot) expirePrompt(p *pendingDownload) {
	b.logger.Debug().Int64("chat_id", p.chatID).Str("token", p.token).Msg("Confirmation prompt expired")
	b.deletePrompt(context.Background(), p)
}

func (b *Bot) handleMyChatMember(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	chat := upd.Chat
	if !chat.IsGroup() && !chat.IsSuperGroup() {
		return
	}
	if upd.NewChatMember.User == nil || upd.NewChatMember.User.ID != b.tgService.GetSelf().ID {
		return
	}

	switch {
	case isPresent(upd.NewChatMember.Status) && !isPresent(upd.OldChatMember.Status):
		b.registerGroup(ctx, &chat)
	case !isPresent(upd.NewChatMember.Status):
		logging.FromContext(ctx, b.logger).Info().
			Int64("chat_id", chat.ID).
			Str("status", upd.NewChatMember.Status).
			Msg("Bot removed from group")
	}
}

func (b *Bot) handleMembershipMessage(ctx context.Context, msg *tgbotapi.Message) {
	self := b.tgService.GetSelf().ID

	if msg.LeftChatMember != nil && msg.LeftChatMember.ID == self {
		logging.FromContext(ctx, b.logger).Info().Int64("chat_id", msg.Chat.ID).Msg("Bot removed from group")
		return
	}
	for _, member := range msg.NewChatMembers {
		if member.ID == self {
			b.registerGroup(ctx, msg.Chat)
			return
		}
	}
}

// registerGroup puts a group on the allow-list as pending. Only the call that
// actually created the record posts the notice, so the pair of updates Telegram
// sends for one addition produces a single message.
func (b *Bot) registerGroup(ctx context.Context, chat *tgbotapi.Chat) {
	l := logging.FromContext(ctx, b.logger)

	decision, err := b.gate.Check(ctx, groupEntity(chat), models.KindGroup)
	if err != nil {
		l.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to register group")
		return
	}
	l.Info().Int64("chat_id", chat.ID).Str("decision", decision.String()).Msg("Bot added to group")

	if decision == models.NeedsRegistration {
		b.reply(ctx, chat.ID, textNotActivatedGroup)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		logging.FromContext(ctx, b.logger).Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func isPresent(status string) bool {
	switch status {
	case "creator", "administrator", "member", "restricted":
		return true
	}
	return false
}

// commandName returns "start" for "/start", "/start@SomeBot" and "/start arg".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func userEntity(u *tgbotapi.User) *models.Entity {
	return &models.Entity{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func groupEntity(c *tgbotapi.Chat) *models.Entity {
	return &models.Entity{
		ID:       c.ID,
		Username: c.UserName,
		Title:    c.Title,
	}
}
