package adminbot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"clipstore/internal/logging"
	"clipstore/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleMessage never logs message text: it may be the bootstrap secret.
func (a *AdminBot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	l := logging.FromContext(ctx, a.logger).With().Int64("admin_id", msg.Chat.ID).Logger()

	admin, err := a.console.Touch(ctx, &models.Entity{
		ID:        msg.Chat.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	})
	if err != nil {
		l.Error().Err(err).Msg("Failed to load admin record")
		return
	}

	if !admin.IsVerified {
		promoted, err := a.console.Bootstrap(ctx, admin, msg.Text)
		if err != nil {
			l.Error().Err(err).Msg("Admin bootstrap failed")
			return
		}
		if promoted {
			a.send(ctx, admin.ID, fmt.Sprintf("Admin %s has been added.", admin.Mention()))
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	name, arg := parseCommand(text)
	switch name {
	case "chats":
		a.listChats(ctx, admin.ID)
	case "admins":
		a.listAdmins(ctx, admin.ID)
	case "activate":
		a.toggle(ctx, admin.ID, arg, true)
	case "deactivate":
		a.toggle(ctx, admin.ID, arg, false)
	case "start", "help":
		a.send(ctx, admin.ID, helpText)
	}
}

const helpText = "/chats - list active users and groups\n" +
	"/admins - list active admins\n" +
	"/activate <id> - activate a chat\n" +
	"/deactivate <id> - deactivate a chat"

func (a *AdminBot) listChats(ctx context.Context, adminID int64) {
	chats, err := a.console.ActiveChats(ctx)
	if err != nil {
		logging.FromContext(ctx, a.logger).Error().Err(err).Msg("Failed to list chats")
		a.send(ctx, adminID, "Failed to load chats, try again later.")
		return
	}
	a.sendLong(ctx, adminID, formatList("Activated chats", chats))
}

func (a *AdminBot) listAdmins(ctx context.Context, adminID int64) {
	admins, err := a.console.ActiveAdmins(ctx)
	if err != nil {
		logging.FromContext(ctx, a.logger).Error().Err(err).Msg("Failed to list admins")
		a.send(ctx, adminID, "Failed to load admins, try again later.")
		return
	}
	a.sendLong(ctx, adminID, formatList("Activated admins", admins))
}

// toggle runs /activate and /deactivate. An id that matches nothing is ignored.
func (a *AdminBot) toggle(ctx context.Context, adminID int64, arg string, verified bool) {
	verb := "deactivate"
	if verified {
		verb = "activate"
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		a.send(ctx, adminID, fmt.Sprintf("Usage: /%s <chat id>", verb))
		return
	}

	matched, err := a.console.SetVerified(ctx, id, verified, adminID)
	if err != nil {
		logging.FromContext(ctx, a.logger).Error().Err(err).Int64("target_id", id).Msg("Failed to toggle chat")
		a.send(ctx, adminID, "Failed to update the chat, try again later.")
		return
	}
	if len(matched) == 0 {
		return
	}
	a.send(ctx, adminID, fmt.Sprintf("Chat %d has been %sd.", id, verb))
}

// handleCallback resolves Activate/Reject presses. Every press is acknowledged.
func (a *AdminBot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	l := logging.FromContext(ctx, a.logger)

	notice := ""
	defer func() {
		if err := a.tgService.AnswerCallback(cq.ID, notice); err != nil {
			l.Warn().Err(err).Msg("Failed to answer callback")
		}
	}()

	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return
	}

	action, err := models.DecodeModerationAction(cq.Data)
	if err != nil {
		l.Debug().Err(err).Msg("Ignoring callback")
		return
	}

	admin, err := a.console.Touch(ctx, &models.Entity{ID: cq.From.ID, Username: cq.From.UserName})
	if err != nil {
		l.Error().Err(err).Msg("Failed to load admin record")
		return
	}
	if !admin.IsVerified {
		notice = "Only active admins can moderate."
		return
	}

	var result string
	switch action.Action {
	case models.ActionActivate:
		ok, err := a.moderation.Approve(ctx, action.Kind, action.ID)
		if err != nil {
			l.Error().Err(err).Int64("chat_id", action.ID).Msg("Approve failed")
			notice = "Failed to activate, try again later."
			return
		}
		if !ok {
			return
		}
		result = "activated"
	case models.ActionReject:
		if err := a.moderation.Reject(ctx, action.Kind, action.ID); err != nil {
			l.Error().Err(err).Int64("chat_id", action.ID).Msg("Reject failed")
			return
		}
		result = "rejected"
	}

	text := fmt.Sprintf("%s %d has been %s.", action.Kind.Label(), action.ID, result)
	if _, err := a.tgService.EditMessage(cq.Message.Chat.ID, cq.Message.MessageID, text, nil); err != nil {
		l.Warn().Err(err).Msg("Failed to edit moderation prompt")
	}
	l.Info().
		Str("action", string(action.Action)).
		Str("kind", string(action.Kind)).
		Int64("chat_id", action.ID).
		Int64("admin_id", admin.ID).
		Msg("Moderation decision")
}

func (a *AdminBot) send(ctx context.Context, chatID int64, text string) {
	if _, err := a.tgService.SendMessage(chatID, text); err != nil {
		logging.FromContext(ctx, a.logger).Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// maxMessageLen is the Telegram limit for a text message.
const maxMessageLen = 4096

func (a *AdminBot) sendLong(ctx context.Context, chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLen) {
		a.send(ctx, chatID, part)
	}
}

// splitMessage cuts text on line boundaries into parts of at most limit bytes.
// A single line longer than limit is cut at the last rune boundary that fits.
func splitMessage(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	return append(parts, text)
}

func formatList(title string, list []*models.Entity) string {
	if len(list) == 0 {
		return title + ": none"
	}
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString(":")
	for _, e := range list {
		sb.WriteString("\n")
		sb.WriteString(e.String())
	}
	return sb.String()
}

// parseCommand splits "/activate@bot 123" into "activate" and "123".
func parseCommand(text string) (string, string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	return strings.ToLower(name), arg
}
