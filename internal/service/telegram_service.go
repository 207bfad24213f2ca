package service

import (
	"clipstore/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramService wraps the raw bot API with the few calls the bots need.
// Texts are sent without a parse mode: usernames routinely contain '_'.
type TelegramService struct {
	bot domain.TelegramSender
}

func NewTelegramService(bot domain.TelegramSender) *TelegramService {
	return &TelegramService{
		bot: bot,
	}
}

func (s *TelegramService) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.bot.Send(c)
}

func (s *TelegramService) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return s.bot.Request(c)
}

func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return s.bot.Send(msg)
}

func (s *TelegramService) SendWithInlineKeyboard(
	chatID int64,
	text string,
	keyboard tgbotapi.InlineKeyboardMarkup,
) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	return s.bot.Send(msg)
}

// Reply answers a specific message; quiet sends it without a notification sound.
func (s *TelegramService) Reply(
	chatID int64,
	replyTo int,
	text string,
	quiet bool,
	keyboard *tgbotapi.InlineKeyboardMarkup,
) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.DisableNotification = quiet
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	return s.bot.Send(msg)
}

func (s *TelegramService) EditMessage(
	chatID int64,
	messageID int,
	text string,
	keyboard *tgbotapi.InlineKeyboardMarkup,
) (tgbotapi.Message, error) {
	if keyboard != nil {
		return s.bot.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *keyboard))
	}
	return s.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
}

func (s *TelegramService) DeleteMessage(chatID int64, messageID int) error {
	_, err := s.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// SendVideo uploads the local file at path as a video attachment.
func (s *TelegramService) SendVideo(chatID int64, replyTo int, path, caption string) (tgbotapi.Message, error) {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.ReplyToMessageID = replyTo
	video.SupportsStreaming = true
	return s.bot.Send(video)
}

func (s *TelegramService) AnswerCallback(callbackID, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := s.bot.Request(callback)
	return err
}

func (s *TelegramService) AnswerInlineQuery(queryID string, results ...interface{}) error {
	answer := tgbotapi.InlineConfig{
		InlineQueryID: queryID,
		Results:       results,
		IsPersonal:    true,
	}
	_, err := s.bot.Request(answer)
	return err
}

func (s *TelegramService) SetCommands(commands ...tgbotapi.BotCommand) error {
	_, err := s.bot.Request(tgbotapi.NewSetMyCommands(commands...))
	return err
}

func (s *TelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.bot.GetUpdatesChan(config)
}

func (s *TelegramService) GetSelf() tgbotapi.User {
	return s.bot.GetSelf()
}

func (s *TelegramService) StopReceivingUpdates() {
	s.bot.StopReceivingUpdates()
}
