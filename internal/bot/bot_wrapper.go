package bot

import (
	"errors"
	"fmt"
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotWrapper adapts *tgbotapi.BotAPI to domain.TelegramSender.
type BotWrapper struct {
	*tgbotapi.BotAPI
}

func (w *BotWrapper) GetSelf() tgbotapi.User {
	return w.Self
}

func (w *BotWrapper) StopReceivingUpdates() {
	w.BotAPI.StopReceivingUpdates()
}

func NewBotWrapper(bot *tgbotapi.BotAPI) *BotWrapper {
	return &BotWrapper{BotAPI: bot}
}

// Connect authorizes token against the Bot API. The token is never part of the error.
func Connect(token string, debug bool) (*BotWrapper, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		// url.Error содержит адрес запроса вместе с токеном
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	api.Debug = debug
	return NewBotWrapper(api), nil
}
