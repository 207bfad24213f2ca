package bot

import (
	"errors"
)

var (
	ErrDownloadFailed = errors.New("download failed")
	ErrFileTooLarge   = errors.New("video exceeds telegram upload limit")
	ErrDeliveryFailed = errors.New("video delivery failed")
)

// userMessage maps a lifecycle error to the text shown in the chat.
func userMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrFileTooLarge) {
		return textTooLarge
	}

	if errors.Is(err, ErrDownloadFailed) {
		return textCannotDownload
	}

	return textGenericError
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeDelivered
	case errors.Is(err, ErrFileTooLarge):
		return outcomeTooLarge
	case errors.Is(err, ErrDownloadFailed):
		return outcomeFailed
	}
	return outcomeSendFailed
}
