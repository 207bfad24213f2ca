package models

import "time"

const (
	// MaxFileSize потолок загрузки файлов ботом в Telegram
	MaxFileSize = 50 * 1024 * 1024

	// DefaultDownloadTimeout время на одно скачивание
	DefaultDownloadTimeout = 5 * time.Minute

	// DefaultInlineTimeout время на ответ inline-запросу; Telegram
	// перестаёт принимать ответ примерно через 10 секунд
	DefaultInlineTimeout = 8 * time.Second

	// DefaultConfirmationTimeout время жизни запроса подтверждения в группе
	DefaultConfirmationTimeout = 10 * time.Minute

	// DefaultMaxConcurrentDownloads одновременных скачиваний на процесс
	DefaultMaxConcurrentDownloads = 4

	// MaxPendingConfirmations размер реестра запросов подтверждения
	MaxPendingConfirmations = 1024

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах

	// UpdateTimeout время на обработку одного обновления
	UpdateTimeout = 30 * time.Second

	// DefaultJanitorInterval как часто чистить временную директорию
	DefaultJanitorInterval = 5 * time.Minute

	// DefaultJanitorMaxAge возраст, после которого временный файл считается брошенным
	DefaultJanitorMaxAge = 30 * time.Minute
)
