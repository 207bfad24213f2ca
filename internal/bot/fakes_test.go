package bot

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clipstore/internal/config"
	"clipstore/internal/domain"
	"clipstore/internal/events"
	"clipstore/internal/models"
	"clipstore/internal/repository"
	"clipstore/internal/service"

	"github.com/alicebob/miniredis/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const botUserID = 999

type sentMessage struct {
	ChatID   int64
	ID       int
	ReplyTo  int
	Text     string
	Quiet    bool
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

type sentVideo struct {
	ChatID  int64
	ReplyTo int
	Path    string
	Caption string
}

type inlineAnswer struct {
	QueryID string
	Results []interface{}
}

type mockTelegramService struct {
	domain.TelegramService

	updates tgbotapi.UpdatesChannel

	mu            sync.Mutex
	nextID        int
	sentMessages  []sentMessage
	edits         []sentMessage
	videos        []sentVideo
	deleted       []int
	callbacks     map[string]string
	inlineAnswers []inlineAnswer
	videoErr      error
	videoExists   bool
}

func newMockTelegramService() *mockTelegramService {
	return &mockTelegramService{nextID: 100, callbacks: make(map[string]string)}
}

func (m *mockTelegramService) id() int {
	m.nextID++
	return m.nextID
}

func (m *mockTelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	return m.Reply(chatID, 0, text, false, nil)
}

func (m *mockTelegramService) Reply(chatID int64, replyTo int, text string, quiet bool, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := sentMessage{ChatID: chatID, ID: m.id(), ReplyTo: replyTo, Text: text, Quiet: quiet, Keyboard: keyboard}
	m.sentMessages = append(m.sentMessages, msg)
	return tgbotapi.Message{MessageID: msg.ID, Chat: &tgbotapi.Chat{ID: chatID}}, nil
}

func (m *mockTelegramService) EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, sentMessage{ChatID: chatID, ID: messageID, Text: text})
	return tgbotapi.Message{MessageID: messageID}, nil
}

func (m *mockTelegramService) DeleteMessage(chatID int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockTelegramService) SendVideo(chatID int64, replyTo int, path, caption string) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoErr != nil {
		return tgbotapi.Message{}, m.videoErr
	}
	_, statErr := os.Stat(path)
	m.videoExists = statErr == nil
	m.videos = append(m.videos, sentVideo{ChatID: chatID, ReplyTo: replyTo, Path: path, Caption: caption})
	return tgbotapi.Message{
		MessageID: m.id(),
		Video:     &tgbotapi.Video{FileID: "file-123"},
	}, nil
}

func (m *mockTelegramService) AnswerCallback(callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[callbackID] = text
	return nil
}

func (m *mockTelegramService) AnswerInlineQuery(queryID string, results ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inlineAnswers = append(m.inlineAnswers, inlineAnswer{QueryID: queryID, Results: results})
	return nil
}

func (m *mockTelegramService) GetSelf() tgbotapi.User {
	return tgbotapi.User{ID: botUserID, UserName: "test_bot", IsBot: true}
}

func (m *mockTelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updates
}

func (m *mockTelegramService) StopReceivingUpdates() {}

func (m *mockTelegramService) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sentMessages...)
}

func (m *mockTelegramService) texts(chatID int64) []string {
	var out []string
	for _, msg := range m.messages() {
		if msg.ChatID == chatID {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (m *mockTelegramService) editTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.edits {
		out = append(out, e.Text)
	}
	return out
}

func (m *mockTelegramService) wasDeleted(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.deleted {
		if d == id {
			return true
		}
	}
	return false
}

type mockNotifier struct {
	domain.ModerationNotifier
	notified atomic.Int32
}

func (m *mockNotifier) Notify(ctx context.Context, e *models.Entity) int {
	m.notified.Add(1)
	return 1
}

type fakeDownloader struct {
	mu    sync.Mutex
	urls  []string
	size  int
	err   error
	panic bool
	// hang blocks Download until closed, ignoring ctx.
	hang chan struct{}
}

func (f *fakeDownloader) Download(ctx context.Context, url, dest string) error {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()

	if f.panic {
		panic("downloader exploded")
	}
	if f.hang != nil {
		<-f.hang
	}
	if f.err != nil {
		// yt-dlp оставляет частичный файл даже при ошибке
		_ = os.WriteFile(dest+".part", []byte("x"), 0o644)
		return f.err
	}
	return os.WriteFile(dest, make([]byte, f.size), 0o644)
}

func (f *fakeDownloader) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

type staticLimiter struct {
	allow bool
	err   error
}

func (s staticLimiter) CheckRateLimit(ctx context.Context, chatID int64, limit int, window time.Duration) (bool, error) {
	return s.allow, s.err
}

var errBoom = errors.New("boom")

type fixture struct {
	bot      *Bot
	tg       *mockTelegramService
	repo     domain.EntityRepository
	notifier *mockNotifier
	dl       *fakeDownloader
	cfg      *config.Config
}

func newFixture(t *testing.T, opts ...func(f *fixture)) *fixture {
	t.Helper()

	// хранилище на miniredis: Create идёт через настоящий SETNX
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		tg:       newMockTelegramService(),
		repo:     repository.NewRedisEntityRepository(client, nil),
		notifier: &mockNotifier{},
		dl:       &fakeDownloader{size: 1024},
		cfg: &config.Config{
			Download: config.DownloadConfig{
				TempDir:       t.TempDir(),
				Timeout:       5 * time.Second,
				InlineTimeout: 5 * time.Second,
				MaxFileSize:   models.MaxFileSize,
			},
			Confirmation: config.ConfirmationConfig{Timeout: time.Minute},
			Bot:          config.BotConfig{RateLimitMessages: 100, RateLimitWindow: 60},
		},
	}
	for _, opt := range opts {
		opt(f)
	}

	logger := zerolog.Nop()
	gate := service.NewGate(f.repo, f.notifier, events.NewEventBus(), &logger)

	b, err := NewBot(f.tg, f.cfg, gate, staticLimiter{allow: true}, f.dl, nil, &logger)
	require.NoError(t, err)
	f.bot = b
	t.Cleanup(func() { b.Stop(time.Second) })
	return f
}

func (f *fixture) verify(t *testing.T, kind models.Kind, id int64) {
	t.Helper()
	require.NoError(t, f.repo.Save(context.Background(), &models.Entity{ID: id, Kind: kind, IsVerified: true}))
}

func (f *fixture) process(update tgbotapi.Update) {
	f.bot.processUpdate(context.Background(), update)
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	require.True(t, f.bot.Wait(5*time.Second), "downloads did not finish")
}

func (f *fixture) tempFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.cfg.Download.TempDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func privateText(userID int64, messageID int, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: messageID,
		From:      &tgbotapi.User{ID: userID, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}}
}

func groupText(chatID, userID int64, messageID int, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: messageID,
		From:      &tgbotapi.User{ID: userID, UserName: "bob"},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "supergroup", Title: "Cats"},
		Text:      text,
	}}
}

func callback(id string, chatID, userID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      id,
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID, Type: "supergroup"}},
		Data:    data,
	}}
}

func inlineQuery(id string, userID int64, query string) tgbotapi.Update {
	return tgbotapi.Update{InlineQuery: &tgbotapi.InlineQuery{
		ID:    id,
		From:  &tgbotapi.User{ID: userID, UserName: "alice"},
		Query: query,
	}}
}

// buttonData returns the callback payloads of a Yes/No prompt.
func buttonData(t *testing.T, msg sentMessage) (yes, no string) {
	t.Helper()
	require.NotNil(t, msg.Keyboard)
	row := msg.Keyboard.InlineKeyboard[0]
	require.Len(t, row, 2)
	return *row[0].CallbackData, *row[1].CallbackData
}
