package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clipstore/internal/models"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverRedis  = "redis"
	StoreDriverMemory = "memory"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Admin        AdminConfig        `yaml:"admin"`
	Store        StoreConfig        `yaml:"store"`
	Redis        RedisConfig        `yaml:"redis"`
	Download     DownloadConfig     `yaml:"download"`
	Confirmation ConfirmationConfig `yaml:"confirmation"`
	Bot          BotConfig          `yaml:"bot"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Janitor      JanitorConfig      `yaml:"janitor"`
	Logging      LoggingConfig      `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name" env:"APP_NAME"`
	Environment string `yaml:"environment" env:"APP_ENV"`
	Version     string `yaml:"version" env:"APP_VERSION"`
}

type TelegramConfig struct {
	BotToken      string `yaml:"bot_token" env:"BOT_TOKEN"`
	AdminBotToken string `yaml:"admin_bot_token" env:"ADMIN_BOT_TOKEN"`
	Debug         bool   `yaml:"debug" env:"TELEGRAM_DEBUG"`
}

// AdminConfig holds the bootstrap secret. It must never be logged.
type AdminConfig struct {
	Secret string `yaml:"secret" env:"ADMIN_SECRET"`
}

type StoreConfig struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER"`
}

type RedisConfig struct {
	Address  string `yaml:"address" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	PoolSize int    `yaml:"pool_size" env:"REDIS_POOL_SIZE"`
}

type DownloadConfig struct {
	TempDir       string        `yaml:"temp_dir" env:"DOWNLOAD_TEMP_DIR"`
	YtDlpPath     string        `yaml:"ytdlp_path" env:"YTDLP_PATH"`
	Format        string        `yaml:"format" env:"YTDLP_FORMAT"`
	Timeout       time.Duration `yaml:"timeout" env:"DOWNLOAD_TIMEOUT"`
	InlineTimeout time.Duration `yaml:"inline_timeout" env:"DOWNLOAD_INLINE_TIMEOUT"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"DOWNLOAD_MAX_CONCURRENT"`
	MaxFileSize   int64         `yaml:"max_file_size" env:"DOWNLOAD_MAX_FILE_SIZE"`
	NativeYouTube bool          `yaml:"native_youtube" env:"DOWNLOAD_NATIVE_YOUTUBE"`
}

type ConfirmationConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"CONFIRMATION_TIMEOUT"`
}

type BotConfig struct {
	RateLimitMessages int `yaml:"rate_limit_messages" env:"RATE_LIMIT_MESSAGES"`
	RateLimitWindow   int `yaml:"rate_limit_window" env:"RATE_LIMIT_WINDOW"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled" env:"PROMETHEUS_ENABLED"`
	PrometheusPort    int  `yaml:"prometheus_port" env:"PROMETHEUS_PORT"`
}

type JanitorConfig struct {
	Interval time.Duration `yaml:"interval" env:"JANITOR_INTERVAL"`
	MaxAge   time.Duration `yaml:"max_age" env:"JANITOR_MAX_AGE"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`
	Format   string `yaml:"format" env:"LOG_FORMAT"`
	Output   string `yaml:"output" env:"LOG_OUTPUT"`
	FilePath string `yaml:"file_path" env:"LOG_FILE_PATH"`
}

// Load reads, in order: an optional .env file, an optional YAML file (with ${VAR}
// expansion) and environment overrides. Missing files are not an error, so the bot
// can be configured from the environment alone.
func Load(configPath string) (*Config, error) {
	// Загружаем .env файл если существует
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			// Предварительная замена переменных окружения в YAML
			expandedData := []byte(os.ExpandEnv(string(data)))
			if err := yaml.Unmarshal(expandedData, &config); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}
	if c.Telegram.AdminBotToken == "" || c.Telegram.AdminBotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram admin bot token is required")
	}
	if c.Telegram.BotToken == c.Telegram.AdminBotToken {
		return errors.New("main and admin bots must use different tokens")
	}
	if c.Admin.Secret == "" {
		return errors.New("admin secret is required")
	}

	switch c.Store.Driver {
	case StoreDriverRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Download.MaxFileSize > models.MaxFileSize {
		return fmt.Errorf("download.max_file_size cannot exceed %d bytes", models.MaxFileSize)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "clipstore"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverRedis
	}
	if c.Download.TempDir == "" {
		c.Download.TempDir = filepath.Join(os.TempDir(), "clipstore")
	}
	if c.Download.YtDlpPath == "" {
		c.Download.YtDlpPath = "yt-dlp"
	}
	if c.Download.Format == "" {
		c.Download.Format = "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/bv*+ba/b"
	}
	if c.Download.Timeout == 0 {
		c.Download.Timeout = models.DefaultDownloadTimeout
	}
	if c.Download.InlineTimeout == 0 {
		c.Download.InlineTimeout = models.DefaultInlineTimeout
	}
	if c.Download.MaxConcurrent == 0 {
		c.Download.MaxConcurrent = models.DefaultMaxConcurrentDownloads
	}
	if c.Download.MaxFileSize == 0 {
		c.Download.MaxFileSize = models.MaxFileSize
	}
	if c.Confirmation.Timeout == 0 {
		c.Confirmation.Timeout = models.DefaultConfirmationTimeout
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Janitor.Interval == 0 {
		c.Janitor.Interval = models.DefaultJanitorInterval
	}
	if c.Janitor.MaxAge == 0 {
		c.Janitor.MaxAge = models.DefaultJanitorMaxAge
	}

	// Bot defaults
	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = models.RateLimitMessages
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = models.RateLimitWindow
	}
}

// RateLimitWindowDuration returns the configured window as a duration.
func (c BotConfig) RateLimitWindowDuration() time.Duration {
	return time.Duration(c.RateLimitWindow) * time.Second
}
