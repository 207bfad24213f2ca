package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"clipstore/internal/config"

	"github.com/rs/zerolog"
)

const redacted = "[REDACTED]"

// New constructs a zerolog logger based on config settings.
// Defaults to JSON, info level, stdout when fields are empty.
// Every occurrence of a secret in the output is replaced before it is written.
func New(cfg config.LoggingConfig, app config.AppConfig, secrets ...string) (*zerolog.Logger, io.Closer, error) {
	output, closer, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}
	output = newRedactor(output, secrets)

	if strings.ToLower(strings.TrimSpace(cfg.Format)) == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &base, closer, nil
}

func parseLevel(s string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func openOutput(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=file requires logging.file_path")
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return file, file, nil
	}
	return os.Stdout, nil, nil
}

// redactor masks secrets in every log record. zerolog hands each record to
// Write in one call, so a secret is never split across writes.
type redactor struct {
	out     io.Writer
	secrets [][]byte
}

func newRedactor(out io.Writer, secrets []string) io.Writer {
	r := &redactor{out: out}
	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, []byte(s))
		}
	}
	if len(r.secrets) == 0 {
		return out
	}
	return r
}

func (r *redactor) Write(p []byte) (int, error) {
	masked := p
	for _, s := range r.secrets {
		if bytes.Contains(masked, s) {
			masked = bytes.ReplaceAll(masked, s, []byte(redacted))
		}
	}
	if _, err := r.out.Write(masked); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Component derives a logger tagged with the owning component ("bot", "adminbot", ...).
func Component(base *zerolog.Logger, name string) *zerolog.Logger {
	l := base.With().Str("component", name).Logger()
	return &l
}

// FromContext returns the request logger stored in ctx, falling back to fallback.
func FromContext(ctx context.Context, fallback *zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return fallback
}

// BotAPILogger routes the Telegram client's debug output into zerolog.
// It satisfies tgbotapi.BotLogger.
type BotAPILogger struct {
	logger *zerolog.Logger
}

func NewBotAPILogger(logger *zerolog.Logger) *BotAPILogger {
	return &BotAPILogger{logger: logger}
}

func (l *BotAPILogger) Println(v ...interface{}) {
	l.logger.Debug().Msg(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l *BotAPILogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msg(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}
