package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Janitor removes temp files that a crashed or killed download left behind.
// Only names starting with Prefix are touched, so a shared temp dir is safe.
type Janitor struct {
	Dir      string
	Prefix   string
	Interval time.Duration
	MaxAge   time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewJanitor(dir, prefix string, interval, maxAge time.Duration, logger *zerolog.Logger) *Janitor {
	return &Janitor{
		Dir:      dir,
		Prefix:   prefix,
		Interval: interval,
		MaxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
}

// Start sweeps once immediately and then every Interval until ctx is done.
func (j *Janitor) Start(ctx context.Context) error {
	j.Sweep()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep returns the number of removed files.
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.Dir)
	if err != nil {
		j.logger.Warn().Err(err).Str("dir", j.Dir).Msg("Cannot read temp dir")
		return 0
	}

	now := j.now()
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), j.Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) <= j.MaxAge {
			continue
		}
		if err := os.Remove(filepath.Join(j.Dir, e.Name())); err != nil {
			j.logger.Warn().Err(err).Str("file", e.Name()).Msg("Failed to remove stale temp file")
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info().Int("removed", removed).Msg("Cleaned up stale temp files")
	}
	return removed
}
