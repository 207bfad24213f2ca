package downloader

import (
	"context"

	"clipstore/internal/domain"

	"golang.org/x/sync/semaphore"
)

// Limited bounds the number of downloads running at once. Callers beyond the
// limit wait for a slot or for their context to end.
type Limited struct {
	next domain.Downloader
	sem  *semaphore.Weighted
}

func NewLimited(next domain.Downloader, max int) *Limited {
	if max < 1 {
		max = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(int64(max))}
}

func (l *Limited) Download(ctx context.Context, url, dest string) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.sem.Release(1)
	return l.next.Download(ctx, url, dest)
}
