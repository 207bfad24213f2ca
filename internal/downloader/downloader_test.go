package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript creates an executable stand-in for yt-dlp.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on windows")
	}
	p := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755))
	return p
}

func TestYtDlpSuccess(t *testing.T) {
	// выходной путь идет после -o
	script := writeScript(t, `
while [ "$#" -gt 0 ]; do
  if [ "$1" = "-o" ]; then shift; printf 'video' > "$1"; fi
  shift
done
`)
	logger := zerolog.Nop()
	d := NewYtDlp(script, "b", &logger)

	dest := filepath.Join(t.TempDir(), "video_1_1.mp4")
	require.NoError(t, d.Download(context.Background(), "https://vm.tiktok.com/x/", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
}

func TestYtDlpSurfacesError(t *testing.T) {
	script := writeScript(t, `echo "WARNING: something" >&2
echo "ERROR: [TikTok] x: Video not available" >&2
exit 1
`)
	logger := zerolog.Nop()
	d := NewYtDlp(script, "b", &logger)

	err := d.Download(context.Background(), "https://vm.tiktok.com/x/", filepath.Join(t.TempDir(), "v.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Video not available")
}

func TestYtDlpContextCancel(t *testing.T) {
	script := writeScript(t, "exec sleep 5\n")
	logger := zerolog.Nop()
	d := NewYtDlp(script, "b", &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.Download(ctx, "https://x.com/a/status/1", filepath.Join(t.TempDir(), "v.mp4"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestYtDlpMissingBinary(t *testing.T) {
	logger := zerolog.Nop()
	d := NewYtDlp(filepath.Join(t.TempDir(), "nope"), "b", &logger)
	err := d.Download(context.Background(), "https://x.com/a", filepath.Join(t.TempDir(), "v.mp4"))
	assert.Error(t, err)
}

func TestCleanupRemovesSiblings(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "video_5_123.mp4")
	for _, name := range []string{"video_5_123.mp4", "video_5_123.mp4.part", "video_5_123.mp4.f137.mp4", "video_5_123.f251.webm", "video_5_1234.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	require.NoError(t, Cleanup(dest))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "video_5_1234.mp4", entries[0].Name())

	assert.NoError(t, Cleanup(dest), "nothing left is fine")
}

type fakeDownloader struct {
	calls  atomic.Int32
	err    error
	wait   time.Duration
	before func()
	after  func()
}

func (f *fakeDownloader) Download(ctx context.Context, url, dest string) error {
	f.calls.Add(1)
	if f.before != nil {
		f.before()
	}
	if f.after != nil {
		defer f.after()
	}
	if f.wait > 0 {
		select {
		case <-time.After(f.wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func TestRouter(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	t.Run("YouTubeUsesNative", func(t *testing.T) {
		native, generic := &fakeDownloader{}, &fakeDownloader{}
		r := NewRouter(native, generic, &logger)
		require.NoError(t, r.Download(ctx, "https://youtu.be/abc", filepath.Join(t.TempDir(), "v.mp4")))
		assert.EqualValues(t, 1, native.calls.Load())
		assert.EqualValues(t, 0, generic.calls.Load())
	})

	t.Run("NativeFailureFallsBack", func(t *testing.T) {
		native, generic := &fakeDownloader{err: errors.New("signature")}, &fakeDownloader{}
		r := NewRouter(native, generic, &logger)
		require.NoError(t, r.Download(ctx, "https://www.youtube.com/shorts/xyz", filepath.Join(t.TempDir(), "v.mp4")))
		assert.EqualValues(t, 1, native.calls.Load())
		assert.EqualValues(t, 1, generic.calls.Load())
	})

	t.Run("OthersUseGeneric", func(t *testing.T) {
		native, generic := &fakeDownloader{}, &fakeDownloader{}
		r := NewRouter(native, generic, &logger)
		require.NoError(t, r.Download(ctx, "https://vm.tiktok.com/x/", "unused"))
		assert.EqualValues(t, 0, native.calls.Load())
		assert.EqualValues(t, 1, generic.calls.Load())
	})

	t.Run("NilNative", func(t *testing.T) {
		generic := &fakeDownloader{}
		r := NewRouter(nil, generic, &logger)
		require.NoError(t, r.Download(ctx, "https://youtu.be/abc", "unused"))
		assert.EqualValues(t, 1, generic.calls.Load())
	})

	t.Run("Unsupported", func(t *testing.T) {
		r := NewRouter(nil, &fakeDownloader{}, &logger)
		assert.ErrorIs(t, r.Download(ctx, "https://vimeo.com/1", "unused"), ErrUnsupported)
	})
}

func TestLimitedBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	inner := &fakeDownloader{wait: 20 * time.Millisecond}
	inner.before = func() {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	inner.after = func() { running.Add(-1) }
	l := NewLimited(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Download(context.Background(), "u", "d"))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 6, inner.calls.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestLimitedRespectsContext(t *testing.T) {
	inner := &fakeDownloader{wait: time.Second}
	l := NewLimited(inner, 1)

	go func() { _ = l.Download(context.Background(), "u", "d") }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Download(ctx, "u", "d"), context.DeadlineExceeded)
}

func TestPickFormat(t *testing.T) {
	video := &youtube.Video{
		ID:       "abc",
		Duration: 30 * time.Second,
		Formats: youtube.FormatList{
			{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, QualityLabel: "360p", Bitrate: 500_000, AudioChannels: 2, ContentLength: 2 << 20},
			{ItagNo: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, QualityLabel: "720p", Bitrate: 2_000_000, AudioChannels: 2, ContentLength: 80 << 20},
			{ItagNo: 137, MimeType: `video/mp4; codecs="avc1.640028"`, QualityLabel: "1080p", Bitrate: 4_000_000},
			{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 128_000, AudioChannels: 2},
		},
	}

	f, ok := pickFormat(video, 50<<20)
	require.True(t, ok)
	assert.Equal(t, 18, f.ItagNo)

	f, ok = pickFormat(video, 0)
	require.True(t, ok)
	assert.Equal(t, 22, f.ItagNo)

	_, ok = pickFormat(video, 1<<20)
	assert.False(t, ok)
}
