package bot

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var (
	errPromptGone   = errors.New("confirmation prompt expired or already answered")
	errNotRequester = errors.New("confirmation prompt belongs to another user")
)

// pendingDownload is a group download waiting for the requester's Yes/No.
type pendingDownload struct {
	token     string
	chatID    int64
	promptID  int
	requestID int
	requester int64
	url       string

	claimed atomic.Bool
}

// confirmations keeps pending prompts keyed by token. Entries expire after ttl;
// an entry that leaves the registry unclaimed (expiry or capacity eviction) is
// handed to onExpire exactly once.
type confirmations struct {
	cache *expirable.LRU[string, *pendingDownload]
	now   func() time.Time
}

func newConfirmations(size int, ttl time.Duration, now func() time.Time, onExpire func(p *pendingDownload), onEvict func()) *confirmations {
	c := &confirmations{now: now}
	c.cache = expirable.NewLRU[string, *pendingDownload](size, func(_ string, p *pendingDownload) {
		// вызывается под блокировкой кэша: обратно в кэш не ходим
		if onEvict != nil {
			onEvict()
		}
		if p.claimed.CompareAndSwap(false, true) && onExpire != nil {
			go onExpire(p)
		}
	}, ttl)
	return c
}

// newToken derives a token from the chat and the prompt creation time.
func (c *confirmations) newToken(chatID int64) string {
	ts := c.now().UnixNano()
	token := fmt.Sprintf("%d:%d", chatID, ts)
	for c.cache.Contains(token) {
		ts++
		token = fmt.Sprintf("%d:%d", chatID, ts)
	}
	return token
}

func (c *confirmations) add(p *pendingDownload) {
	c.cache.Add(p.token, p)
}

// claim hands the pending download to the first valid answer. Answers from
// another message, another chat or another user leave the entry untouched.
func (c *confirmations) claim(token string, chatID int64, promptID int, userID int64) (*pendingDownload, error) {
	p, ok := c.cache.Peek(token)
	if !ok || p.chatID != chatID || p.promptID != promptID {
		return nil, errPromptGone
	}
	if p.requester != userID {
		return nil, errNotRequester
	}
	if !p.claimed.CompareAndSwap(false, true) {
		return nil, errPromptGone
	}
	c.cache.Remove(token)
	return p, nil
}

func (c *confirmations) len() int {
	return c.cache.Len()
}
