// Package dedup recognizes the same logical message submitted twice, once per
// path or once per client retry, within a short window.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Window claims submission keys. The first Begin for a key owns it and must
// follow up with Complete or Abort. A concurrent Begin for the same key waits
// for the owner and then reports its message id as a duplicate.
type Window interface {
	Begin(ctx context.Context, key string) (existingID int, duplicate bool, err error)
	Complete(ctx context.Context, key string, messageID int) error
	Abort(ctx context.Context, key string) error
}

// Key identifies a submission by chat, sender and normalized body. Content is
// trimmed, inner whitespace collapsed and case folded.
func Key(chatID, senderID int, content, mediaURL *string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(chatID))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(senderID))
	b.WriteByte('|')
	if content != nil {
		b.WriteString(strings.ToLower(strings.Join(strings.Fields(*content), " ")))
	}
	b.WriteByte('|')
	if mediaURL != nil {
		b.WriteString(strings.TrimSpace(*mediaURL))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

type claim struct {
	done      chan struct{}
	settled   bool
	messageID int
	expires   time.Time
}

// MemoryWindow is an in-process Window.
type MemoryWindow struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	claims map[string]*claim
}

// NewMemoryWindow returns a window that remembers a completed key for window
// after it was claimed.
func NewMemoryWindow(window time.Duration) *MemoryWindow {
	return &MemoryWindow{
		window: window,
		now:    time.Now,
		claims: make(map[string]*claim),
	}
}

func (w *MemoryWindow) Begin(ctx context.Context, key string) (int, bool, error) {
	for {
		w.mu.Lock()
		w.sweepLocked()

		c, ok := w.claims[key]
		if !ok {
			w.claims[key] = &claim{done: make(chan struct{}), expires: w.now().Add(w.window)}
			w.mu.Unlock()
			return 0, false, nil
		}
		if c.settled {
			id := c.messageID
			w.mu.Unlock()
			return id, true, nil
		}
		w.mu.Unlock()

		// owner still persisting; on abort the claim is gone and the loop retries
		select {
		case <-c.done:
		case <-ctx.Done():
			return 0, false, ctx.Err()
		}
	}
}

func (w *MemoryWindow) Complete(_ context.Context, key string, messageID int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	c, ok := w.claims[key]
	if !ok || c.settled {
		return nil
	}
	c.settled = true
	c.messageID = messageID
	close(c.done)
	return nil
}

func (w *MemoryWindow) Abort(_ context.Context, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	c, ok := w.claims[key]
	if !ok || c.settled {
		return nil
	}
	delete(w.claims, key)
	close(c.done)
	return nil
}

// Len returns the number of remembered keys.
func (w *MemoryWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sweepLocked()
	return len(w.claims)
}

// sweepLocked drops settled claims past their expiry. Pending claims stay
// until their owner settles them.
func (w *MemoryWindow) sweepLocked() {
	now := w.now()
	for key, c := range w.claims {
		if c.settled && now.After(c.expires) {
			delete(w.claims, key)
		}
	}
}
