package widget

import (
	"sync"
	"time"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
)

type pendingKey struct {
	role    chat.Role
	content string
}

// Guard gates local send intents. An intent for an equivalent (role, content)
// is rejected while an earlier one is still pending; entries self-expire
// after the debounce window so an abandoned send cannot leak state. The
// stored-message side of duplicate suppression lives in the store append
// transaction.
type Guard struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[pendingKey]*time.Timer
}

func NewGuard(window time.Duration) *Guard {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Guard{
		window:  window,
		pending: make(map[pendingKey]*time.Timer),
	}
}

// IntendSend reports whether the caller may persist this message. On true it
// registers a pending entry; the caller must Confirm once the send resolves.
func (g *Guard) IntendSend(role chat.Role, content string) bool {
	key := pendingKey{role: role, content: content}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.pending[key]; exists {
		return false
	}
	g.pending[key] = time.AfterFunc(g.window, func() {
		g.mu.Lock()
		delete(g.pending, key)
		g.mu.Unlock()
	})
	return true
}

// Confirm clears a pending entry once the send has been persisted or has
// failed. Confirming an already-expired entry is a no-op.
func (g *Guard) Confirm(role chat.Role, content string) {
	key := pendingKey{role: role, content: content}

	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.pending[key]; ok {
		t.Stop()
		delete(g.pending, key)
	}
}

// Stop cancels all outstanding expiry timers. Called on session teardown.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for key, t := range g.pending {
		t.Stop()
		delete(g.pending, key)
	}
}
