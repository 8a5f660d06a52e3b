package widget

import (
	"sync"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
)

// Sink receives messages accepted for display, in acceptance order.
type Sink interface {
	Append(msg chat.Message)
}

// Renderer makes a Sink idempotent per message id: replayed change events
// for an already-displayed message are dropped. The processed-id set grows
// for the lifetime of one session.
type Renderer struct {
	mu        sync.Mutex
	processed map[string]struct{}
	sink      Sink
}

func NewRenderer(sink Sink) *Renderer {
	return &Renderer{
		processed: make(map[string]struct{}),
		sink:      sink,
	}
}

// Display renders the message unless its id was already processed. Returns
// false on the no-op path.
func (r *Renderer) Display(msg chat.Message) bool {
	r.mu.Lock()
	if _, seen := r.processed[msg.MessageID]; seen {
		r.mu.Unlock()
		return false
	}
	r.processed[msg.MessageID] = struct{}{}
	r.mu.Unlock()

	r.sink.Append(msg)
	return true
}

// Processed reports how many distinct messages have been displayed.
func (r *Renderer) Processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processed)
}

// Transcript is the bundled Sink: an append-only message list. The embedding
// UI owns scrolling.
type Transcript struct {
	mu   sync.Mutex
	msgs []chat.Message
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Append(msg chat.Message) {
	t.mu.Lock()
	t.msgs = append(t.msgs, msg)
	t.mu.Unlock()
}

// Messages returns a copy of the displayed list in display order.
func (t *Transcript) Messages() []chat.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]chat.Message(nil), t.msgs...)
}
