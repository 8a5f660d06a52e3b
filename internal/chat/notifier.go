package chat

import (
	"context"
	"sync"
)

type EventType string

const (
	EventMessageAdded  EventType = "message-added"
	EventStatusChanged EventType = "status-changed"
)

// Event is one change notification for a conversation. Message is set for
// message-added events; Status/AgentID for status-changed events.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
	Message        *Message  `json:"message,omitempty"`
	Status         Status    `json:"status,omitempty"`
	AgentID        string    `json:"agent_id,omitempty"`
}

// Notifier fans change events out to per-conversation subscribers. Delivery
// is best-effort per subscriber; effective at-least-once comes from snapshot
// replay on subscribe (see Store.Subscribe).
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, conversationID string) (<-chan Event, func(), error)
}

// MemoryNotifier is the in-process Notifier used in tests and single-node
// deployments.
type MemoryNotifier struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Event
	next int
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[string]map[int]chan Event)}
}

func (n *MemoryNotifier) Publish(ctx context.Context, ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs[ev.ConversationID] {
		select {
		case ch <- ev:
		default:
			// slow subscriber; it will catch up from its own replay
		}
	}
	return nil
}

func (n *MemoryNotifier) Subscribe(ctx context.Context, conversationID string) (<-chan Event, func(), error) {
	ch := make(chan Event, 64)

	n.mu.Lock()
	id := n.next
	n.next++
	if n.subs[conversationID] == nil {
		n.subs[conversationID] = make(map[int]chan Event)
	}
	n.subs[conversationID][id] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[conversationID], id)
			if len(n.subs[conversationID]) == 0 {
				delete(n.subs, conversationID)
			}
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}
