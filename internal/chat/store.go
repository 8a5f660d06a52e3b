package chat

import (
	"context"
	"log"
	"sync"
	"time"
)

// Store is the conversation store adapter: ordered append, snapshot reads,
// and subscribe-to-changes over a Notifier. One instance is shared by the
// HTTP handlers and any embedded widget sessions.
type Store struct {
	repo     *Repo
	notifier Notifier
	window   time.Duration
}

func NewStore(repo *Repo, notifier Notifier, window time.Duration) *Store {
	if window <= 0 {
		window = 2 * time.Second
	}
	return &Store{repo: repo, notifier: notifier, window: window}
}

// Window is the duplicate-suppression window applied on append.
func (s *Store) Window() time.Duration { return s.window }

// Append persists a message and its conversation summary update atomically,
// then publishes a message-added event. ErrDuplicateMessage is returned when
// an equivalent (role, content) landed within the window.
func (s *Store) Append(ctx context.Context, conversationID string, role Role, content string, clientTS time.Time) (*Message, error) {
	if _, err := s.repo.EnsureConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	m := &Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		ClientTS:       clientTS.UnixMilli(),
	}
	if err := s.repo.AppendMessage(ctx, m, s.window); err != nil {
		return nil, err
	}

	if err := s.notifier.Publish(ctx, Event{
		Type:           EventMessageAdded,
		ConversationID: conversationID,
		Message:        m,
	}); err != nil {
		// persistence won; subscribers recover via replay
		log.Printf("[chat.Store] publish message event conversation_id=%s err=%v", conversationID, err)
	}
	return m, nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (*ConversationSnapshot, error) {
	conv, err := s.repo.EnsureConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessagesAsc(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &ConversationSnapshot{Conversation: *conv, Messages: msgs}, nil
}

func (s *Store) SetUserName(ctx context.Context, conversationID, name string) error {
	if _, err := s.repo.EnsureConversation(ctx, conversationID); err != nil {
		return err
	}
	return s.repo.SetUserName(ctx, conversationID, name)
}

// SetStatus flips the conversation status and publishes a status event.
// Used by the agent console path (stop-bot) to trigger takeover.
func (s *Store) SetStatus(ctx context.Context, conversationID string, status Status, agentID string) error {
	if _, err := s.repo.EnsureConversation(ctx, conversationID); err != nil {
		return err
	}
	if err := s.repo.SetStatus(ctx, conversationID, status, agentID); err != nil {
		return err
	}
	if err := s.notifier.Publish(ctx, Event{
		Type:           EventStatusChanged,
		ConversationID: conversationID,
		Status:         status,
		AgentID:        agentID,
	}); err != nil {
		log.Printf("[chat.Store] publish status event conversation_id=%s err=%v", conversationID, err)
	}
	return nil
}

// Subscribe delivers the current snapshot as message-added events in server
// order, then live events until cancel. The live feed is attached before the
// snapshot read, so a message raced between the two may be delivered twice;
// subscribers dedupe by message id.
func (s *Store) Subscribe(ctx context.Context, conversationID string, onEvent func(Event)) (func(), error) {
	live, cancelLive, err := s.notifier.Subscribe(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	snap, err := s.GetConversation(ctx, conversationID)
	if err != nil {
		cancelLive()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for i := range snap.Messages {
			onEvent(Event{
				Type:           EventMessageAdded,
				ConversationID: conversationID,
				Message:        &snap.Messages[i],
			})
		}
		if snap.Conversation.Status == StatusAgentHandling {
			agentID := ""
			if snap.Conversation.AgentID != nil {
				agentID = *snap.Conversation.AgentID
			}
			onEvent(Event{
				Type:           EventStatusChanged,
				ConversationID: conversationID,
				Status:         StatusAgentHandling,
				AgentID:        agentID,
			})
		}
		for {
			select {
			case ev, ok := <-live:
				if !ok {
					return
				}
				onEvent(ev)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelLive()
			close(done)
		})
	}
	return cancel, nil
}
