package widget

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
)

// State of one widget session.
type State string

const (
	StateAwaitingName  State = "awaiting-name"
	StateBotHandling   State = "bot-handling"
	StateAgentHandling State = "agent-handling"
)

const (
	namePromptText = "Hi there! I'd love to know who I'm chatting with. What's your name?"
	greetingFormat = "Great to meet you, %s! How can I help you today?"
	fallbackText   = "I'm experiencing technical difficulties. Please try again later."
	takeoverText   = "An agent has joined to assist you."
)

// ErrBusy is returned when a submit arrives while an earlier one is still in
// flight. The caller drops the input; nothing was persisted.
var ErrBusy = errors.New("a message is already being processed")

// Store is the conversation store as the session sees it. chat.Store
// satisfies it.
type Store interface {
	Append(ctx context.Context, conversationID string, role chat.Role, content string, clientTS time.Time) (*chat.Message, error)
	GetConversation(ctx context.Context, conversationID string) (*chat.ConversationSnapshot, error)
	SetUserName(ctx context.Context, conversationID, name string) error
	Subscribe(ctx context.Context, conversationID string, onEvent func(chat.Event)) (func(), error)
}

// Responder produces the bot reply for a user message. The HTTP relay client
// implements it against POST /chat.
type Responder interface {
	Respond(ctx context.Context, conversationID, userName, message string) (string, error)
}

var _ Store = (*chat.Store)(nil)

type Config struct {
	ConversationID string
	// UserName is the name restored from local storage, if any. A non-empty
	// name skips the name-capture flow.
	UserName string
	// DebounceWindow defaults to 2s.
	DebounceWindow time.Duration
}

// Session is the conversation-state core for one open widget: it owns the
// dedup guard, the processed-id renderer, and the bot/agent/name-capture
// state machine. Construct on widget open, Close on teardown.
type Session struct {
	cfg       Config
	store     Store
	responder Responder
	guard     *Guard
	renderer  *Renderer

	mu          sync.Mutex
	state       State
	userName    string
	processing  bool
	unsubscribe func()
}

func NewSession(store Store, responder Responder, sink Sink, cfg Config) *Session {
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = 2 * time.Second
	}
	return &Session{
		cfg:       cfg,
		store:     store,
		responder: responder,
		guard:     NewGuard(cfg.DebounceWindow),
		renderer:  NewRenderer(sink),
		state:     StateAwaitingName,
	}
}

// Start loads the conversation snapshot, derives the initial state, attaches
// the change subscription, and emits the name prompt on a fresh conversation.
func (s *Session) Start(ctx context.Context) error {
	snap, err := s.store.GetConversation(ctx, s.cfg.ConversationID)
	if err != nil {
		return err
	}

	name := s.cfg.UserName
	if name == "" && snap.Conversation.UserName != nil {
		name = *snap.Conversation.UserName
	}

	s.mu.Lock()
	s.userName = name
	if name != "" {
		s.state = StateBotHandling
	} else {
		s.state = StateAwaitingName
	}
	s.mu.Unlock()

	unsubscribe, err := s.store.Subscribe(ctx, s.cfg.ConversationID, s.onEvent)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	fresh := s.state == StateAwaitingName && len(snap.Messages) == 0
	s.mu.Unlock()

	if fresh {
		if _, err := s.store.Append(ctx, s.cfg.ConversationID, chat.RoleBot, namePromptText, time.Now()); err != nil && !errors.Is(err, chat.ErrDuplicateMessage) {
			log.Printf("[widget.Session] name prompt conversation_id=%s err=%v", s.cfg.ConversationID, err)
		}
	}
	return nil
}

// State returns the current machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserName returns the captured name, if any.
func (s *Session) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userName
}

// Submit handles one user input. Re-entrant calls fail with ErrBusy; the
// processing flag is released on every path. Duplicate submissions within
// the debounce window are dropped silently.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.processing = true
	state := s.state
	userName := s.userName
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	if text == "" {
		if state == StateAwaitingName {
			return s.appendBot(ctx, namePromptText)
		}
		return nil
	}

	if !s.guard.IntendSend(chat.RoleUser, text) {
		return nil
	}
	defer s.guard.Confirm(chat.RoleUser, text)

	if _, err := s.store.Append(ctx, s.cfg.ConversationID, chat.RoleUser, text, time.Now()); err != nil {
		if errors.Is(err, chat.ErrDuplicateMessage) {
			return nil
		}
		return err
	}

	switch state {
	case StateAgentHandling:
		// live agent replies from the console; nothing more to do
		return nil
	case StateAwaitingName:
		return s.captureName(ctx, text)
	default:
		return s.botReply(ctx, userName, text)
	}
}

func (s *Session) captureName(ctx context.Context, name string) error {
	if err := s.store.SetUserName(ctx, s.cfg.ConversationID, name); err != nil {
		return err
	}

	s.mu.Lock()
	s.userName = name
	if s.state == StateAwaitingName {
		s.state = StateBotHandling
	}
	s.mu.Unlock()

	return s.appendBot(ctx, fmt.Sprintf(greetingFormat, name))
}

func (s *Session) botReply(ctx context.Context, userName, text string) error {
	reply, err := s.responder.Respond(ctx, s.cfg.ConversationID, userName, text)
	if err != nil {
		// no retry, no state change; degrade to the static fallback
		log.Printf("[widget.Session] completion conversation_id=%s err=%v", s.cfg.ConversationID, err)
		reply = fallbackText
	}
	if reply == "" {
		reply = "How else can I assist you today?"
	}
	return s.appendBot(ctx, reply)
}

func (s *Session) appendBot(ctx context.Context, content string) error {
	if _, err := s.store.Append(ctx, s.cfg.ConversationID, chat.RoleBot, content, time.Now()); err != nil && !errors.Is(err, chat.ErrDuplicateMessage) {
		return err
	}
	return nil
}

func (s *Session) onEvent(ev chat.Event) {
	switch ev.Type {
	case chat.EventMessageAdded:
		if ev.Message != nil {
			s.renderer.Display(*ev.Message)
		}
	case chat.EventStatusChanged:
		if ev.Status == chat.StatusAgentHandling {
			s.handleTakeover()
		}
	}
}

// handleTakeover runs on the first observed agent-handling status: terminal
// transition, one system notice, bot replies disabled from here on.
func (s *Session) handleTakeover() {
	s.mu.Lock()
	if s.state == StateAgentHandling {
		s.mu.Unlock()
		return
	}
	s.state = StateAgentHandling
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.store.Append(ctx, s.cfg.ConversationID, chat.RoleSystem, takeoverText, time.Now()); err != nil && !errors.Is(err, chat.ErrDuplicateMessage) {
		log.Printf("[widget.Session] takeover notice conversation_id=%s err=%v", s.cfg.ConversationID, err)
	}
}

// Display exposes the renderer for hosts that pump their own event feed.
func (s *Session) Display(msg chat.Message) bool {
	return s.renderer.Display(msg)
}

// Close detaches the subscription and cancels guard timers. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.guard.Stop()
}
