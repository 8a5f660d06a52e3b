package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type recordingResponder struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
	block chan struct{}
}

func (r *recordingResponder) Respond(ctx context.Context, conversationID, userName, message string) (string, error) {
	r.mu.Lock()
	r.calls++
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

func (r *recordingResponder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestStore(t *testing.T) *chat.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&chat.Conversation{}, &chat.Message{}, &chat.Lead{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return chat.NewStore(chat.NewRepo(db), chat.NewMemoryNotifier(), 2*time.Second)
}

func startSession(t *testing.T, store *chat.Store, responder Responder, cfg Config) (*Session, *Transcript) {
	t.Helper()
	transcript := NewTranscript()
	s := NewSession(store, responder, transcript, cfg)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	t.Cleanup(s.Close)
	return s, transcript
}

// waitForMessages polls the transcript until it holds want messages.
func waitForMessages(t *testing.T, transcript *Transcript, want int) []chat.Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msgs := transcript.Messages()
		if len(msgs) >= want {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d displayed messages, have %d", want, len(transcript.Messages()))
	return nil
}

func countByRole(msgs []chat.Message, role chat.Role) int {
	n := 0
	for _, m := range msgs {
		if m.Role == role {
			n++
		}
	}
	return n
}

func TestSession_FreshOpenPromptsForName(t *testing.T) {
	store := newTestStore(t)
	s, transcript := startSession(t, store, &recordingResponder{}, Config{ConversationID: "conv-1"})

	if s.State() != StateAwaitingName {
		t.Fatalf("expected awaiting-name, got %q", s.State())
	}

	msgs := waitForMessages(t, transcript, 1)
	if msgs[0].Role != chat.RoleBot || msgs[0].Content != namePromptText {
		t.Fatalf("expected name prompt, got role=%q content=%q", msgs[0].Role, msgs[0].Content)
	}
}

func TestSession_NameCapture(t *testing.T) {
	store := newTestStore(t)
	s, transcript := startSession(t, store, &recordingResponder{}, Config{ConversationID: "conv-1"})

	if err := s.Submit(context.Background(), "Alice"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if s.State() != StateBotHandling {
		t.Fatalf("expected bot-handling after name capture, got %q", s.State())
	}
	if s.UserName() != "Alice" {
		t.Fatalf("expected captured name, got %q", s.UserName())
	}

	snap, err := store.GetConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if snap.Conversation.UserName == nil || *snap.Conversation.UserName != "Alice" {
		t.Fatalf("expected name persisted on conversation record")
	}

	// prompt, user turn, exactly one greeting
	msgs := waitForMessages(t, transcript, 3)
	greetings := 0
	for _, m := range msgs {
		if m.Role == chat.RoleBot && m.Content == fmt.Sprintf(greetingFormat, "Alice") {
			greetings++
		}
	}
	if greetings != 1 {
		t.Fatalf("expected exactly one greeting, got %d", greetings)
	}
}

func TestSession_BlankInputWhileAwaitingNameReprompts(t *testing.T) {
	store := newTestStore(t)
	s, _ := startSession(t, store, &recordingResponder{}, Config{ConversationID: "conv-1"})

	if err := s.Submit(context.Background(), "   "); err != nil {
		t.Fatalf("submit blank: %v", err)
	}

	if s.State() != StateAwaitingName {
		t.Fatalf("expected to remain awaiting-name, got %q", s.State())
	}

	snap, err := store.GetConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if n := countByRole(snap.Messages, chat.RoleUser); n != 0 {
		t.Fatalf("blank input must not be persisted, found %d user messages", n)
	}
}

func TestSession_KnownNameSkipsCapture(t *testing.T) {
	store := newTestStore(t)
	responder := &recordingResponder{reply: "We have several yachts available."}
	s, transcript := startSession(t, store, responder, Config{ConversationID: "conv-1", UserName: "Bob"})

	if s.State() != StateBotHandling {
		t.Fatalf("expected bot-handling with a stored name, got %q", s.State())
	}

	if err := s.Submit(context.Background(), "What do you offer?"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if responder.Calls() != 1 {
		t.Fatalf("expected one completion call, got %d", responder.Calls())
	}

	msgs := waitForMessages(t, transcript, 2)
	if countByRole(msgs, chat.RoleBot) != 1 {
		t.Fatalf("expected one bot reply, got %d", countByRole(msgs, chat.RoleBot))
	}
}

func TestSession_CompletionFailureFallsBack(t *testing.T) {
	store := newTestStore(t)
	responder := &recordingResponder{err: errors.New("upstream timeout")}
	s, transcript := startSession(t, store, responder, Config{ConversationID: "conv-1", UserName: "Bob"})

	if err := s.Submit(context.Background(), "Hello?"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if s.State() != StateBotHandling {
		t.Fatalf("failure must not change state, got %q", s.State())
	}

	msgs := waitForMessages(t, transcript, 2)
	fallbacks := 0
	for _, m := range msgs {
		if m.Role == chat.RoleBot && m.Content == fallbackText {
			fallbacks++
		}
	}
	if fallbacks != 1 {
		t.Fatalf("expected exactly one fallback message, got %d", fallbacks)
	}
	if responder.Calls() != 1 {
		t.Fatalf("no retry expected, got %d calls", responder.Calls())
	}
}

func TestSession_AgentTakeover(t *testing.T) {
	store := newTestStore(t)
	responder := &recordingResponder{reply: "bot reply"}
	s, transcript := startSession(t, store, responder, Config{ConversationID: "conv-1", UserName: "Bob"})

	if err := store.SetStatus(context.Background(), "conv-1", chat.StatusAgentHandling, "julian"); err != nil {
		t.Fatalf("set status: %v", err)
	}

	// wait for the system notice to land
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateAgentHandling && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.State() != StateAgentHandling {
		t.Fatalf("expected agent-handling after status event, got %q", s.State())
	}

	msgs := waitForMessages(t, transcript, 1)
	notices := countByRole(msgs, chat.RoleSystem)
	if notices != 1 {
		t.Fatalf("expected exactly one system notice, got %d", notices)
	}

	// user messages still persist, but no completion call is made
	if err := s.Submit(context.Background(), "Are you there?"); err != nil {
		t.Fatalf("submit during agent handling: %v", err)
	}
	if responder.Calls() != 0 {
		t.Fatalf("no completion calls expected during agent handling, got %d", responder.Calls())
	}

	snap, err := store.GetConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if countByRole(snap.Messages, chat.RoleUser) != 1 {
		t.Fatalf("expected user message persisted during agent handling")
	}
}

func TestSession_DuplicateSubmitWithinWindowStoredOnce(t *testing.T) {
	store := newTestStore(t)
	responder := &recordingResponder{reply: "bot reply"}
	s, _ := startSession(t, store, responder, Config{ConversationID: "conv-1", UserName: "Bob"})

	if err := s.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := s.Submit(context.Background(), "hello"); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	snap, err := store.GetConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if n := countByRole(snap.Messages, chat.RoleUser); n != 1 {
		t.Fatalf("expected one persisted user message, got %d", n)
	}
}

func TestSession_RejectsReentrantSubmit(t *testing.T) {
	store := newTestStore(t)
	responder := &recordingResponder{reply: "slow reply", block: make(chan struct{})}
	s, _ := startSession(t, store, responder, Config{ConversationID: "conv-1", UserName: "Bob"})

	errs := make(chan error, 1)
	go func() {
		errs <- s.Submit(context.Background(), "first")
	}()

	// wait until the first submit reaches the responder
	deadline := time.Now().Add(2 * time.Second)
	for responder.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if responder.Calls() == 0 {
		t.Fatalf("first submit never reached the responder")
	}

	if err := s.Submit(context.Background(), "second"); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(responder.block)
	if err := <-errs; err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// lock released; submits work again
	if err := s.Submit(context.Background(), "third"); err != nil {
		t.Fatalf("submit after release: %v", err)
	}
}

func TestRenderer_ReplayedEventIsNoOp(t *testing.T) {
	transcript := NewTranscript()
	r := NewRenderer(transcript)

	msg := chat.Message{MessageID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Role: chat.RoleBot, Content: "hi"}
	if !r.Display(msg) {
		t.Fatalf("first display should render")
	}
	if r.Display(msg) {
		t.Fatalf("replayed display should be a no-op")
	}
	if len(transcript.Messages()) != 1 {
		t.Fatalf("visible list must be unchanged on replay, got %d", len(transcript.Messages()))
	}
}
