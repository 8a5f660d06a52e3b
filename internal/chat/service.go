package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/UnuProxy/JYE-MainWeb/internal/ai"
)

// LeadPublisher enqueues captured leads for the back-office worker.
type LeadPublisher interface {
	PublishLead(ctx context.Context, lead *Lead) error
}

// Service is the completion relay: it persists the user turn, asks the
// configured provider for a reply with recent history as context, and
// persists the reply.
type Service struct {
	store             *Store
	registry          *ai.Registry
	provider          string
	model             string
	systemPrompt      string
	contextWindowSize int
	leads             LeadPublisher
}

func NewService(store *Store, registry *ai.Registry, provider, model, systemPrompt string, contextWindowSize int, leads LeadPublisher) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{
		store:             store,
		registry:          registry,
		provider:          provider,
		model:             model,
		systemPrompt:      systemPrompt,
		contextWindowSize: contextWindowSize,
		leads:             leads,
	}
}

var ErrEmptyMessage = errors.New("user message is required")

// HandleChat relays one user message. The widget persists the user turn
// before calling; the duplicate window makes the second write here a no-op,
// so the turn is stored exactly once either way.
func (s *Service) HandleChat(ctx context.Context, conversationID, userName, userMessage string) (string, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return "", ErrEmptyMessage
	}

	// 1) store user message (duplicate-safe)
	if _, err := s.store.Append(ctx, conversationID, RoleUser, userMessage, time.Now()); err != nil && !errors.Is(err, ErrDuplicateMessage) {
		return "", err
	}

	// 2) build provider messages from recent history
	recentDesc, err := s.store.repo.ListRecentMessagesDesc(ctx, conversationID, s.contextWindowSize)
	if err != nil {
		return "", err
	}

	providerMsgs := make([]ai.Message, 0, len(recentDesc)+1)
	providerMsgs = append(providerMsgs, ai.Message{Role: "system", Content: s.systemPrompt})
	// reverse to ASC (oldest -> newest); system/agent turns are not
	// completion context
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		switch m.Role {
		case RoleUser:
			providerMsgs = append(providerMsgs, ai.Message{Role: "user", Content: m.Content})
		case RoleBot:
			providerMsgs = append(providerMsgs, ai.Message{Role: "assistant", Content: m.Content})
		case RoleAgent, RoleSystem:
		}
	}

	// 3) call provider
	provider, err := s.registry.Get(ctx, s.provider, s.model)
	if err != nil {
		return "", err
	}
	reply, err := provider.Chat(ctx, providerMsgs)
	if err != nil {
		return "", err
	}

	// 4) store bot reply
	if _, err := s.store.Append(ctx, conversationID, RoleBot, reply, time.Now()); err != nil && !errors.Is(err, ErrDuplicateMessage) {
		return "", err
	}
	return reply, nil
}

// SaveLead validates and persists a captured contact, then enqueues it for
// webhook forwarding. Queue failures are not fatal: the row is already
// stored and can be re-driven.
func (s *Service) SaveLead(ctx context.Context, fullName, phoneNumber, conversationID string) (*Lead, error) {
	fullName = strings.TrimSpace(fullName)
	phoneNumber = strings.TrimSpace(phoneNumber)
	if fullName == "" || phoneNumber == "" {
		return nil, errors.New("full name and phone number are required")
	}

	lead := &Lead{FullName: fullName, PhoneNumber: phoneNumber}
	if conversationID != "" {
		lead.ConversationID = &conversationID
	}
	if err := s.store.repo.CreateLead(ctx, lead); err != nil {
		return nil, err
	}

	if s.leads != nil {
		if err := s.leads.PublishLead(ctx, lead); err != nil {
			return lead, err
		}
	}
	return lead, nil
}

// StopBot flips the conversation to agent handling. Best-effort: widget
// sessions react to the resulting status event, not to this call.
func (s *Service) StopBot(ctx context.Context, conversationID, agentID string) error {
	return s.store.SetStatus(ctx, conversationID, StatusAgentHandling, agentID)
}
