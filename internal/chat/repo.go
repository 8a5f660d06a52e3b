package chat

import (
	"context"
	"errors"
	"time"

	"github.com/UnuProxy/JYE-MainWeb/internal/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateMessage marks an append rejected by the duplicate window.
// Callers treat it as a silent no-op, not a failure.
var ErrDuplicateMessage = errors.New("duplicate message within debounce window")

// recentDuplicateScan bounds the cost of the in-transaction duplicate check.
const recentDuplicateScan = 3

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// EnsureConversation fetches the conversation, creating an active one on
// first contact. Safe under concurrent first-open of the same widget.
func (r *Repo) EnsureConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	conv := &Conversation{
		ConversationID: conversationID,
		Status:         StatusActive,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}},
			DoNothing: true,
		}).
		Create(conv).Error; err != nil {
		return nil, err
	}
	return r.GetConversation(ctx, conversationID)
}

// AppendMessage inserts a message and updates the conversation's denormalized
// last-message fields in one transaction. The last few stored messages are
// checked for an equivalent (role, content) inside the window using server
// timestamps; a hit aborts the transaction with ErrDuplicateMessage.
func (r *Repo) AppendMessage(ctx context.Context, m *Message, window time.Duration) error {
	if !m.Role.Valid() {
		return errors.New("invalid message role")
	}

	mid, err := common.NewULID()
	if err != nil {
		return err
	}
	m.MessageID = mid

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var recent []Message
		if err := tx.
			Where("conversation_id = ?", m.ConversationID).
			Order("id DESC").
			Limit(recentDuplicateScan).
			Find(&recent).Error; err != nil {
			return err
		}
		for _, prev := range recent {
			if prev.Role == m.Role && prev.Content == m.Content &&
				now.Sub(prev.CreatedAt) < window {
				return ErrDuplicateMessage
			}
		}

		m.CreatedAt = now
		if err := tx.Create(m).Error; err != nil {
			return err
		}

		return tx.Model(&Conversation{}).
			Where("conversation_id = ?", m.ConversationID).
			Updates(map[string]any{
				"last_message":      m.Content,
				"last_message_role": m.Role,
				"last_message_at":   now,
				"updated_at":        now,
			}).Error
	})
}

// ListMessagesAsc returns the full conversation in server order
// (oldest -> newest).
func (r *Repo) ListMessagesAsc(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRecentMessagesDesc returns the most recent messages (newest -> oldest).
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) SetUserName(ctx context.Context, conversationID, name string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("conversation_id = ?", conversationID).
		Update("user_name", name).Error
}

func (r *Repo) SetStatus(ctx context.Context, conversationID string, status Status, agentID string) error {
	updates := map[string]any{"status": status}
	if agentID != "" {
		updates["agent_id"] = agentID
	}
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("conversation_id = ?", conversationID).
		Updates(updates).Error
}

func (r *Repo) CreateLead(ctx context.Context, lead *Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}
