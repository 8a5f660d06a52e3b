package chat

import "time"

// Role is the closed set of message senders.
type Role string

const (
	RoleUser   Role = "user"
	RoleBot    Role = "bot"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleBot, RoleAgent, RoleSystem:
		return true
	}
	return false
}

// Status of a conversation. "agent-handling" means a live agent took over.
type Status string

const (
	StatusActive        Status = "active"
	StatusAgentHandling Status = "agent-handling"
)

type Conversation struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ConversationID  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"conversation_id"`
	Status          Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	UserName        *string   `gorm:"type:varchar(128)" json:"user_name,omitempty"`
	AgentID         *string   `gorm:"type:varchar(64)" json:"agent_id,omitempty"`
	LastMessage     string    `gorm:"type:text" json:"last_message"`
	LastMessageRole Role      `gorm:"type:varchar(16)" json:"last_message_role"`
	LastMessageAt   time.Time `json:"last_message_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Conversation) TableName() string { return "chat_conversations" }

// Message is one immutable conversation turn. Row id and CreatedAt are
// store-assigned and authoritative for ordering; ClientTS is the sender's
// clock, used only as a debounce tiebreak before the row exists.
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID      string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"message_id"`
	ConversationID string    `gorm:"type:varchar(64);index:idx_chat_msg_conv_id;not null" json:"conversation_id"`
	Role           Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	ClientTS       int64     `gorm:"not null;default:0" json:"client_ts"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// Lead is a captured visitor contact, forwarded to the back-office webhook
// by the worker.
type Lead struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	FullName       string    `gorm:"type:varchar(128);not null" json:"full_name"`
	PhoneNumber    string    `gorm:"type:varchar(32);not null" json:"phone_number"`
	ConversationID *string   `gorm:"type:varchar(64);index" json:"conversation_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Lead) TableName() string { return "chat_leads" }

// ConversationSnapshot is a conversation record plus its messages in server
// order, as returned to a fresh subscriber.
type ConversationSnapshot struct {
	Conversation Conversation
	Messages     []Message
}
