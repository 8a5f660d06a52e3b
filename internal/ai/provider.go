package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a completion backend: messages in, one assistant reply out.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
