package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher enqueues captured leads for the forwarding worker.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

var _ chat.LeadPublisher = (*Publisher)(nil)

// LeadMessage is the queue payload consumed by cmd/worker.
type LeadMessage struct {
	FullName       string `json:"full_name"`
	PhoneNumber    string `json:"phone_number"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishLead implements chat.LeadPublisher.
func (p *Publisher) PublishLead(ctx context.Context, lead *chat.Lead) error {
	msg := LeadMessage{
		FullName:    lead.FullName,
		PhoneNumber: lead.PhoneNumber,
	}
	if lead.ConversationID != nil {
		msg.ConversationID = *lead.ConversationID
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
