package redisstore

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/UnuProxy/JYE-MainWeb/internal/chat"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "chat:events:"

// Notifier fans conversation change events out over Redis pub/sub, one
// channel per conversation. It satisfies chat.Notifier, so relay instances
// behind a load balancer all observe the same appends.
type Notifier struct {
	rdb *redis.Client
}

var _ chat.Notifier = (*Notifier)(nil)

func NewNotifier(addr, password string, db int) *Notifier {
	return &Notifier{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (n *Notifier) Close() error {
	return n.rdb.Close()
}

func (n *Notifier) Publish(ctx context.Context, ev chat.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, channelPrefix+ev.ConversationID, body).Err()
}

func (n *Notifier) Subscribe(ctx context.Context, conversationID string) (<-chan chat.Event, func(), error) {
	sub := n.rdb.Subscribe(ctx, channelPrefix+conversationID)

	// force the SUBSCRIBE round-trip so appends after this call are seen
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan chat.Event, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev chat.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[redisstore.Notifier] bad event payload conversation_id=%s err=%v", conversationID, err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Close()
		})
	}
	return out, cancel, nil
}
