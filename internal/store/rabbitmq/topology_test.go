package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestQueueArgsFormRetryCycle(t *testing.T) {
	main := mainQueueArgs("chat_leads")
	if main["x-dead-letter-routing-key"] != "chat_leads.dlq" {
		t.Fatalf("main queue must dead-letter to the DLQ, got %v", main["x-dead-letter-routing-key"])
	}

	retry := retryQueueArgs("chat_leads")
	if retry["x-dead-letter-routing-key"] != "chat_leads" {
		t.Fatalf("retry queue must dead-letter back to the main queue, got %v", retry["x-dead-letter-routing-key"])
	}
	ttl, ok := retry["x-message-ttl"].(int64)
	if !ok || ttl != RetryDelay.Milliseconds() {
		t.Fatalf("retry queue must carry the re-drive TTL, got %v", retry["x-message-ttl"])
	}

	// the DLQ is a plain parking queue; only the other two carry args
	if len(main) != 2 || len(retry) != 3 {
		t.Fatalf("unexpected arg shape: main=%v retry=%v", main, retry)
	}
}

func TestAttempts_CountsAcrossHeaderTypes(t *testing.T) {
	if n := Attempts(nil); n != 0 {
		t.Fatalf("fresh delivery should report 0 attempts, got %d", n)
	}
	// the broker round-trips header ints in varying widths
	for _, h := range []amqp.Table{
		{"x-retry-count": int(2)},
		{"x-retry-count": int32(2)},
		{"x-retry-count": int64(2)},
	} {
		if n := Attempts(h); n != 2 {
			t.Fatalf("expected 2 attempts from %v, got %d", h, n)
		}
	}
}

func TestNextAttemptHeaders_IncrementsAndPreserves(t *testing.T) {
	h := NextAttemptHeaders(amqp.Table{"trace-id": "abc"})
	if Attempts(h) != 1 {
		t.Fatalf("expected attempt counter 1, got %d", Attempts(h))
	}
	if h["trace-id"] != "abc" {
		t.Fatalf("existing headers must survive the re-publish")
	}

	h2 := NextAttemptHeaders(h)
	if Attempts(h2) != 2 {
		t.Fatalf("expected attempt counter 2, got %d", Attempts(h2))
	}
	// input table is not mutated
	if Attempts(h) != 1 {
		t.Fatalf("increment must copy, not mutate")
	}
}
