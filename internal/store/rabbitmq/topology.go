package rabbitmq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RetryDelay is how long a failed lead parks in the retry queue before its
// TTL dead-letters it back to the main queue.
const RetryDelay = 30 * time.Second

const attemptsHeader = "x-retry-count"

func RetryQueue(queue string) string { return queue + ".retry" }
func DLQ(queue string) string        { return queue + ".dlq" }

func mainQueueArgs(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DLQ(queue),
	}
}

func retryQueueArgs(queue string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
		"x-message-ttl":             RetryDelay.Milliseconds(),
	}
}

// DeclareTopology declares the main, retry, and DLQ queues. Queue arguments
// are part of the broker's equivalence check on declare, so every process
// touching these queues must declare them through here: a divergent declare
// fails the channel with PRECONDITION_FAILED.
//
// Flow: worker failures re-publish to the retry queue, whose TTL dead-letters
// back to the main queue; nack(requeue=false) on the main queue dead-letters
// to the DLQ for messages that are poison or out of attempts.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(
		DLQ(queue),
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		RetryQueue(queue),
		true,
		false,
		false,
		false,
		retryQueueArgs(queue),
	); err != nil {
		return err
	}

	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		mainQueueArgs(queue),
	)
	return err
}

// Attempts reads the retry counter from delivery headers. A message that has
// never been through the retry queue reports 0.
func Attempts(headers amqp.Table) int {
	switch v := headers[attemptsHeader].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	}
	return 0
}

// NextAttemptHeaders returns a copy of headers with the retry counter
// incremented, for re-publishing a failed delivery to the retry queue.
func NextAttemptHeaders(headers amqp.Table) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}
	out[attemptsHeader] = int32(Attempts(headers) + 1)
	return out
}
