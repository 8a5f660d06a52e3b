package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/UnuProxy/JYE-MainWeb/internal/config"
	"github.com/UnuProxy/JYE-MainWeb/internal/store/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// maxForwardAttempts bounds deliveries per lead before it parks in the DLQ.
const maxForwardAttempts = 3

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	if cfg.LeadWebhookURL == "" {
		log.Fatalf("LEAD_WEBHOOK_URL is required")
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// same declare as the publisher; divergent args would fail the channel
	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("lead worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	client := &http.Client{Timeout: 15 * time.Second}

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var lead rabbitmq.LeadMessage
				if err := json.Unmarshal(d.Body, &lead); err != nil || lead.FullName == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := forwardLead(ctx, client, cfg.LeadWebhookURL, lead); err != nil {
					attempt := rabbitmq.Attempts(d.Headers) + 1
					log.Printf("worker=%d lead forward failed attempt=%d cost=%s err=%v", workerID, attempt, time.Since(start), err)
					if attempt >= maxForwardAttempts {
						// out of attempts; park in the DLQ
						_ = d.Nack(false, false)
						continue
					}
					if err := retryLater(ctx, ch, cfg.RabbitQueue, d); err != nil {
						log.Printf("worker=%d retry publish failed err=%v", workerID, err)
						_ = d.Nack(false, false)
						continue
					}
					_ = d.Ack(false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed err=%v", workerID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("lead worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

// retryLater re-publishes a failed delivery to the retry queue with its
// attempt counter bumped; the queue's TTL dead-letters it back to the main
// queue after RetryDelay.
func retryLater(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery) error {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(cctx,
		"",
		rabbitmq.RetryQueue(queue),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      rabbitmq.NextAttemptHeaders(d.Headers),
			Body:         d.Body,
			Timestamp:    time.Now(),
		},
	)
}

// forwardLead posts the captured contact to the back-office webhook (a
// Google-Sheets-style endpoint).
func forwardLead(ctx context.Context, client *http.Client, url string, lead rabbitmq.LeadMessage) error {
	body, err := json.Marshal(map[string]string{
		"fullName":       lead.FullName,
		"phoneNumber":    lead.PhoneNumber,
		"conversationId": lead.ConversationID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &webhookError{status: resp.StatusCode}
	}
	return nil
}

type webhookError struct {
	status int
}

func (e *webhookError) Error() string {
	return "webhook status " + strconv.Itoa(e.status)
}
