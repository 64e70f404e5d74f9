// Package queue is the Kafka event bridge: the API fans accepted
// events out to a stream topic, and the relay consumes an inbound
// topic for producers that cannot reach the HTTP endpoint.
package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

type Producer struct {
	writer  *kgo.Writer
	timeout time.Duration
}

func NewProducer(brokersCSV, topic string) *Producer {
	w := &kgo.Writer{
		Addr:         kgo.TCP(splitCSV(brokersCSV)...),
		Topic:        topic,
		Balancer:     &kgo.LeastBytes{},
		RequiredAcks: kgo.RequireOne,
	}

	return &Producer{
		writer:  w,
		timeout: 3 * time.Second,
	}
}

func (p *Producer) Close() error { return p.writer.Close() }

// PublishEvent writes one event keyed by task id so per-task ordering
// holds within a partition.
func (p *Producer) PublishEvent(ctx context.Context, taskID string, msg EventMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.writer.WriteMessages(cctx, kgo.Message{
		Key:   []byte(taskID),
		Value: b,
		Time:  time.Now(),
	})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
