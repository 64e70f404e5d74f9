package queue

import (
	"context"
	"encoding/json"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kgo.Reader
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	r := kgo.NewReader(kgo.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commits
	})

	return &Consumer{reader: r}
}

func (c *Consumer) Close() error { return c.reader.Close() }

// ReadEvent blocks for one message and returns it with a commit
// function to call after successful processing. Undecodable messages
// are committed immediately so the group does not get stuck on them.
func (c *Consumer) ReadEvent(ctx context.Context) (EventMessage, func(context.Context) error, error) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return EventMessage{}, nil, err
	}

	var msg EventMessage
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		_ = c.reader.CommitMessages(ctx, m)
		return EventMessage{}, nil, err
	}

	commit := func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return c.reader.CommitMessages(cctx, m)
	}

	return msg, commit, nil
}
