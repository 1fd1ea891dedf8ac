// Package kafka wraps franz-go client construction and topic bootstrap.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"phonelease/internal/platform/config"
)

// Client wraps a franz-go client bound to a default topic.
type Client struct {
	*kgo.Client
	Topic string
}

// New creates a Kafka client from configuration.
// Returns nil if no brokers are configured (Kafka disabled).
func New(ctx context.Context, cfg config.KafkaConfig) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := cl.Ping(ctx); err != nil {
		cl.Close()
		return nil, fmt.Errorf("kafka ping failed: %w", err)
	}
	return &Client{Client: cl, Topic: cfg.Topic}, nil
}

// EnsureTopic creates the client's topic if it does not exist yet.
func (c *Client) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(c.Client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, c.Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", c.Topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
