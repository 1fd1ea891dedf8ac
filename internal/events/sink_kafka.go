package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"phonelease/pkg/domain"
)

// Producer is the subset of *kgo.Client used by KafkaSink.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSink writes events as JSON records keyed by identifier (or node) so
// a single identifier's history stays ordered within a partition.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(toEnvelope(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Key()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event %s: %w", event.ID, err)
	}
	return nil
}

// Envelope is the wire form of an Event.
type Envelope struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	OccurredAt string `json:"occurred_at"`
	RequestID  string `json:"request_id,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Previous   string `json:"previous_owner,omitempty"`
	Expiry     string `json:"expiry,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Tier       string `json:"tier,omitempty"`
	Multiplier uint32 `json:"multiplier_bps,omitempty"`
	Signer     string `json:"signer,omitempty"`
	URL        string `json:"url,omitempty"`
	Node       string `json:"node,omitempty"`
	CoinType   uint64 `json:"coin_type,omitempty"`
	Value      string `json:"value,omitempty"`
}

func toEnvelope(e Event) Envelope {
	env := Envelope{
		ID:         e.ID.String(),
		Type:       string(e.Type),
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339Nano),
		RequestID:  e.RequestID,
		Identifier: e.Identifier.String(),
		Tier:       e.Tier.String(),
		Multiplier: e.Multiplier,
		URL:        e.URL,
		CoinType:   e.CoinType,
	}
	if e.Owner != domain.ZeroIdentity {
		env.Owner = e.Owner.Hex()
	}
	if e.PreviousOwner != domain.ZeroIdentity {
		env.Previous = e.PreviousOwner.Hex()
	}
	if e.Signer != domain.ZeroIdentity {
		env.Signer = e.Signer.Hex()
	}
	if !e.Expiry.IsZero() {
		env.Expiry = e.Expiry.UTC().Format(time.RFC3339)
	}
	if e.Amount != nil {
		env.Amount = e.Amount.String()
	}
	if e.Node != (domain.Node{}) {
		env.Node = e.Node.Hex()
	}
	if len(e.Value) > 0 {
		env.Value = fmt.Sprintf("0x%x", e.Value)
	}
	return env
}
