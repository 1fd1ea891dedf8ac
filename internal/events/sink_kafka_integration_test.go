//go:build integration

package events_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"phonelease/internal/events"
	"phonelease/internal/platform/config"
	"phonelease/internal/platform/kafka"
	"phonelease/pkg/testutil/containers"
)

func TestKafkaSinkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	rp := containers.GetManager().GetRedpanda(t)
	client, err := kafka.New(ctx, config.KafkaConfig{
		Brokers:  []string{rp.Broker},
		Topic:    "phonelease-events-test",
		ClientID: "phonelease-test",
	})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.EnsureTopic(ctx, 1, 1))
	require.NoError(t, client.EnsureTopic(ctx, 1, 1), "second bootstrap is a no-op")

	sink := events.NewKafkaSink(client, client.Topic)
	pub := events.NewPublisher([]events.Sink{sink})
	require.NoError(t, pub.Publish(ctx, events.Event{
		Type:       events.TypeFeesCollected,
		Identifier: "+14155550100",
		Amount:     big.NewInt(5),
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(client.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	var env events.Envelope
	require.NoError(t, json.Unmarshal(records[0].Value, &env))
	require.Equal(t, "fees_collected", env.Type)
	require.Equal(t, "5", env.Amount)
	require.Equal(t, "+14155550100", string(records[0].Key))
}
