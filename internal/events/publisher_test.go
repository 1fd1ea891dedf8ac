package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"phonelease/pkg/domain"
	"phonelease/pkg/requestcontext"
)

type failingSink struct{ err error }

func (f failingSink) Append(context.Context, Event) error { return f.err }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPublisherStampsAndFansOut(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")

	a, b := NewInMemory(), NewInMemory()
	p := NewPublisher([]Sink{a, b}, WithLogger(discard()))

	require.NoError(t, p.Publish(ctx, Event{Type: TypeRegistered, Identifier: "+14155550100"}))

	for _, sink := range []*InMemory{a, b} {
		got := sink.List()
		require.Len(t, got, 1)
		assert.NotEqual(t, uuid.Nil, got[0].ID)
		assert.Equal(t, now, got[0].OccurredAt)
		assert.Equal(t, "req-1", got[0].RequestID)
	}
	assert.Equal(t, a.List()[0].ID, b.List()[0].ID, "sinks see the same event")
}

func TestPublisherKeepsDeliveringAfterSinkFailure(t *testing.T) {
	boom := errors.New("boom")
	mem := NewInMemory()
	p := NewPublisher([]Sink{failingSink{err: boom}, mem})

	err := p.Publish(context.Background(), Event{Type: TypeRenewed})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, mem.ByType(TypeRenewed), 1)
}

func TestPublisherJoinsEverySinkFailure(t *testing.T) {
	first, second := errors.New("first"), errors.New("second")
	p := NewPublisher([]Sink{failingSink{err: first}, NewInMemory(), failingSink{err: second}})

	err := p.Publish(context.Background(), Event{Type: TypeRenewed})
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)

	assert.NoError(t, NewPublisher([]Sink{NewInMemory()}).Publish(context.Background(), Event{}))
}

func TestEventKey(t *testing.T) {
	node := domain.Identifier("+14155550100").Node()
	assert.Equal(t, "+14155550100", Event{Identifier: "+14155550100"}.Key())
	assert.Equal(t, node.Hex(), Event{Node: node}.Key())
	assert.Equal(t, "signer_updated", Event{Type: TypeSignerUpdated}.Key())
}

func TestWorkerDrainsAsyncSink(t *testing.T) {
	async := NewAsyncSink(4)
	mem := NewInMemory()
	w := NewWorker(async, mem, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, async.Append(ctx, Event{Type: TypeFeesCollected}))
	require.NoError(t, async.Append(ctx, Event{Type: TypeFeesCollected}))

	require.Eventually(t, func() bool { return len(mem.List()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestAsyncSinkDropsWhenFull(t *testing.T) {
	dropped := NewDropCounter(prometheus.NewRegistry())
	async := NewAsyncSink(1, WithDropCounter(dropped))
	require.NoError(t, async.Append(context.Background(), Event{}))

	done := make(chan error, 1)
	go func() { done <- async.Append(context.Background(), Event{}) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrBufferFull)
	case <-time.After(time.Second):
		t.Fatal("append blocked on a full buffer")
	}
	assert.Equal(t, 1.0, promtest.ToFloat64(dropped))

	assert.ErrorIs(t, NewAsyncSink(0).Append(context.Background(), Event{}), ErrBufferFull, "counter is optional")
}

func TestWorkerDrainsBufferOnShutdown(t *testing.T) {
	async := NewAsyncSink(8)
	mem := NewInMemory()
	for range 3 {
		require.NoError(t, async.Append(context.Background(), Event{Type: TypeRenewed}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWorker(async, mem, discard()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, mem.ByType(TypeRenewed), 3, "buffered events are delivered before Run returns")
}

// blockingSink holds every append until its context ends.
type blockingSink struct{ calls int }

func (b *blockingSink) Append(ctx context.Context, _ Event) error {
	b.calls++
	<-ctx.Done()
	return ctx.Err()
}

func TestWorkerDrainIsBounded(t *testing.T) {
	async := NewAsyncSink(8)
	for range 3 {
		require.NoError(t, async.Append(context.Background(), Event{}))
	}
	sink := &blockingSink{}
	w := NewWorker(async, sink, discard(), WithDrainTimeout(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.ErrorIs(t, w.Run(ctx), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, sink.calls, "drain stops once the timeout passes")
}

type recordingProducer struct {
	records []*kgo.Record
	err     error
}

func (p *recordingProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.records = append(p.records, rs...)
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		out = append(out, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return out
}

func TestKafkaSinkEncodesEnvelope(t *testing.T) {
	producer := &recordingProducer{}
	sink := NewKafkaSink(producer, "lease-events")
	owner := common20(0xab)
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	err := sink.Append(context.Background(), Event{
		ID:         uuid.New(),
		Type:       TypeRegistered,
		Identifier: "+14155550100",
		Owner:      owner,
		Expiry:     expiry,
		Amount:     big.NewInt(1_000_000),
	})
	require.NoError(t, err)
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "lease-events", rec.Topic)
	assert.Equal(t, "+14155550100", string(rec.Key))
	assert.Equal(t, "event_type", rec.Headers[0].Key)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Value, &env))
	assert.Equal(t, "registered", env.Type)
	assert.Equal(t, owner.Hex(), env.Owner)
	assert.Equal(t, "1000000", env.Amount)
	assert.Equal(t, "2027-01-01T00:00:00Z", env.Expiry)
	assert.Empty(t, env.Signer)
}

func TestKafkaSinkPropagatesProduceError(t *testing.T) {
	boom := errors.New("broker down")
	sink := NewKafkaSink(&recordingProducer{err: boom}, "lease-events")
	assert.ErrorIs(t, sink.Append(context.Background(), Event{Type: TypeRenewed}), boom)
}

func common20(b byte) domain.Identity {
	var id domain.Identity
	for i := range id {
		id[i] = b
	}
	return id
}
