//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "contactlink/pkg/platform/audit"
	"contactlink/pkg/platform/audit/store/kafka"
	"contactlink/pkg/platform/circuit"
	"contactlink/pkg/testutil/containers"
)

func TestSink_PublishesToBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.GetManager().GetRedpanda(t)
	topic := "contact-events-" + uuid.NewString()[:8]

	sink, err := kafka.New(kafka.Config{Brokers: broker.Brokers, Topic: topic}, circuit.New("kafka-test"), nil)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, sink.EnsureTopic(ctx, 1, 1))
	require.NoError(t, sink.EnsureTopic(ctx, 1, 1), "existing topic is not an error")
	require.NoError(t, sink.Ping(ctx))

	event := audit.Event{
		ID:        uuid.New(),
		Category:  audit.CategoryCompliance,
		Timestamp: time.Date(2023, 4, 20, 5, 30, 0, 0, time.UTC),
		Subject:   "23",
		Action:    string(audit.EventContactCreated),
		PrimaryID: "1",
		RequestID: "req-1",
	}
	require.NoError(t, sink.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var records []*kgo.Record
	for len(records) == 0 && ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		require.Empty(t, fetches.Errors())
		records = append(records, fetches.Records()...)
	}
	require.Len(t, records, 1)
	assert.Equal(t, "1", string(records[0].Key))

	var body map[string]string
	require.NoError(t, json.Unmarshal(records[0].Value, &body))
	assert.Equal(t, event.ID.String(), body["id"])
	assert.Equal(t, "contact_created", body["action"])
	assert.Equal(t, "req-1", body["request_id"])
}
