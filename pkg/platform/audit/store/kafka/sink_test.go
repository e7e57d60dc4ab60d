package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	audit "contactlink/pkg/platform/audit"
	"contactlink/pkg/platform/circuit"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	err     error
	records []*kgo.Record
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.records = append(f.records, rs...)
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func TestSink_AppendKeysByPrimary(t *testing.T) {
	p := &fakeProducer{}
	s := newSink(p, Config{Topic: "contact-audit"}, nil, nil)

	event := audit.Event{
		ID:        uuid.New(),
		Category:  audit.CategoryCompliance,
		Timestamp: time.Date(2023, 4, 20, 5, 30, 0, 0, time.UTC),
		Subject:   "23",
		Action:    string(audit.EventContactDemoted),
		PrimaryID: "1",
	}
	require.NoError(t, s.Append(context.Background(), event))
	require.Len(t, p.records, 1)

	rec := p.records[0]
	assert.Equal(t, "contact-audit", rec.Topic)
	assert.Equal(t, "1", string(rec.Key))

	var msg message
	require.NoError(t, json.Unmarshal(rec.Value, &msg))
	assert.Equal(t, "23", msg.Subject)
	assert.Equal(t, "contact_demoted", msg.Action)
	assert.Equal(t, "2023-04-20T05:30:00Z", msg.Timestamp)
}

func TestSink_BreakerOpensAndShedsEvents(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker unreachable")}
	breaker := circuit.New("kafka-audit", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	s := newSink(p, Config{Topic: "contact-audit"}, breaker, nil)

	event := audit.Event{Subject: "1", Action: string(audit.EventContactCreated)}
	assert.Error(t, s.Append(context.Background(), event))
	assert.Error(t, s.Append(context.Background(), event))
	assert.True(t, breaker.IsOpen())

	err := s.Append(context.Background(), event)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Len(t, p.records, 2, "open breaker must not reach the producer")
}
