package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func sampleEvent(t *testing.T) events.Event {
	t.Helper()
	e, err := events.New(events.TypeStockLow, "Product", id.New(), events.StockLowPayload{WarehouseID: id.New()})
	require.NoError(t, err)
	return e
}

func TestKafkaSink_KeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w}
	e := sampleEvent(t)

	require.NoError(t, sink.Deliver(context.Background(), e))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, e.AggregateID.String(), string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event-type", Value: []byte("STOCK_LOW")})

	var got events.Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, e.ID, got.ID)
}

func TestKafkaSink_WrapsWriteError(t *testing.T) {
	sink := &KafkaSink{writer: &fakeWriter{err: errors.New("broker down")}}
	err := sink.Deliver(context.Background(), sampleEvent(t))
	assert.ErrorContains(t, err, "broker down")
}

func TestWebhookSink(t *testing.T) {
	var got events.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "STOCK_LOW", r.Header.Get("X-Event-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	e := sampleEvent(t)
	require.NoError(t, NewWebhookSink(srv.URL, 0).Deliver(context.Background(), e))
	assert.Equal(t, e.ID, got.ID)
}

func TestWebhookSink_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL, 0).Deliver(context.Background(), sampleEvent(t))
	assert.ErrorContains(t, err, "502")
}
