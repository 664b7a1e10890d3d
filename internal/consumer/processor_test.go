package consumer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func validEnvelope() []byte {
	return envelopeWithID("evt-1")
}

func envelopeWithID(id string) []byte {
	return []byte(fmt.Sprintf(`{
		"time": "2026-01-15T10:30:00Z",
		"detail": {
			"specversion": "1.0",
			"source": "dev.product",
			"id": %q,
			"type": "product.productCreated.v1",
			"data": {"productId": "P1"}
		}
	}`, id))
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{
		Topic:  "public_events",
		Offset: 10,
		Time:   time.Now().UTC(),
		Value:  validEnvelope(),
	}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, []int64{10}, reader.committed)
	require.Equal(t, "product.productCreated.v1", handler.last.Type)
	require.Equal(t, "P1", handler.last.Data.ProductID)
	require.Equal(t, int64(1768473000000), handler.last.OccurredAt)
}

func TestProcessorDeadLettersHandlerFailureAndContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	failing := kafka.Message{Topic: "public_events", Offset: 10, Value: envelopeWithID("evt-bad")}
	next := kafka.Message{Topic: "public_events", Offset: 11, Value: envelopeWithID("evt-ok")}

	reader := &stubReader{messages: []kafka.Message{failing, next}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("storage down"), errOn: "evt-bad"}
	dlq := &stubDeadLetterer{}

	processor := NewProcessor(reader, handler,
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithDeadLetterer(dlq),
	)

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 2, handler.calls)
	require.Equal(t, 1, dlq.calls)
	require.Equal(t, int64(10), dlq.lastOffset)
	require.Contains(t, dlq.lastReason, "storage down")
	require.Equal(t, []int64{10, 11}, reader.committed)
}

func TestProcessorStopsOnHandlerFailureWithoutDLQ(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Committing offset 11 while 10 is unresolved would advance the group
	// offset to 12 and the failed message would never be redelivered. The
	// processor must stop instead of fetching past the failure.
	failing := kafka.Message{Topic: "public_events", Offset: 10, Value: envelopeWithID("evt-bad")}
	next := kafka.Message{Topic: "public_events", Offset: 11, Value: envelopeWithID("evt-ok")}

	reader := &stubReader{messages: []kafka.Message{failing, next}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("storage down"), errOn: "evt-bad"}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, err, handler.err)

	require.Equal(t, 1, handler.calls)
	require.Empty(t, reader.committed)
}

func TestProcessorStopsWhenDeadLetterPublishFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Topic: "public_events", Offset: 10, Value: envelopeWithID("evt-bad")}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("storage down"), errOn: "evt-bad"}
	dlq := &stubDeadLetterer{err: errors.New("dlq unreachable")}

	processor := NewProcessor(reader, handler,
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithDeadLetterer(dlq),
	)

	err := processor.Run(ctx)
	require.ErrorIs(t, err, dlq.err)
	require.Empty(t, reader.committed)
}

func TestProcessorDeadLettersUndecodableMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Topic: "public_events", Offset: 30, Value: []byte(`{"time": "not-a-time", "detail": {"type": "product.productCreated.v1"}}`)}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{}
	dlq := &stubDeadLetterer{}

	processor := NewProcessor(reader, handler,
		WithLogger(log.New(testWriter{t}, "", 0)),
		WithDeadLetterer(dlq),
	)

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 1, dlq.calls)
	require.Contains(t, dlq.lastReason, "parse envelope time")
	require.Equal(t, []int64{30}, reader.committed)
}

func TestProcessorStopsOnUndecodableWithoutDLQ(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := kafka.Message{Topic: "public_events", Offset: 40, Value: []byte(`not json`)}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Empty(t, reader.committed)
}

type stubReader struct {
	messages  []kafka.Message
	index     int
	committed []int64
	after     func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	errOn string // event ID the handler fails on; empty fails every event
	last  Event
}

func (h *stubHandler) Handle(_ context.Context, event Event) error {
	h.calls++
	h.last = event
	if h.err != nil && (h.errOn == "" || h.errOn == event.ID) {
		return h.err
	}
	return nil
}

type stubDeadLetterer struct {
	calls      int
	err        error
	lastOffset int64
	lastReason string
}

func (d *stubDeadLetterer) Publish(_ context.Context, msg kafka.Message, reason string) error {
	if d.err != nil {
		return d.err
	}
	d.calls++
	d.lastOffset = msg.Offset
	d.lastReason = reason
	return nil
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
