package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMsg struct {
	data         []byte
	subject      string
	numDelivered uint64

	acks      int
	naks      int
	nakDelays []time.Duration
	terms     int
}

func (m *fakeMsg) Data() []byte         { return m.data }
func (m *fakeMsg) Subject() string      { return m.subject }
func (m *fakeMsg) Reply() string        { return "" }
func (m *fakeMsg) Headers() nats.Header { return nil }

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: m.numDelivered}, nil
}

func (m *fakeMsg) Ack() error                      { m.acks++; return nil }
func (m *fakeMsg) DoubleAck(context.Context) error { m.acks++; return nil }
func (m *fakeMsg) Nak() error                      { m.naks++; return nil }
func (m *fakeMsg) InProgress() error               { return nil }
func (m *fakeMsg) Term() error                     { m.terms++; return nil }
func (m *fakeMsg) TermWithReason(string) error     { m.terms++; return nil }

func (m *fakeMsg) NakWithDelay(delay time.Duration) error {
	m.naks++
	m.nakDelays = append(m.nakDelays, delay)
	return nil
}

type fakeDLQ struct {
	err      error
	subjects []string
	payloads [][]byte
}

func (f *fakeDLQ) Publish(_ context.Context, subject string, payload []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, payload)
	return &jetstream.PubAck{}, nil
}

type stubHandler struct {
	err    error
	states []UserState
}

func (h *stubHandler) OnUserState(_ context.Context, state UserState) error {
	h.states = append(h.states, state)
	return h.err
}

func newTestConsumer(handler UserStateHandler, dlq deadLetterPublisher) *Consumer {
	return &Consumer{dlq: dlq, handler: handler, consumerName: "calendar-service"}
}

func userStateMsg(t *testing.T, delivered uint64) *fakeMsg {
	t.Helper()
	data, err := json.Marshal(UserState{ID: "6f1a2ce0-9c1b-4f0e-a6ce-1f65efdcbb01", EventType: EventCreated})
	require.NoError(t, err)
	return &fakeMsg{data: data, subject: Subject("6f1a2ce0-9c1b-4f0e-a6ce-1f65efdcbb01"), numDelivered: delivered}
}

func TestHandleMessageAcksOnSuccess(t *testing.T) {
	handler := &stubHandler{}
	dlq := &fakeDLQ{}
	c := newTestConsumer(handler, dlq)
	msg := userStateMsg(t, 1)

	c.handleMessage(context.Background(), msg)

	assert.Equal(t, 1, msg.acks)
	assert.Zero(t, msg.naks)
	assert.Zero(t, msg.terms)
	assert.Empty(t, dlq.subjects)
	require.Len(t, handler.states, 1)
	assert.Equal(t, EventCreated, handler.states[0].EventType)
}

func TestHandleMessageNaksWithBackoff(t *testing.T) {
	handler := &stubHandler{err: errors.New("projection store down")}
	dlq := &fakeDLQ{}
	c := newTestConsumer(handler, dlq)

	first := userStateMsg(t, 1)
	c.handleMessage(context.Background(), first)
	require.Equal(t, []time.Duration{500 * time.Millisecond}, first.nakDelays)

	second := userStateMsg(t, 2)
	c.handleMessage(context.Background(), second)
	require.Equal(t, []time.Duration{time.Second}, second.nakDelays)

	assert.Zero(t, first.acks+second.acks)
	assert.Zero(t, first.terms+second.terms)
	assert.Empty(t, dlq.subjects)
}

func TestHandleMessageDeadLettersAfterFinalDelivery(t *testing.T) {
	handler := &stubHandler{err: errors.New("projection store down")}
	dlq := &fakeDLQ{}
	c := newTestConsumer(handler, dlq)
	msg := userStateMsg(t, maxDeliver)

	c.handleMessage(context.Background(), msg)

	require.Equal(t, []string{FailedSubject}, dlq.subjects)
	assert.Equal(t, msg.data, dlq.payloads[0])
	assert.Equal(t, 1, msg.terms)
	assert.Zero(t, msg.naks)
	assert.Zero(t, msg.acks)
}

func TestHandleMessageDeadLettersMalformedPayload(t *testing.T) {
	handler := &stubHandler{}
	dlq := &fakeDLQ{}
	c := newTestConsumer(handler, dlq)
	msg := &fakeMsg{data: []byte("{not json"), subject: Subject("x"), numDelivered: 1}

	c.handleMessage(context.Background(), msg)

	require.Equal(t, []string{FailedSubject}, dlq.subjects)
	assert.Equal(t, 1, msg.terms)
	assert.Empty(t, handler.states, "malformed payload must not reach the handler")
}

func TestHandleMessageLeavesUnackedWhenDeadLetterFails(t *testing.T) {
	handler := &stubHandler{err: errors.New("projection store down")}
	dlq := &fakeDLQ{err: errors.New("stream unavailable")}
	c := newTestConsumer(handler, dlq)
	msg := userStateMsg(t, maxDeliver)

	c.handleMessage(context.Background(), msg)

	// AckWait expiry redelivers it; terminating would drop the event.
	assert.Zero(t, msg.terms)
	assert.Zero(t, msg.acks)
	assert.Zero(t, msg.naks)
}

func TestConsumerConfigSerializesDeliveries(t *testing.T) {
	cfg := consumerConfig("calendar-service")

	// One unacked message at a time keeps a nak'd event ahead of every
	// later event on its subject, so redelivery cannot reorder a user's
	// snapshots.
	assert.Equal(t, 1, cfg.MaxAckPending)
	assert.Equal(t, maxDeliver, cfg.MaxDeliver)
	assert.Equal(t, jetstream.AckExplicitPolicy, cfg.AckPolicy)
	assert.Equal(t, "users.state.>", cfg.FilterSubject)
	assert.Equal(t, "calendar-service", cfg.Durable)
}
