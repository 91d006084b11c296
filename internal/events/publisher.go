package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the durable stream holding user state events.
	StreamName = "USERS"

	// subjectPrefix routes one ordered subject per user, so all events for a
	// single user are consumed in publish order (partition key).
	subjectPrefix = "users.state."

	// FailedSubject receives events that exhausted consumer redelivery.
	FailedSubject = "users.failed"
)

// Subject returns the per-user ordered subject for a user ID.
func Subject(userID string) string {
	return subjectPrefix + userID
}

// Publisher sends user state snapshots to the USERS stream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewPublisher connects to NATS and ensures the USERS stream exists.
func NewPublisher(natsURL string) (*Publisher, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"users.>"},
		Retention: jetstream.LimitsPolicy,
		MaxMsgs:   1000000,
		MaxBytes:  1024 * 1024 * 1024, // 1GB
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		slog.Warn("failed to create USERS stream (may already exist)", "error", err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

func (p *Publisher) Close() error {
	p.nc.Close()
	return nil
}

// PublishUserState publishes a snapshot keyed by the user's ID. The publish
// waits for the stream acknowledgment, so a nil return means the event is
// durably stored. Callers invoke this after their own store commit and treat
// failures as log-and-continue: the local mutation is never rolled back.
func (p *Publisher) PublishUserState(state UserState) error {
	if state.EventID == "" {
		state.EventID = uuid.NewString()
	}
	if state.Timestamp == 0 {
		state.Timestamp = time.Now().UnixMilli()
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal user state: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Per-event message ID gives the stream duplicate detection on redundant
	// publishes of the same event.
	_, err = p.js.Publish(ctx, Subject(state.ID), data, jetstream.WithMsgID(state.EventID))
	if err != nil {
		return fmt.Errorf("publish user state: %w", err)
	}

	slog.Info("published user state", "user_id", state.ID, "event_type", state.EventType)
	return nil
}
