package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// UserStateHandler processes one user state event. Returning an error leaves
// the message unacknowledged so the redelivery policy applies; processing
// must therefore be idempotent.
type UserStateHandler interface {
	OnUserState(ctx context.Context, state UserState) error
}

// ConsumerConfig holds configuration for the consumer.
type ConsumerConfig struct {
	NatsURL      string
	ConsumerName string // durable consumer group name (e.g. "calendar-service")
	Handler      UserStateHandler
}

const (
	maxDeliver   = 3
	nakBaseDelay = 500 * time.Millisecond
)

// Consumer reads user state events from the USERS stream with explicit
// acknowledgment. Failed messages are redelivered with exponential backoff
// and dead-lettered to FailedSubject once the delivery budget is spent.
type Consumer struct {
	nc           *nats.Conn
	js           jetstream.JetStream
	dlq          deadLetterPublisher
	handler      UserStateHandler
	consumerName string
	cancel       context.CancelFunc
}

// deadLetterPublisher is the slice of jetstream.JetStream the failure path
// needs.
type deadLetterPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NewConsumer creates a durable NATS JetStream consumer.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	nc, err := nats.Connect(cfg.NatsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream: %w", err)
	}

	return &Consumer{
		nc:           nc,
		js:           js,
		dlq:          js,
		handler:      cfg.Handler,
		consumerName: cfg.ConsumerName,
	}, nil
}

func consumerConfig(name string) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: subjectPrefix + ">",
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy, // start from beginning to catch up
		AckWait:       30 * time.Second,
		MaxDeliver:    maxDeliver,
		// One unacked message at a time. A nak'd event must be redelivered
		// and applied before any later event for the same user, or a stale
		// snapshot would be diffed over a newer one.
		MaxAckPending: 1,
	}
}

// Start begins consuming user state events from the USERS stream.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	consumer, err := c.js.CreateOrUpdateConsumer(ctx, StreamName, consumerConfig(c.consumerName))
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	slog.Info("starting user state consumer", "consumer", c.consumerName)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					slog.Warn("fetch messages error", "error", err)
					time.Sleep(time.Second)
					continue
				}

				for msg := range msgs.Messages() {
					c.handleMessage(ctx, msg)
				}
			}
		}
	}()

	return nil
}

// handleMessage processes one message: ack on success, backoff-nak on
// failure, dead-letter once the final delivery fails too.
func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var state UserState
	if err := json.Unmarshal(msg.Data(), &state); err != nil {
		slog.Error("malformed user state event, dead-lettering", "error", err, "subject", msg.Subject())
		c.deadLetter(msg)
		return
	}

	err := c.handler.OnUserState(ctx, state)
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Warn("ack failed", "error", ackErr, "subject", msg.Subject())
		}
		return
	}

	delivered := uint64(1)
	if meta, metaErr := msg.Metadata(); metaErr == nil {
		delivered = meta.NumDelivered
	}

	slog.Error("handle user state failed", "error", err, "user_id", state.ID, "delivery", delivered)

	if delivered >= maxDeliver {
		c.deadLetter(msg)
		return
	}

	// 500ms, 1s, 2s between redeliveries.
	delay := nakBaseDelay << (delivered - 1)
	if nakErr := msg.NakWithDelay(delay); nakErr != nil {
		slog.Warn("nak failed", "error", nakErr, "subject", msg.Subject())
	}
}

// deadLetter republishes the original payload to the failed subject for
// manual inspection, then terminates the message so it is not redelivered.
func (c *Consumer) deadLetter(msg jetstream.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.dlq.Publish(ctx, FailedSubject, msg.Data()); err != nil {
		slog.Error("dead-letter publish failed", "error", err, "subject", msg.Subject())
		// Leave the message unacked; AckWait expiry will bring it back.
		return
	}

	slog.Warn("event dead-lettered", "subject", msg.Subject())
	if err := msg.Term(); err != nil {
		slog.Warn("term failed", "error", err, "subject", msg.Subject())
	}
}

// Stop stops the consumer.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.nc != nil {
		c.nc.Close()
	}
}
