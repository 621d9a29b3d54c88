package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/poiguide/internal/core/domain"
)

// Subscriber consumes explorer session events from JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS for consuming.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeSessionEvents delivers every session event to handler through a
// durable consumer. Failed or undecodable messages are redelivered up to
// three times.
func (s *Subscriber) SubscribeSessionEvents(ctx context.Context, durable string, handler func(ctx context.Context, ev *domain.SessionEvent) error) error {
	sub, err := s.js.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		if err := dispatch(ctx, msg.Data, handler); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func dispatch(ctx context.Context, data []byte, handler func(ctx context.Context, ev *domain.SessionEvent) error) error {
	var ev domain.SessionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("decode session event: %w", err)
	}
	return handler(ctx, &ev)
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
