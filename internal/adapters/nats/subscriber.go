package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber connects to NATS. durable names the position consumer; an
// empty name uses "position-tracker".
func NewSubscriber(url, durable string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if durable == "" {
		durable = "position-tracker"
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// Disposition is how a consumed message is settled with JetStream.
type Disposition int

const (
	Ack  Disposition = iota // processed
	Nak                     // transient failure, redeliver
	Term                    // permanent failure, never redeliver
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Nak:
		return "nak"
	case Term:
		return "term"
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// DispositionOf maps a handler result to a disposition. Unknown or reset
// sessions and invalid positions fail the same way on every delivery, so
// they are terminated. Anything else, such as a store outage or a lost
// write race, is retried.
func DispositionOf(err error) Disposition {
	switch {
	case err == nil:
		return Ack
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidInput):
		return Term
	default:
		return Nak
	}
}

// SubscribePositions consumes walk.position.> with manual acks. Messages
// that cannot be decoded and permanent handler failures are terminated;
// other handler errors nak the message for up to three deliveries.
func (s *Subscriber) SubscribePositions(ctx context.Context, handler func(ctx context.Context, update *domain.PositionUpdate) error) error {
	sub, err := s.js.Subscribe(positionPrefix+">", func(msg *nats.Msg) {
		var update domain.PositionUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			slog.Warn("dropping undecodable position", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}

		err := handler(ctx, &update)
		d := DispositionOf(err)
		if err != nil {
			slog.Warn("position handler failed", "session", update.SessionID, "disposition", d.String(), "error", err)
		}
		switch d {
		case Term:
			_ = msg.Term()
		case Nak:
			_ = msg.Nak()
		default:
			_ = msg.Ack()
		}
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
