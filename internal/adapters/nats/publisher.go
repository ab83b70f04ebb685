package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

const (
	PositionStream  = "WALK_POSITIONS"
	DiscoveryStream = "WALK_DISCOVERIES"

	positionPrefix  = "walk.position."
	discoveryPrefix = "walk.discovery."
)

// PositionSubject is the subject live positions for a session arrive on.
func PositionSubject(sessionID string) string { return positionPrefix + subjectToken(sessionID) }

// DiscoverySubject is the subject discoveries for a session are published on.
func DiscoverySubject(sessionID string) string { return discoveryPrefix + subjectToken(sessionID) }

// subjectToken replaces characters that would split or wildcard a subject.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and makes sure the walk streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      PositionStream,
			Subjects:  []string{positionPrefix + ">"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:       DiscoveryStream,
			Subjects:   []string{discoveryPrefix + ">"},
			Retention:  nats.InterestPolicy,
			MaxAge:     24 * time.Hour,
			Storage:    nats.FileStorage,
			Duplicates: 10 * time.Minute,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishDiscovery publishes on walk.discovery.<session>. The message ID
// lets JetStream drop a redelivered discovery of the same place.
func (p *Publisher) PublishDiscovery(ctx context.Context, event *domain.DiscoveryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(DiscoverySubject(event.SessionID), data,
		nats.Context(ctx),
		nats.MsgId(event.SessionID+"/"+event.Place.Name),
	)
	return err
}

func (p *Publisher) PublishPosition(ctx context.Context, update *domain.PositionUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(PositionSubject(update.SessionID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for core subscriptions.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection (e.g. for the WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("walkguide"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
