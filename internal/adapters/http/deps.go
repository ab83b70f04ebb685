package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/walkguide/internal/adapters/postgres"
	"github.com/samirrijal/walkguide/internal/adapters/valkey"
	"github.com/samirrijal/walkguide/internal/core/ports"
	"github.com/samirrijal/walkguide/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers. DB, Cache and
// NATS are optional and only inform readiness and the WebSocket relay.
type Dependencies struct {
	Walks     *usecases.WalkService
	Discovery *usecases.DiscoveryService
	Positions ports.EventPublisher // queues async position updates for the tracker
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache
	Version   string
	SpecPath  string // OpenAPI document for /docs; DefaultSpecPath when empty
}
