package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/walkguide/internal/adapters/nats"
	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/pkg/metrics"
)

// wsMessage is a client frame.
//
//	{"action":"position","session":"<id>","lat":48.13,"lon":11.57}
//	{"action":"subscribe","session":"<id>"}
//	{"action":"unsubscribe","session":"<id>"}
type wsMessage struct {
	Action  string   `json:"action"`
	Session string   `json:"session"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// wsProximity answers a position frame.
type wsProximity struct {
	Type    string                  `json:"type"`
	Session string                  `json:"session"`
	Result  *domain.ProximityResult `json:"result"`
}

// WebSocketHandler runs live discovery over a WebSocket. Position frames
// go through the discovery service and are answered with the proximity
// result. Subscribe frames relay the session's discovery events from NATS
// when a connection is configured.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // session -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		writeErr := func(msg string) { _ = writeJSON(map[string]string{"type": "error", "error": msg}) }

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				writeErr("invalid JSON")
				continue
			}
			if m.Session == "" {
				writeErr("session is required")
				continue
			}

			switch m.Action {
			case "position":
				if m.Lat == nil || m.Lon == nil {
					writeErr("lat and lon are required")
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				res, err := deps.Discovery.UpdatePosition(ctx, m.Session, domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lon})
				cancel()
				if err != nil {
					writeErr(err.Error())
					continue
				}
				_ = writeJSON(wsProximity{Type: "proximity", Session: m.Session, Result: res})

			case "subscribe":
				if deps.NATS == nil {
					writeErr("event relay is not configured")
					continue
				}
				if _, exists := subs[m.Session]; exists {
					_ = writeJSON(map[string]string{"type": "status", "status": "already subscribed", "session": m.Session})
					continue
				}
				subject := natsadapter.DiscoverySubject(m.Session)
				s, err := deps.NATS.Subscribe(subject, func(msg *nats.Msg) {
					_ = writeJSON(map[string]interface{}{"type": "discovery", "event": json.RawMessage(msg.Data)})
				})
				if err != nil {
					writeErr("subscribe failed: " + err.Error())
					continue
				}
				subs[m.Session] = s
				_ = writeJSON(map[string]string{"type": "status", "status": "subscribed", "session": m.Session})

			case "unsubscribe":
				s, exists := subs[m.Session]
				if !exists {
					writeErr("not subscribed to " + m.Session)
					continue
				}
				_ = s.Unsubscribe()
				delete(subs, m.Session)
				_ = writeJSON(map[string]string{"type": "status", "status": "unsubscribed", "session": m.Session})

			default:
				writeErr("unknown action: " + m.Action)
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
