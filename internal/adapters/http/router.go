package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/walkguide/internal/pkg/metrics"
)

// legacyRouteSunset is when GET /v1/route stops being served.
var legacyRouteSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP. Position updates come every few
	// seconds per walker, well below that.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/v1/route", SunsetDate: legacyRouteSunset, Alternative: "/v1/walks/guided"},
	}))

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1. Guided walks may wait on the path shaper, which has its
	// own shorter deadline inside the service.
	v1 := app.Group("/v1")
	v1.Get("/categories", timeout.NewWithContext(ListCategoriesHandler(deps), 10*time.Second))
	v1.Get("/places", timeout.NewWithContext(ListPlacesHandler(deps), 10*time.Second))
	v1.Get("/places/:name", timeout.NewWithContext(GetPlaceHandler(deps), 10*time.Second))
	v1.Get("/walks/guided", timeout.NewWithContext(GuidedWalkHandler(deps), 15*time.Second))
	v1.Get("/walks/guided.kml", timeout.NewWithContext(GuidedWalkKMLHandler(deps), 15*time.Second))
	v1.Get("/route", timeout.NewWithContext(GuidedWalkHandler(deps), 15*time.Second))
	v1.Get("/markers", timeout.NewWithContext(MarkersHandler(deps), 10*time.Second))

	v1.Post("/sessions", timeout.NewWithContext(CreateSessionHandler(deps), 10*time.Second))
	v1.Get("/sessions/:id", timeout.NewWithContext(GetSessionHandler(deps), 10*time.Second))
	v1.Delete("/sessions/:id", timeout.NewWithContext(DeleteSessionHandler(deps), 10*time.Second))
	v1.Post("/sessions/:id/positions", timeout.NewWithContext(UpdatePositionHandler(deps), 10*time.Second))
	v1.Post("/sessions/:id/simulate", timeout.NewWithContext(SimulateHandler(deps), 10*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.SpecPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
