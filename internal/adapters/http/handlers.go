package http

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/walkguide/internal/adapters/kmlexport"
	"github.com/samirrijal/walkguide/internal/core/domain"
)

// ListCategoriesHandler returns the catalog categories in catalog order.
func ListCategoriesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cats, err := deps.Walks.Categories(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		if cats == nil {
			cats = []string{}
		}
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(cats)
	}
}

// ListPlacesHandler returns places, optionally filtered by category.
func ListPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		places, err := deps.Walks.Places(c.UserContext(), c.Query("category"))
		if err != nil {
			return errFromDomain(c, err)
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(places)
		page := []domain.PointOfInterest{}
		if offset < total {
			end := offset + limit
			if end > total {
				end = total
			}
			page = places[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetPlaceHandler returns a single place by name.
func GetPlaceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			return errBadRequest(c, "invalid place name")
		}
		place, err := deps.Walks.Place(c.UserContext(), name)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(place)
	}
}

// GuidedWalkHandler plans the walk through one category.
func GuidedWalkHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category := c.Query("category")
		if category == "" {
			return errBadRequest(c, "category query parameter is required")
		}
		route, err := deps.Walks.PlanGuidedWalk(c.UserContext(), category, c.QueryBool("shape", false))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(route)
	}
}

// GuidedWalkKMLHandler returns the guided walk as a KML download.
func GuidedWalkKMLHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category := c.Query("category")
		if category == "" {
			return errBadRequest(c, "category query parameter is required")
		}
		route, err := deps.Walks.PlanGuidedWalk(c.UserContext(), category, c.QueryBool("shape", false))
		if err != nil {
			return errFromDomain(c, err)
		}

		var buf bytes.Buffer
		if err := kmlexport.Encode(&buf, route); err != nil {
			return errFromDomain(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/vnd.google-earth.kml+xml")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="walk-`+strings.ToLower(url.PathEscape(category))+`.kml"`)
		return c.Send(buf.Bytes())
	}
}

// MarkersHandler returns the map layer as seen from lat/lon. Without a
// position it is computed from the city anchor.
func MarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		pos := deps.Walks.Anchor()
		if c.Query("lat") != "" || c.Query("lon") != "" {
			if c.Query("lat") == "" || c.Query("lon") == "" {
				return errBadRequest(c, "lat and lon must be given together")
			}
			lat, err := strconv.ParseFloat(c.Query("lat"), 64)
			if err != nil {
				return errBadRequest(c, "lat must be a number")
			}
			lon, err := strconv.ParseFloat(c.Query("lon"), 64)
			if err != nil {
				return errBadRequest(c, "lon must be a number")
			}
			pos = domain.GeoPoint{Lat: lat, Lon: lon}
		}

		markers, err := deps.Walks.Markers(c.UserContext(), c.Query("category"), pos)
		if err != nil {
			return errFromDomain(c, err)
		}
		if markers == nil {
			markers = []domain.Marker{}
		}
		c.Set("Cache-Control", "no-cache")
		return c.JSON(markers)
	}
}

// CreateSessionHandler starts a discovery session.
func CreateSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createSessionRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		sess, err := deps.Discovery.StartSession(c.UserContext(), req.Category)
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Location("/v1/sessions/" + sess.ID)
		return c.Status(fiber.StatusCreated).JSON(sess)
	}
}

// GetSessionHandler returns a session and its visited set.
func GetSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := deps.Discovery.Session(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(sess)
	}
}

// DeleteSessionHandler forgets a session.
func DeleteSessionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Discovery.ResetSession(c.UserContext(), c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// UpdatePositionHandler runs the proximity check for a new position. With
// ?async=true the update is queued for the tracker and 202 is returned.
func UpdatePositionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req positionRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		id := c.Params("id")
		pos := domain.GeoPoint{Lat: *req.Lat, Lon: *req.Lon}

		if c.QueryBool("async", false) {
			if deps.Positions == nil {
				return newError(c, fiber.StatusServiceUnavailable, "unavailable", "position queue is not configured")
			}
			if _, err := deps.Discovery.Session(c.UserContext(), id); err != nil {
				return errFromDomain(c, err)
			}
			update := &domain.PositionUpdate{SessionID: id, Position: pos, RecordedAt: time.Now().UTC()}
			if err := deps.Positions.PublishPosition(c.UserContext(), update); err != nil {
				return errFromDomain(c, err)
			}
			return c.Status(fiber.StatusAccepted).JSON(update)
		}

		res, err := deps.Discovery.UpdatePosition(c.UserContext(), id, pos)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(res)
	}
}

// SimulateHandler advances the demo walker to a progress step.
func SimulateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req simulateRequest
		if err := bindJSON(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		pos, res, err := deps.Discovery.Simulate(c.UserContext(), c.Params("id"), *req.Progress)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{
			"position": pos,
			"result":   res,
		})
	}
}
