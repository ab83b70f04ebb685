package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// OSRM shapes walks with an OSRM-compatible route service. It implements
// ports.PathShaper.
type OSRM struct {
	baseURL string
	profile string
	client  *http.Client
}

// NewOSRM creates a shaper for baseURL. An empty profile means "foot".
func NewOSRM(baseURL, profile string, client *http.Client) *OSRM {
	if profile == "" {
		profile = "foot"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OSRM{baseURL: strings.TrimRight(baseURL, "/"), profile: profile, client: client}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Shape returns the walkable path through waypoints. Every failure is a
// *domain.ShapeError.
func (o *OSRM) Shape(ctx context.Context, waypoints []domain.GeoPoint) ([]domain.GeoPoint, error) {
	if len(waypoints) < 2 {
		return nil, &domain.ShapeError{Reason: domain.ShapeMalformed, Err: errors.New("at least 2 waypoints are required")}
	}

	coords := make([]string, len(waypoints))
	for i, p := range waypoints {
		coords[i] = strconv.FormatFloat(p.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}
	endpoint := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson", o.baseURL, o.profile, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.ShapeError{Reason: domain.ShapeUnavailable, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &domain.ShapeError{Reason: classifyTransport(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &domain.ShapeError{
			Reason: domain.ShapeBadStatus,
			Err:    fmt.Errorf("osrm status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var decoded osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if reason := classifyTransport(ctx, err); reason == domain.ShapeTimeout {
			return nil, &domain.ShapeError{Reason: reason, Err: err}
		}
		return nil, &domain.ShapeError{Reason: domain.ShapeMalformed, Err: fmt.Errorf("decode osrm response: %w", err)}
	}
	if decoded.Code != "Ok" {
		return nil, &domain.ShapeError{Reason: domain.ShapeMalformed, Err: fmt.Errorf("osrm code %q: %s", decoded.Code, decoded.Message)}
	}
	if len(decoded.Routes) == 0 {
		return nil, &domain.ShapeError{Reason: domain.ShapeMalformed, Err: errors.New("osrm returned no routes")}
	}

	raw := decoded.Routes[0].Geometry.Coordinates
	if len(raw) < 2 {
		return nil, &domain.ShapeError{Reason: domain.ShapeMalformed, Err: fmt.Errorf("osrm geometry has %d coordinates", len(raw))}
	}
	path := make([]domain.GeoPoint, 0, len(raw))
	for i, c := range raw {
		if len(c) < 2 {
			return nil, &domain.ShapeError{Reason: domain.ShapeMalformed, Err: fmt.Errorf("coordinate %d has %d values", i, len(c))}
		}
		p := domain.GeoPoint{Lat: c[1], Lon: c[0]}
		if err := p.Validate(); err != nil {
			return nil, &domain.ShapeError{Reason: domain.ShapeMalformed, Err: err}
		}
		path = append(path, p)
	}
	return path, nil
}

func classifyTransport(ctx context.Context, err error) domain.ShapeFailureReason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ShapeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ShapeTimeout
	}
	return domain.ShapeUnavailable
}
