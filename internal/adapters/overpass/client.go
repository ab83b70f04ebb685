package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

const DefaultURL = "https://overpass-api.de/api/interpreter"

// MunichBounds is the box the bundled city catalog was imported from.
var MunichBounds = domain.Bounds{MinLat: 48.061, MinLon: 11.360, MaxLat: 48.220, MaxLon: 11.720}

// Client fetches sightseeing nodes from an OSM Overpass endpoint.
type Client struct {
	BaseURL     string
	MirrorURLs  []string
	HTTPClient  *http.Client
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

type element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

type response struct {
	Elements []element `json:"elements"`
}

// FetchPlaces returns every named tourism, historic, park, museum or
// artwork node inside b, classified into walk categories. Elements without
// a name are skipped, as are repeated names after the first.
func (c *Client) FetchPlaces(ctx context.Context, b domain.Bounds) ([]domain.PointOfInterest, error) {
	box := fmt.Sprintf("%f,%f,%f,%f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	query := fmt.Sprintf(`[out:json][timeout:100];
(
  node["tourism"](%[1]s);
  node["historic"](%[1]s);
  node["amenity"="park"](%[1]s);
  node["leisure"="park"](%[1]s);
  node["amenity"="museum"](%[1]s);
  node["artwork"](%[1]s);
);
out body;`, box)

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	elements, err := c.runWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(elements))
	places := make([]domain.PointOfInterest, 0, len(elements))
	for _, el := range elements {
		name := strings.TrimSpace(el.Tags["name"])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		desc := el.Tags["description"]
		if desc == "" {
			desc = "No description available"
		}
		p := domain.PointOfInterest{
			Name:        name,
			Category:    Classify(el.Tags),
			Description: desc,
			Location:    domain.GeoPoint{Lat: el.Lat, Lon: el.Lon},
		}
		if err := p.Validate(); err != nil {
			slog.Warn("skipping overpass element", "id", el.ID, "error", err)
			continue
		}
		places = append(places, p)
	}
	return places, nil
}

// Classify maps OSM tags onto a walk category. The checks run in order:
// museums are Art, anything historic is Historical, parks are Nature,
// tourist attractions are Sight, the rest is General.
func Classify(tags map[string]string) string {
	switch {
	case strings.Contains(tags["amenity"], "museum") || tags["tourism"] == "museum":
		return "Art"
	case tags["historic"] != "":
		return "Historical"
	case tags["leisure"] == "park" || tags["amenity"] == "park":
		return "Nature"
	case tags["tourism"] == "attraction":
		return "Sight"
	}
	return "General"
}

func (c *Client) runWithRetry(ctx context.Context, query string) ([]element, error) {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	backoff := c.BackoffBase
	if backoff <= 0 {
		backoff = time.Second
	}
	endpoints := c.endpoints()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		base := endpoints[attempt%len(endpoints)]
		elements, status, err := c.runOnce(ctx, base, query)
		if err == nil {
			return elements, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(status, err) || attempt == maxAttempts-1 {
			break
		}
		slog.Warn("overpass request failed, retrying", "endpoint", base, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff << attempt):
		}
	}
	return nil, lastErr
}

func (c *Client) runOnce(ctx context.Context, base, query string) ([]element, int, error) {
	form := url.Values{}
	form.Set("data", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, fmt.Errorf("overpass status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode overpass response: %w", err)
	}
	return decoded.Elements, resp.StatusCode, nil
}

func (c *Client) endpoints() []string {
	if len(c.MirrorURLs) > 0 {
		return c.MirrorURLs
	}
	if c.BaseURL != "" {
		return []string{c.BaseURL}
	}
	return []string{DefaultURL}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.timeout()}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 2 * time.Minute
}

func retryable(status int, err error) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
