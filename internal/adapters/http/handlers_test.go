package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/walkguide/internal/adapters/catalog"
	handler "github.com/samirrijal/walkguide/internal/adapters/http"
	"github.com/samirrijal/walkguide/internal/adapters/memory"
	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/core/usecases"
)

var marienplatz = domain.GeoPoint{Lat: 48.1372, Lon: 11.5755}

// ---- Mocks ----

// mockPlaceRepo serves the Munich catalog unless a fn field overrides a call.
type mockPlaceRepo struct {
	*catalog.Store
	categoriesFn func(ctx context.Context) ([]string, error)
}

func (m *mockPlaceRepo) Categories(ctx context.Context) ([]string, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return m.Store.Categories(ctx)
}

type mockPublisher struct {
	mu        sync.Mutex
	positions []domain.PositionUpdate
}

func (m *mockPublisher) PublishDiscovery(ctx context.Context, ev *domain.DiscoveryEvent) error {
	return nil
}

func (m *mockPublisher) PublishPosition(ctx context.Context, u *domain.PositionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = append(m.positions, *u)
	return nil
}

// ---- Test helpers ----

func munichRepo(t *testing.T) *mockPlaceRepo {
	t.Helper()
	store, err := catalog.Open("../../../data/places-in-munich.csv")
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	return &mockPlaceRepo{Store: store}
}

func makeDeps(t *testing.T, opts ...func(*mockPlaceRepo)) *handler.Dependencies {
	t.Helper()
	repo := munichRepo(t)
	for _, o := range opts {
		o(repo)
	}
	walks := usecases.NewWalkService(repo, nil, nil, usecases.WalkServiceOptions{Anchor: marienplatz})
	discovery, err := usecases.NewDiscoveryService(walks, memory.NewSessionStore(0), nil, usecases.DiscoveryOptions{
		ThresholdKm:     0.3,
		SimulationStart: domain.GeoPoint{Lat: 48.1351, Lon: 11.575},
	})
	if err != nil {
		t.Fatalf("discovery service: %v", err)
	}
	return &handler.Dependencies{Walks: walks, Discovery: discovery}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (int, []byte, map[string][]string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, b, resp.Header
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var apiErr handler.APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		t.Fatalf("decode error body %s: %v", body, err)
	}
	return apiErr.Code
}

// ---- Catalog ----

func TestListCategories(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body, _ := doJSON(t, app, "GET", "/v1/categories", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var cats []string
	json.Unmarshal(body, &cats)
	if strings.Join(cats, ",") != "Nature,Historical,Art" {
		t.Errorf("unexpected categories %v", cats)
	}
}

func TestListCategories_RepoError(t *testing.T) {
	app := setupApp(makeDeps(t, func(r *mockPlaceRepo) {
		r.categoriesFn = func(ctx context.Context) ([]string, error) {
			return nil, errors.New("connection reset")
		}
	}))

	status, body, _ := doJSON(t, app, "GET", "/v1/categories", "")
	if status != 500 {
		t.Fatalf("expected 500, got %d", status)
	}
	if code := errorCode(t, body); code != "internal_error" {
		t.Errorf("expected internal_error, got %s", code)
	}
	if strings.Contains(string(body), "connection reset") {
		t.Error("internal error details leaked to the client")
	}
}

func TestListPlaces_Pagination(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body, header := doJSON(t, app, "GET", "/v1/places?category=Art&offset=2&limit=2", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result struct {
		Data       []domain.PointOfInterest `json:"data"`
		Pagination handler.Pagination       `json:"pagination"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if result.Pagination.Total != 5 || len(result.Data) != 2 {
		t.Errorf("expected 2 of 5 art places, got %d of %d", len(result.Data), result.Pagination.Total)
	}
	if result.Data[0].Name != "Street Art Museum (MUCA)" {
		t.Errorf("expected catalog order, got %s first", result.Data[0].Name)
	}
	link := strings.Join(header["Link"], ",")
	if !strings.Contains(link, "category=Art") || !strings.Contains(link, `rel="next"`) {
		t.Errorf("unexpected Link header %q", link)
	}
}

func TestGetPlace(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body, _ := doJSON(t, app, "GET", "/v1/places/Residenz%20M%C3%BCnchen", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var p domain.PointOfInterest
	json.Unmarshal(body, &p)
	if p.Category != "Historical" {
		t.Errorf("unexpected place %+v", p)
	}

	status, body, _ = doJSON(t, app, "GET", "/v1/places/Olympiapark", "")
	if status != 404 || errorCode(t, body) != "not_found" {
		t.Errorf("expected 404 not_found, got %d %s", status, body)
	}
}

// ---- Walks ----

func TestGuidedWalk(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body, _ := doJSON(t, app, "GET", "/v1/walks/guided?category=Historical", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var route domain.WalkRoute
	if err := json.Unmarshal(body, &route); err != nil {
		t.Fatal(err)
	}
	if len(route.Stops) != 5 || route.Stops[0].Name != "Alter Peter" {
		t.Errorf("expected 5 stops starting at Alter Peter, got %+v", route.Stops)
	}
	if route.PathSource != domain.PathStraight || route.DistanceKm <= 0 || route.DurationMin <= 0 {
		t.Errorf("unexpected route summary %+v", route)
	}
}

func TestGuidedWalk_RequiresCategory(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body, _ := doJSON(t, app, "GET", "/v1/walks/guided", "")
	if status != 400 || errorCode(t, body) != "bad_request" {
		t.Errorf("expected 400 bad_request, got %d %s", status, body)
	}
}

func TestGuidedWalk_KML(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body, header := doJSON(t, app, "GET", "/v1/walks/guided.kml?category=Art", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if ct := strings.Join(header["Content-Type"], ""); !strings.Contains(ct, "kml") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(string(body), "<Placemark>") {
		t.Error("expected placemarks in KML body")
	}
}

func TestLegacyRoute_IsDeprecated(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, _, header := doJSON(t, app, "GET", "/v1/route?category=Nature", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if strings.Join(header["Deprecation"], "") != "true" || len(header["Sunset"]) == 0 {
		t.Errorf("expected deprecation headers, got %v", header)
	}
	if !strings.Contains(strings.Join(header["Link"], ""), "/v1/walks/guided") {
		t.Errorf("expected successor link, got %v", header["Link"])
	}
}

func TestMarkers(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body, _ := doJSON(t, app, "GET", "/v1/markers?category=Historical", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var markers []domain.Marker
	json.Unmarshal(body, &markers)
	if len(markers) != 5 {
		t.Fatalf("expected 5 markers, got %d", len(markers))
	}
	for _, m := range markers {
		if m.Radius < 50 || m.Radius > 150 {
			t.Errorf("%s: radius %v out of range", m.Name, m.Radius)
		}
	}

	for _, q := range []string{
		"lat=48.1",
		"category=Historical&lat=abc&lon=xyz",
		"category=Historical&lat=48.1&lon=11.5e",
	} {
		status, body, _ := doJSON(t, app, "GET", "/v1/markers?"+q, "")
		if status != 400 {
			t.Errorf("%s: expected 400, got %d", q, status)
			continue
		}
		if code := errorCode(t, body); code != "bad_request" {
			t.Errorf("%s: expected bad_request, got %s", q, code)
		}
	}
}

// ---- Sessions ----

func createSession(t *testing.T, app *fiber.App, category string) string {
	t.Helper()
	status, body, header := doJSON(t, app, "POST", "/v1/sessions", `{"category":"`+category+`"}`)
	if status != 201 {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var sess domain.Session
	json.Unmarshal(body, &sess)
	if sess.ID == "" || strings.Join(header["Location"], "") != "/v1/sessions/"+sess.ID {
		t.Fatalf("unexpected session response %s (%v)", body, header["Location"])
	}
	return sess.ID
}

func TestSessionLifecycle(t *testing.T) {
	app := setupApp(makeDeps(t))
	id := createSession(t, app, "Historical")

	status, body, _ := doJSON(t, app, "POST", "/v1/sessions/"+id+"/positions", `{"lat":48.1372,"lon":11.5755}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var res domain.ProximityResult
	json.Unmarshal(body, &res)
	if res.State != domain.NewlyVisited || res.Nearby == nil || res.Nearby.Name != "Alter Peter" {
		t.Fatalf("expected Alter Peter newly visited, got %s", body)
	}

	_, body, _ = doJSON(t, app, "POST", "/v1/sessions/"+id+"/positions", `{"lat":48.1372,"lon":11.5755}`)
	json.Unmarshal(body, &res)
	if res.State != domain.Revisited {
		t.Errorf("expected revisited, got %s", res.State)
	}

	status, body, header := doJSON(t, app, "GET", "/v1/sessions/"+id, "")
	if status != 200 || !strings.Contains(string(body), `"visited":["Alter Peter"]`) {
		t.Errorf("unexpected session %d %s", status, body)
	}
	if cc := strings.Join(header["Cache-Control"], ""); cc != "no-store" {
		t.Errorf("expected no-store, got %q", cc)
	}

	status, _, _ = doJSON(t, app, "DELETE", "/v1/sessions/"+id, "")
	if status != 204 {
		t.Errorf("expected 204, got %d", status)
	}
	status, _, _ = doJSON(t, app, "GET", "/v1/sessions/"+id, "")
	if status != 404 {
		t.Errorf("expected 404 after delete, got %d", status)
	}
}

func TestUpdatePosition_Validation(t *testing.T) {
	app := setupApp(makeDeps(t))
	id := createSession(t, app, "")

	tests := []struct {
		name string
		body string
	}{
		{"missing lon", `{"lat":48.1}`},
		{"lat out of range", `{"lat":91,"lon":11.5}`},
		{"lon out of range", `{"lat":48.1,"lon":-181}`},
		{"not json", `lat=48`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body, _ := doJSON(t, app, "POST", "/v1/sessions/"+id+"/positions", tt.body)
			if status != 400 || errorCode(t, body) != "bad_request" {
				t.Errorf("expected 400 bad_request, got %d %s", status, body)
			}
		})
	}
}

func TestUpdatePosition_UnknownSession(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, body, _ := doJSON(t, app, "POST", "/v1/sessions/nope/positions", `{"lat":48.1,"lon":11.5}`)
	if status != 404 || errorCode(t, body) != "not_found" {
		t.Errorf("expected 404 not_found, got %d %s", status, body)
	}
}

func TestUpdatePosition_Async(t *testing.T) {
	deps := makeDeps(t)
	app := setupApp(deps)
	id := createSession(t, app, "")

	status, _, _ := doJSON(t, app, "POST", "/v1/sessions/"+id+"/positions?async=true", `{"lat":48.1,"lon":11.5}`)
	if status != 503 {
		t.Errorf("expected 503 without a queue, got %d", status)
	}

	pub := &mockPublisher{}
	deps.Positions = pub
	app = setupApp(deps)

	status, body, _ := doJSON(t, app, "POST", "/v1/sessions/"+id+"/positions?async=true", `{"lat":48.1,"lon":11.5}`)
	if status != 202 {
		t.Fatalf("expected 202, got %d: %s", status, body)
	}
	if len(pub.positions) != 1 || pub.positions[0].SessionID != id {
		t.Errorf("expected one queued update, got %+v", pub.positions)
	}
}

func TestSimulate(t *testing.T) {
	app := setupApp(makeDeps(t))
	id := createSession(t, app, "Historical")

	status, body, _ := doJSON(t, app, "POST", "/v1/sessions/"+id+"/simulate", `{"progress":0}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var out struct {
		Position domain.GeoPoint        `json:"position"`
		Result   domain.ProximityResult `json:"result"`
	}
	json.Unmarshal(body, &out)
	if out.Position != (domain.GeoPoint{Lat: 48.1351, Lon: 11.575}) {
		t.Errorf("unexpected start position %+v", out.Position)
	}

	status, _, _ = doJSON(t, app, "POST", "/v1/sessions/"+id+"/simulate", `{"progress":150}`)
	if status != 400 {
		t.Errorf("expected 400 for progress 150, got %d", status)
	}
	status, _, _ = doJSON(t, app, "POST", "/v1/sessions/"+id+"/simulate", `{}`)
	if status != 400 {
		t.Errorf("expected 400 for missing progress, got %d", status)
	}
}

// ---- GraphQL ----

func TestGraphQL(t *testing.T) {
	app := setupApp(makeDeps(t))
	id := createSession(t, app, "")

	status, body, _ := doJSON(t, app, "POST", "/graphql",
		`{"query":"{ categories guidedWalk(category: \"Art\") { stops { name } path_source } }"}`)
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var q struct {
		Data struct {
			Categories []string `json:"categories"`
			GuidedWalk struct {
				Stops []struct {
					Name string `json:"name"`
				} `json:"stops"`
				PathSource string `json:"path_source"`
			} `json:"guidedWalk"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}
	if err := json.Unmarshal(body, &q); err != nil {
		t.Fatal(err)
	}
	if len(q.Errors) != 0 || len(q.Data.Categories) != 3 || len(q.Data.GuidedWalk.Stops) != 5 {
		t.Errorf("unexpected graphql result %s", body)
	}
	if q.Data.GuidedWalk.PathSource != "straight" {
		t.Errorf("expected straight path, got %q", q.Data.GuidedWalk.PathSource)
	}

	mutation := `{"query":"mutation($s: String!) { updatePosition(session: $s, lat: 48.1372, lon: 11.5755) { state nearby { name } } }","variables":{"s":"` + id + `"}}`
	_, body, _ = doJSON(t, app, "POST", "/graphql", mutation)
	if !strings.Contains(string(body), `"state":"newly_visited"`) || !strings.Contains(string(body), "Alter Peter") {
		t.Errorf("unexpected mutation result %s", body)
	}
}

// ---- Middleware ----

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps(t))

	_, _, header := doJSON(t, app, "GET", "/v1/categories", "")
	etag := strings.Join(header["Etag"], "")
	if etag == "" {
		t.Fatal("expected an ETag")
	}

	req := httptest.NewRequest("GET", "/v1/categories", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestHealthAndReady(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, _, _ := doJSON(t, app, "GET", "/v1/health", "")
	if status != 200 {
		t.Errorf("expected 200 from health, got %d", status)
	}

	status, body, _ := doJSON(t, app, "GET", "/v1/ready", "")
	if status != 200 {
		t.Fatalf("expected ready without optional backends, got %d: %s", status, body)
	}
	var ready struct {
		Checks map[string]string `json:"checks"`
	}
	json.Unmarshal(body, &ready)
	if ready.Checks["catalog"] != "ok" || ready.Checks["database"] != "not configured" {
		t.Errorf("unexpected checks %v", ready.Checks)
	}
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := setupApp(makeDeps(t))

	status, _, _ := doJSON(t, app, "GET", "/ws", "")
	if status != fiber.StatusUpgradeRequired {
		t.Errorf("expected 426, got %d", status)
	}
}

func TestDocs(t *testing.T) {
	deps := makeDeps(t)
	deps.SpecPath = "../../../api/openapi.yaml"
	app := setupApp(deps)

	status, body, header := doJSON(t, app, "GET", "/docs/openapi.json", "")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.HasPrefix(header["Content-Type"][0], "application/json") {
		t.Errorf("unexpected content type %v", header["Content-Type"])
	}
	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Info.Title != "Walkguide API" {
		t.Errorf("unexpected title %q", doc.Info.Title)
	}

	status, _, _ = doJSON(t, app, "GET", "/docs", "")
	if status != 200 {
		t.Errorf("expected 200 from /docs, got %d", status)
	}
}

func TestDocs_MissingDocument(t *testing.T) {
	deps := makeDeps(t)
	deps.SpecPath = "testdata/absent.yaml"
	app := setupApp(deps)

	status, _, _ := doJSON(t, app, "GET", "/docs/openapi.yaml", "")
	if status != 404 {
		t.Errorf("expected 404, got %d", status)
	}
}
