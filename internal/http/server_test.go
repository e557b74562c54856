// README: End-to-end tests of the gin surface over in-memory repositories.
package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"routebite/internal/apperr"
	"routebite/internal/config"
	httptransport "routebite/internal/http"
	"routebite/internal/infra"
	"routebite/internal/maps"
	"routebite/internal/modules/capacity"
	"routebite/internal/modules/matching"
	"routebite/internal/modules/order"
	"routebite/internal/modules/pricing"
	"routebite/internal/modules/restaurant"
	"routebite/internal/modules/slot"
	"routebite/internal/types"
)

type memOrders struct {
	mu     sync.Mutex
	orders map[types.ID]order.Order
	events []order.Event
}

func (r *memOrders) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = *o
	return nil
}

func (r *memOrders) Get(_ context.Context, id types.ID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.New(apperr.ErrNotFound, string(id))
	}
	return &o, nil
}

func (r *memOrders) Update(_ context.Context, o *order.Order, expectedVersion int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok || cur.StatusVersion != expectedVersion {
		return false, nil
	}
	next := *o
	next.StatusVersion = expectedVersion + 1
	r.orders[o.ID] = next
	return true, nil
}

func (r *memOrders) AppendEvent(_ context.Context, e *order.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *memOrders) Events(_ context.Context, id types.ID) ([]order.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Event
	for _, e := range r.events {
		if e.OrderID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memOrders) ListByUser(_ context.Context, userID types.ID, limit int) ([]order.Order, error) {
	return r.list(func(o order.Order) bool { return o.UserID == userID }, limit), nil
}

func (r *memOrders) ListByRestaurant(_ context.Context, restaurantID types.ID, statuses []order.Status, limit int) ([]order.Order, error) {
	return r.list(func(o order.Order) bool {
		for _, s := range statuses {
			if o.RestaurantID == restaurantID && o.Status == s {
				return true
			}
		}
		return false
	}, limit), nil
}

func (r *memOrders) list(keep func(order.Order) bool, limit int) []order.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []order.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

type staticSource map[types.ID]restaurant.Snapshot

func (s staticSource) Get(_ context.Context, id types.ID) (restaurant.Snapshot, error) {
	snap, ok := s[id]
	if !ok {
		return restaurant.Snapshot{}, apperr.New(apperr.ErrNotFound, string(id))
	}
	return snap, nil
}

func (s staticSource) ListActive(context.Context) ([]restaurant.Snapshot, error) {
	var out []restaurant.Snapshot
	for _, snap := range s {
		if snap.IsActive {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s staticSource) GetMany(_ context.Context, ids []types.ID) ([]restaurant.Snapshot, error) {
	var out []restaurant.Snapshot
	for _, id := range ids {
		if snap, ok := s[id]; ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

type staticCatalog map[types.ID]restaurant.MenuItem

func (c staticCatalog) MenuItems(_ context.Context, restaurantID types.ID, ids []types.ID) (map[types.ID]restaurant.MenuItem, error) {
	out := map[types.ID]restaurant.MenuItem{}
	for _, id := range ids {
		if it, ok := c[id]; ok && it.RestaurantID == restaurantID {
			out[id] = it
		}
	}
	return out, nil
}

func (c staticCatalog) Menu(_ context.Context, restaurantID types.ID) ([]restaurant.MenuItem, error) {
	var out []restaurant.MenuItem
	for _, it := range c {
		if it.RestaurantID == restaurantID && it.IsAvailable {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

type stubGeocoder struct{}

func (stubGeocoder) Geocode(_ context.Context, address string) (types.Point, error) {
	if strings.TrimSpace(address) == "Connaught Place" {
		return types.Point{Lat: 28.6315, Lng: 77.2167}, nil
	}
	if len(strings.TrimSpace(address)) < 3 {
		return types.Point{}, apperr.New(apperr.ErrInvalidRequest, "address too short")
	}
	return types.Point{}, apperr.New(apperr.ErrNotFound, "no location for address")
}

func (stubGeocoder) ReverseGeocode(_ context.Context, p types.Point) (maps.Address, error) {
	return maps.Address{FormattedAddress: "Connaught Place, New Delhi", City: "New Delhi", Country: "India", Location: p}, nil
}

type stubPreviewer struct {
	preview maps.Preview
	err     error
}

func (s stubPreviewer) Preview(context.Context, maps.PreviewRequest) (maps.Preview, error) {
	return s.preview, s.err
}

func newTestServer(t *testing.T, previewer stubPreviewer) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	src := staticSource{
		"r1": {
			ID: "r1", OwnerID: "owner1", Name: "Spice Garden",
			Location:           types.Point{Lat: 28.65, Lng: 77.2005},
			AvgPrepTimeMinutes: 12, AcceptsOrders: true, IsActive: true, MaxConcurrentOrders: 1,
		},
		"r2": {
			ID: "r2", OwnerID: "owner2", Name: "Far Away Dhaba",
			Location:           types.Point{Lat: 19.07, Lng: 72.87},
			AvgPrepTimeMinutes: 20, AcceptsOrders: true, IsActive: true, MaxConcurrentOrders: 5,
		},
	}
	catalog := staticCatalog{
		"m1": {ID: "m1", RestaurantID: "r1", Name: "Paneer Roll", Category: "Rolls", Price: decimal.RequireFromString("120.50"), IsAvailable: true, PrepTimeMinutes: 10},
		"m2": {ID: "m2", RestaurantID: "r1", Name: "Lassi", Category: "Drinks", Price: decimal.RequireFromString("60"), IsAvailable: true, PrepTimeMinutes: 2},
		"m3": {ID: "m3", RestaurantID: "r1", Name: "Aloo Roll", Category: "Rolls", Price: decimal.RequireFromString("80"), IsAvailable: false, PrepTimeMinutes: 8},
	}
	ledger := capacity.NewMemoryLedger()
	dir := capacity.NewDirectory(src, ledger)
	pricingSvc := pricing.NewService(catalog)
	orderSvc := order.NewService(
		&memOrders{orders: map[types.ID]order.Order{}},
		dir, pricingSvc, ledger,
		slot.NewPlanner(slot.DefaultHoldMinutes, nil),
		config.OrderConfig{},
	)
	srv := httptransport.NewServer(httptransport.ServerDeps{
		Order:     orderSvc,
		Matching:  matching.NewService(dir, nil, config.DefaultMatching(), nil),
		Pricing:   pricingSvc,
		Previewer: previewer,
		Geocoder:  stubGeocoder{},
		Directory: dir,
		Menu:      catalog,
		Ledger:    ledger,
		Verifier:  infra.InsecureVerifier{},
	})
	return srv.Routes()
}

func call(t *testing.T, h http.Handler, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func TestHealthIsPublic(t *testing.T) {
	h := newTestServer(t, stubPreviewer{})
	code, _ := call(t, h, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
	if code, _ := call(t, h, http.MethodGet, "/api/orders", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("api without token = %d, want 401", code)
	}
}

func TestPickupFlow(t *testing.T) {
	h := newTestServer(t, stubPreviewer{})
	const user, owner = "user:u1", "restaurant:owner1"

	code, body := call(t, h, http.MethodPost, "/api/orders", user, map[string]any{
		"restaurantId":      "r1",
		"items":             []map[string]any{{"menuItemId": "m1", "quantity": 2}},
		"arrivalEtaMinutes": 20,
	})
	if code != http.StatusCreated {
		t.Fatalf("create = %d %v", code, body)
	}
	id := body["id"].(string)
	pickupCode, _ := body["pickupCode"].(string)
	if len(pickupCode) != 4 {
		t.Fatalf("pickup code %q not shown to the owner of the order", pickupCode)
	}
	if body["status"] != "pending" || body["totalAmount"] != "241" {
		t.Fatalf("unexpected order: %v", body)
	}

	// Capacity of one is now used up.
	_, capBody := call(t, h, http.MethodGet, "/api/restaurants/r1/capacity", user, nil)
	if capBody["currentOrders"] != float64(1) || capBody["available"] != float64(0) {
		t.Fatalf("capacity after create: %v", capBody)
	}
	code, body = call(t, h, http.MethodPost, "/api/orders", "user:u2", map[string]any{
		"restaurantId": "r1",
		"items":        []map[string]any{{"menuItemId": "m1", "quantity": 1}},
	})
	if code != http.StatusConflict || body["error"] != apperr.ErrCapacityExceeded.Error() {
		t.Fatalf("second create = %d %v", code, body)
	}

	// The restaurant sees the order but not its code.
	code, body = call(t, h, http.MethodGet, "/api/orders/"+id, owner, nil)
	if code != http.StatusOK {
		t.Fatalf("owner get = %d", code)
	}
	if _, shown := body["pickupCode"]; shown {
		t.Fatal("pickup code must not be shown to the restaurant")
	}

	code, body = call(t, h, http.MethodPut, "/api/orders/"+id+"/status", owner, map[string]any{"status": "ready"})
	if code != http.StatusConflict || body["current"] != "pending" || body["requested"] != "ready" {
		t.Fatalf("skip to ready = %d %v", code, body)
	}
	for _, s := range []string{"confirmed", "preparing", "ready"} {
		if code, body := call(t, h, http.MethodPut, "/api/orders/"+id+"/status", owner, map[string]any{"status": s}); code != http.StatusOK {
			t.Fatalf("%s = %d %v", s, code, body)
		}
	}

	code, _ = call(t, h, http.MethodPost, "/api/orders/"+id+"/verify-code", owner, map[string]any{"code": wrongCode(pickupCode)})
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("wrong code = %d, want 422", code)
	}
	code, body = call(t, h, http.MethodPost, "/api/orders/"+id+"/verify-code", owner, map[string]any{"code": pickupCode})
	if code != http.StatusOK || body["status"] != "picked_up" {
		t.Fatalf("verify = %d %v", code, body)
	}
	code, _ = call(t, h, http.MethodPost, "/api/orders/"+id+"/verify-code", owner, map[string]any{"code": pickupCode})
	if code != http.StatusConflict {
		t.Fatalf("second verify = %d, want 409", code)
	}

	_, capBody = call(t, h, http.MethodGet, "/api/restaurants/r1/capacity", user, nil)
	if capBody["currentOrders"] != float64(0) {
		t.Fatalf("capacity after pickup: %v", capBody)
	}

	if code, _ := call(t, h, http.MethodPost, "/api/orders/"+id+"/rating", owner, map[string]any{"rating": 5}); code != http.StatusForbidden {
		t.Fatalf("restaurant rating = %d, want 403", code)
	}
	code, body = call(t, h, http.MethodPost, "/api/orders/"+id+"/rating", user, map[string]any{"rating": 5, "comment": "hot and fast"})
	if code != http.StatusOK || body["rating"] != float64(5) {
		t.Fatalf("rating = %d %v", code, body)
	}

	code, body = call(t, h, http.MethodGet, "/api/orders/"+id+"/events", user, nil)
	if code != http.StatusOK {
		t.Fatalf("events = %d", code)
	}
	if events := body["events"].([]any); len(events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(events))
	}

	_, body = call(t, h, http.MethodGet, "/api/orders", user, nil)
	if orders := body["orders"].([]any); len(orders) != 1 {
		t.Fatalf("expected one own order, got %v", orders)
	}
}

func wrongCode(code string) string {
	if code == "0000" {
		return "0001"
	}
	return "0000"
}

func TestOrderAccessControl(t *testing.T) {
	h := newTestServer(t, stubPreviewer{})
	code, body := call(t, h, http.MethodPost, "/api/orders", "user:u1", map[string]any{
		"restaurantId": "r1",
		"items":        []map[string]any{{"menuItemId": "m1", "quantity": 1}},
	})
	if code != http.StatusCreated {
		t.Fatalf("create = %d %v", code, body)
	}
	id := body["id"].(string)

	for _, token := range []string{"user:u2", "restaurant:owner2"} {
		if code, _ := call(t, h, http.MethodGet, "/api/orders/"+id, token, nil); code != http.StatusForbidden {
			t.Errorf("%s get = %d, want 403", token, code)
		}
	}
	if code, _ := call(t, h, http.MethodGet, "/api/orders/"+id, "admin:ops", nil); code != http.StatusOK {
		t.Errorf("admin get = %d, want 200", code)
	}
	if code, _ := call(t, h, http.MethodPost, "/api/orders", "restaurant:owner1", map[string]any{"restaurantId": "r1"}); code != http.StatusForbidden {
		t.Errorf("restaurant create = %d, want 403", code)
	}
	if code, _ := call(t, h, http.MethodGet, "/api/restaurants/r1/orders", "user:u1", nil); code != http.StatusForbidden {
		t.Errorf("user queue = %d, want 403", code)
	}
	code, body = call(t, h, http.MethodGet, "/api/restaurants/r1/orders?status=pending", "restaurant:owner1", nil)
	if code != http.StatusOK || len(body["orders"].([]any)) != 1 {
		t.Errorf("owner queue = %d %v", code, body)
	}
	if code, _ := call(t, h, http.MethodGet, "/api/orders/missing-order", "admin:ops", nil); code != http.StatusNotFound {
		t.Errorf("missing order = %d, want 404", code)
	}
	if code, _ := call(t, h, http.MethodGet, "/api/orders/bad$id", "admin:ops", nil); code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", code)
	}
}

func TestCartAndSlot(t *testing.T) {
	h := newTestServer(t, stubPreviewer{})

	code, body := call(t, h, http.MethodPost, "/api/orders/validate-cart", "user:u1", map[string]any{
		"restaurantId": "r1",
		"items":        []map[string]any{{"menuItemId": "m1", "quantity": 3}},
	})
	if code != http.StatusOK || body["totalAmount"] != "361.5" {
		t.Fatalf("validate cart = %d %v", code, body)
	}
	code, _ = call(t, h, http.MethodPost, "/api/orders/validate-cart", "user:u1", map[string]any{
		"restaurantId": "r1",
		"items":        []map[string]any{{"menuItemId": "m1", "quantity": 0}},
	})
	if code != http.StatusBadRequest {
		t.Fatalf("zero quantity = %d, want 400", code)
	}

	code, body = call(t, h, http.MethodPost, "/api/orders/lock-slot", "user:u1", map[string]any{
		"restaurantId": "r1", "arrivalEtaMinutes": 30, "userLateByMinutes": 5,
	})
	if code != http.StatusOK || body["canProceed"] != true {
		t.Fatalf("lock slot = %d %v", code, body)
	}
	code, _ = call(t, h, http.MethodPost, "/api/orders/lock-slot", "user:u1", map[string]any{
		"restaurantId": "r1", "arrivalEtaMinutes": -1,
	})
	if code != http.StatusBadRequest {
		t.Fatalf("negative eta = %d, want 400", code)
	}

	// r1 prepares in 12 minutes; a 12.5 minute ETA rounds to 13.
	code, body = call(t, h, http.MethodPost, "/api/orders/lock-slot", "user:u1", map[string]any{
		"restaurantId": "r1", "arrivalEtaMinutes": 12.5,
	})
	if code != http.StatusOK {
		t.Fatalf("fractional eta = %d %v", code, body)
	}
	ready, _ := time.Parse(time.RFC3339Nano, body["estimatedReadyTime"].(string))
	arrival, _ := time.Parse(time.RFC3339Nano, body["estimatedArrivalTime"].(string))
	if d := arrival.Sub(ready); d != time.Minute {
		t.Fatalf("arrival - ready = %v, want 1m", d)
	}
	code, body = call(t, h, http.MethodPost, "/api/orders/lock-slot", "user:u1", map[string]any{
		"restaurantId": "r1", "arrivalEtaMinutes": 10, "userLateByMinutes": -0.5,
	})
	if code != http.StatusBadRequest || !strings.Contains(body["error"].(string), "userLateByMinutes") {
		t.Fatalf("negative lateness = %d %v", code, body)
	}
	code, body = call(t, h, http.MethodPost, "/api/orders", "user:u1", map[string]any{
		"restaurantId":      "r1",
		"items":             []map[string]any{{"menuItemId": "m1", "quantity": 1}},
		"arrivalEtaMinutes": 7.25,
	})
	if code != http.StatusCreated {
		t.Fatalf("create with fractional eta = %d %v", code, body)
	}
}

func TestDiscovery(t *testing.T) {
	eta := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	h := newTestServer(t, stubPreviewer{preview: maps.Preview{Polyline: "abc", DistanceKm: 11.1, DurationMinutes: 25, ETA: eta}})

	code, body := call(t, h, http.MethodPost, "/api/restaurants/on-route", "user:u1", map[string]any{
		"from":        map[string]float64{"lat": 28.60, "lng": 77.20},
		"to":          map[string]float64{"lat": 28.70, "lng": 77.20},
		"maxDetourKm": 2,
	})
	if code != http.StatusOK {
		t.Fatalf("on-route = %d %v", code, body)
	}
	results := body["restaurants"].([]any)
	if len(results) != 1 || results[0].(map[string]any)["restaurantId"] != "r1" {
		t.Fatalf("on-route results: %v", results)
	}

	code, body = call(t, h, http.MethodPost, "/api/restaurants/on-route", "user:u1", map[string]any{
		"from": map[string]float64{"lat": 28.60, "lng": 77.20},
	})
	if code != http.StatusBadRequest || body["error"] != apperr.ErrInvalidRequest.Error() {
		t.Fatalf("missing to = %d %v", code, body)
	}

	code, body = call(t, h, http.MethodGet, "/api/restaurants/nearby?lat=28.65&lng=77.20&radius_km=3", "user:u1", nil)
	if code != http.StatusOK || len(body["restaurants"].([]any)) != 1 {
		t.Fatalf("nearby = %d %v", code, body)
	}
	if code, _ := call(t, h, http.MethodGet, "/api/restaurants/nearby?lat=abc&lng=77.20", "user:u1", nil); code != http.StatusBadRequest {
		t.Fatalf("bad lat = %d, want 400", code)
	}

	code, body = call(t, h, http.MethodPost, "/api/routes/preview", "user:u1", map[string]any{
		"from":        map[string]float64{"lat": 28.60, "lng": 77.20},
		"to":          map[string]float64{"lat": 28.70, "lng": 77.20},
		"maxDetourKm": 2,
	})
	if code != http.StatusOK || body["distanceKm"] != 11.1 || body["transportMode"] != "car" || body["maxDetourKm"] != float64(2) {
		t.Fatalf("preview = %d %v", code, body)
	}
	// Omitted budgets fall back to the configured defaults.
	code, body = call(t, h, http.MethodPost, "/api/restaurants/on-route", "user:u1", map[string]any{
		"from": map[string]float64{"lat": 28.60, "lng": 77.20},
		"to":   map[string]float64{"lat": 28.70, "lng": 77.20},
	})
	if code != http.StatusOK || len(body["restaurants"].([]any)) != 1 {
		t.Fatalf("on-route without maxDetourKm = %d %v", code, body)
	}
	code, body = call(t, h, http.MethodPost, "/api/routes/preview", "user:u1", map[string]any{
		"from": map[string]float64{"lat": 28.60, "lng": 77.20},
		"to":   map[string]float64{"lat": 28.70, "lng": 77.20},
	})
	if code != http.StatusOK || body["maxDetourKm"] != float64(5) || body["maxWaitMinutes"] != float64(10) {
		t.Fatalf("preview defaults = %d %v", code, body)
	}
}

func TestRestaurantDetailAndMenu(t *testing.T) {
	h := newTestServer(t, stubPreviewer{})

	code, body := call(t, h, http.MethodGet, "/api/restaurants/r1", "user:u1", nil)
	if code != http.StatusOK || body["name"] != "Spice Garden" || body["orderable"] != true || body["currentOrders"] != float64(0) {
		t.Fatalf("detail = %d %v", code, body)
	}
	if _, leaked := body["ownerId"]; leaked {
		t.Fatalf("owner id must not be exposed: %v", body)
	}

	// Filling the single slot shows up in the detail view.
	if code, body := call(t, h, http.MethodPost, "/api/orders", "user:u1", map[string]any{
		"restaurantId": "r1",
		"items":        []map[string]any{{"menuItemId": "m1", "quantity": 1}},
	}); code != http.StatusCreated {
		t.Fatalf("create = %d %v", code, body)
	}
	_, body = call(t, h, http.MethodGet, "/api/restaurants/r1", "user:u1", nil)
	if body["currentOrders"] != float64(1) || body["orderable"] != false {
		t.Fatalf("detail at capacity: %v", body)
	}

	code, body = call(t, h, http.MethodGet, "/api/restaurants/r1/menu", "user:u1", nil)
	if code != http.StatusOK {
		t.Fatalf("menu = %d %v", code, body)
	}
	items := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 available items, got %v", items)
	}
	first, second := items[0].(map[string]any), items[1].(map[string]any)
	if first["id"] != "m2" || first["category"] != "Drinks" || second["id"] != "m1" || second["price"] != "120.5" {
		t.Fatalf("menu order: %v", items)
	}

	if code, _ := call(t, h, http.MethodGet, "/api/restaurants/r9", "user:u1", nil); code != http.StatusNotFound {
		t.Fatalf("missing detail = %d, want 404", code)
	}
	if code, _ := call(t, h, http.MethodGet, "/api/restaurants/r9/menu", "user:u1", nil); code != http.StatusNotFound {
		t.Fatalf("missing menu = %d, want 404", code)
	}
	code, body = call(t, h, http.MethodGet, "/api/restaurants/r2/menu", "user:u1", nil)
	if code != http.StatusOK || len(body["items"].([]any)) != 0 {
		t.Fatalf("empty menu = %d %v", code, body)
	}
}

func TestGeocoding(t *testing.T) {
	h := newTestServer(t, stubPreviewer{})

	code, body := call(t, h, http.MethodGet, "/api/locations/geocode?address=Connaught+Place", "user:u1", nil)
	if code != http.StatusOK {
		t.Fatalf("geocode = %d %v", code, body)
	}
	loc := body["location"].(map[string]any)
	if loc["lat"] != 28.6315 || loc["lng"] != 77.2167 {
		t.Fatalf("geocode location: %v", loc)
	}
	if code, _ := call(t, h, http.MethodGet, "/api/locations/geocode?address=ab", "user:u1", nil); code != http.StatusBadRequest {
		t.Fatalf("short address = %d, want 400", code)
	}
	if code, _ := call(t, h, http.MethodGet, "/api/locations/geocode?address=Atlantis", "user:u1", nil); code != http.StatusNotFound {
		t.Fatalf("unknown address = %d, want 404", code)
	}

	code, body = call(t, h, http.MethodGet, "/api/locations/reverse?lat=28.6315&lng=77.2167", "user:u1", nil)
	if code != http.StatusOK || body["city"] != "New Delhi" || body["formattedAddress"] != "Connaught Place, New Delhi" {
		t.Fatalf("reverse = %d %v", code, body)
	}
	if code, _ := call(t, h, http.MethodGet, "/api/locations/reverse?lat=north", "user:u1", nil); code != http.StatusBadRequest {
		t.Fatalf("bad reverse = %d, want 400", code)
	}
}

func TestPreviewProviderDown(t *testing.T) {
	h := newTestServer(t, stubPreviewer{err: apperr.New(apperr.ErrDependencyUnavailable, "maps api")})
	code, body := call(t, h, http.MethodPost, "/api/routes/preview", "user:u1", map[string]any{
		"from": map[string]float64{"lat": 28.60, "lng": 77.20},
		"to":   map[string]float64{"lat": 28.70, "lng": 77.20},
	})
	if code != http.StatusServiceUnavailable || body["error"] != apperr.ErrDependencyUnavailable.Error() {
		t.Fatalf("preview = %d %v", code, body)
	}
}
