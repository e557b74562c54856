// README: Bench cases: environment, migration, discovery, cart, slot, pickup flow, capacity race and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"

	benchRestaurant = "bench-r1"
	benchOwner      = "bench-owner"
	benchItem       = "bench-m1"
	ownerToken      = "restaurant:" + benchOwner
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

var (
	routeFrom = map[string]float64{"lat": 28.60, "lng": 77.20}
	routeTo   = map[string]float64{"lat": 28.70, "lng": 77.20}
)

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.db == nil {
				return fail("db not configured")
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.db.Ping(ctx); err != nil {
				return fail(err.Error())
			}
			return Result{Status: statusPass}
		}},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return fail("redis not configured")
			}
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return fail(err.Error())
			}
			return Result{Status: statusPass}
		}},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: tablesExist},
		{Name: "Seed: bench restaurant", Run: seedRestaurant},

		statusCase("API: health", http.MethodGet, "/health", "", nil, http.StatusOK),
		statusCase("API: missing token -> 401", http.MethodGet, "/api/orders", "", nil, http.StatusUnauthorized),
		statusCase("Discovery: invalid route -> 400", http.MethodPost, "/api/restaurants/on-route", "user:bench-u0",
			map[string]any{"from": routeFrom}, http.StatusBadRequest),
		{Name: "Discovery: on-route finds bench restaurant", Run: func(ctx context.Context, r *Runner) Result {
			return expectRestaurant(r.call(ctx, http.MethodPost, "/api/restaurants/on-route", "user:bench-u0", map[string]any{
				"from": routeFrom, "to": routeTo, "maxDetourKm": 2,
			}))
		}},
		{Name: "Discovery: nearby finds bench restaurant", Run: func(ctx context.Context, r *Runner) Result {
			return expectRestaurant(r.call(ctx, http.MethodGet, "/api/restaurants/nearby?lat=28.65&lng=77.20&radius_km=2", "user:bench-u0", nil))
		}},
		statusCase("Cart: validate", http.MethodPost, "/api/orders/validate-cart", "user:bench-u0",
			cart(2), http.StatusOK),
		statusCase("Cart: zero quantity -> 400", http.MethodPost, "/api/orders/validate-cart", "user:bench-u0",
			cart(0), http.StatusBadRequest),
		statusCase("Slot: lock", http.MethodPost, "/api/orders/lock-slot", "user:bench-u0",
			map[string]any{"restaurantId": benchRestaurant, "arrivalEtaMinutes": 20, "userLateByMinutes": 5}, http.StatusOK),

		{Name: "Flow: create, prepare, verify, rate", Run: pickupFlow},
		{Name: "Concurrency: capacity admission", Run: capacityRace},
		{Name: "Perf: on-route throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, http.MethodPost, "/api/restaurants/on-route", map[string]any{
				"from": routeFrom, "to": routeTo, "maxDetourKm": 5,
			})
		}},
	}
}

func cart(quantity int) map[string]any {
	return map[string]any{
		"restaurantId": benchRestaurant,
		"items":        []map[string]any{{"menuItemId": benchItem, "quantity": quantity}},
	}
}

func fail(note string) Result {
	return Result{Status: statusFail, Note: note}
}

type response struct {
	status  int
	body    map[string]any
	latency time.Duration
	err     error
}

// call sends one JSON request. Tokens are "role:uid"; the server must trust them.
func (r *Runner) call(ctx context.Context, method, path, token string, body any) response {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return response{err: err}
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return response{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return response{err: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := response{status: resp.StatusCode, latency: time.Since(start), body: map[string]any{}}
	_ = json.Unmarshal(raw, &out.body)
	return out
}

func statusCase(name, method, path, token string, body any, want int) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		resp := r.call(ctx, method, path, token, body)
		if resp.err != nil {
			return fail(resp.err.Error())
		}
		note := fmt.Sprintf("status=%d", resp.status)
		if resp.status != want {
			return Result{Status: statusFail, Latency: resp.latency, Note: note}
		}
		return Result{Status: statusPass, Latency: resp.latency, Note: note}
	}}
}

func expectRestaurant(resp response) Result {
	if resp.err != nil {
		return fail(resp.err.Error())
	}
	if resp.status != http.StatusOK {
		return Result{Status: statusFail, Latency: resp.latency, Note: fmt.Sprintf("status=%d", resp.status)}
	}
	list, _ := resp.body["restaurants"].([]any)
	for _, item := range list {
		if m, ok := item.(map[string]any); ok && m["restaurantId"] == benchRestaurant {
			return Result{Status: statusPass, Latency: resp.latency, Note: fmt.Sprintf("results=%d", len(list))}
		}
	}
	return Result{Status: statusFail, Latency: resp.latency, Note: "bench restaurant not listed"}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: statusSkip, Note: "apply-migration=false"}
	}
	if r.db == nil {
		return fail("db not configured")
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return fail(err.Error())
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return fail(err.Error())
		}
	}
	return Result{Status: statusPass}
}

func tablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return fail("db not configured")
	}
	b, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return fail(err.Error())
	}
	for _, t := range extractTables(string(b)) {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
		).Scan(&exists)
		if err != nil {
			return fail(err.Error())
		}
		if !exists {
			return fail("missing table: " + t)
		}
	}
	return Result{Status: statusPass}
}

// seedRestaurant resets the bench restaurant so reruns start from zero load.
func seedRestaurant(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return fail("db not configured")
	}
	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO restaurants (id, owner_id, name, lat, lng, avg_prep_time_minutes, accepts_orders, is_active,
			current_orders, max_concurrent_orders, same_side_of_road, parking_available)
		  VALUES ($1, $2, 'Bench Kitchen', 28.65, 77.2005, 12, TRUE, TRUE, 0, $3, TRUE, TRUE)
		  ON CONFLICT (id) DO UPDATE SET current_orders = 0, max_concurrent_orders = EXCLUDED.max_concurrent_orders,
		    accepts_orders = TRUE, is_active = TRUE`,
			[]any{benchRestaurant, benchOwner, r.cfg.Capacity}},
		{`INSERT INTO menu_items (id, restaurant_id, name, price, is_available, prep_time_minutes)
		  VALUES ($1, $2, 'Bench Thali', 99.00, TRUE, 10)
		  ON CONFLICT (id) DO UPDATE SET is_available = TRUE`,
			[]any{benchItem, benchRestaurant}},
		{`UPDATE orders SET status = 'cancelled', status_version = status_version + 1
		  WHERE restaurant_id = $1 AND status IN ('pending', 'confirmed', 'preparing', 'ready')`,
			[]any{benchRestaurant}},
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(ctx, s.sql, s.args...); err != nil {
			return fail(err.Error())
		}
	}
	if r.redis != nil {
		if err := r.redis.Del(ctx, "routebite:capacity:"+benchRestaurant).Err(); err != nil {
			return fail(err.Error())
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("capacity=%d", r.cfg.Capacity)}
}

func pickupFlow(ctx context.Context, r *Runner) Result {
	start := time.Now()
	created := r.call(ctx, http.MethodPost, "/api/orders", "user:bench-flow", map[string]any{
		"restaurantId":      benchRestaurant,
		"items":             []map[string]any{{"menuItemId": benchItem, "quantity": 1}},
		"arrivalEtaMinutes": 15,
	})
	if created.err != nil || created.status != http.StatusCreated {
		return fail(fmt.Sprintf("create status=%d err=%v", created.status, created.err))
	}
	id, _ := created.body["id"].(string)
	code, _ := created.body["pickupCode"].(string)
	base := "/api/orders/" + id

	for _, status := range []string{"confirmed", "preparing", "ready"} {
		if resp := r.call(ctx, http.MethodPut, base+"/status", ownerToken, map[string]any{"status": status}); resp.status != http.StatusOK {
			return fail(fmt.Sprintf("%s status=%d body=%v", status, resp.status, resp.body))
		}
	}
	if resp := r.call(ctx, http.MethodPost, base+"/verify-code", ownerToken, map[string]any{"code": code}); resp.status != http.StatusOK {
		return fail(fmt.Sprintf("verify status=%d body=%v", resp.status, resp.body))
	}
	if resp := r.call(ctx, http.MethodPost, base+"/verify-code", ownerToken, map[string]any{"code": code}); resp.status != http.StatusConflict {
		return fail(fmt.Sprintf("second verify status=%d, want 409", resp.status))
	}
	if resp := r.call(ctx, http.MethodPost, base+"/rating", "user:bench-flow", map[string]any{"rating": 5}); resp.status != http.StatusOK {
		return fail(fmt.Sprintf("rating status=%d", resp.status))
	}
	return Result{Status: statusPass, Latency: time.Since(start), Note: "order " + id}
}

// capacityRace fires Concurrency creates at once and expects exactly
// min(Capacity, Concurrency) admissions, then cancels them and expects the
// restaurant to be back at zero.
func capacityRace(ctx context.Context, r *Runner) Result {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted []string
		rejected int
		other    []int
	)
	startGate := make(chan struct{})
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-startGate
			user := fmt.Sprintf("user:bench-race-%d", i)
			resp := r.call(ctx, http.MethodPost, "/api/orders", user, map[string]any{
				"restaurantId": benchRestaurant,
				"items":        []map[string]any{{"menuItemId": benchItem, "quantity": 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch resp.status {
			case http.StatusCreated:
				id, _ := resp.body["id"].(string)
				admitted = append(admitted, user+"|"+id)
			case http.StatusConflict:
				rejected++
			default:
				other = append(other, resp.status)
			}
		}(i)
	}
	close(startGate)
	wg.Wait()

	want := min(r.cfg.Capacity, r.cfg.Concurrency)
	note := fmt.Sprintf("admitted=%d rejected=%d", len(admitted), rejected)
	if len(other) > 0 {
		return fail(fmt.Sprintf("%s unexpected=%v", note, other))
	}
	if len(admitted) != want {
		return fail(fmt.Sprintf("%s want admitted=%d", note, want))
	}

	for _, a := range admitted {
		user, id, _ := strings.Cut(a, "|")
		if resp := r.call(ctx, http.MethodPut, "/api/orders/"+id+"/status", user, map[string]any{"status": "cancelled"}); resp.status != http.StatusOK {
			return fail(fmt.Sprintf("cancel %s status=%d", id, resp.status))
		}
	}
	resp := r.call(ctx, http.MethodGet, "/api/restaurants/"+benchRestaurant+"/capacity", ownerToken, nil)
	if current, _ := resp.body["currentOrders"].(float64); resp.status != http.StatusOK || current != 0 {
		return fail(fmt.Sprintf("%s capacity after cancel=%v", note, resp.body))
	}
	return Result{Status: statusPass, Note: note}
}

func perfLoad(ctx context.Context, r *Runner, method, path string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				resp := r.call(ctx, method, path, "user:bench-perf", payload)
				mu.Lock()
				if resp.err != nil || resp.status >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return fail("no requests completed")
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

var createTable = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(sql string) []string {
	matches := createTable.FindAllStringSubmatch(sql, -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
