// README: Entry point; loads config, wires services, starts the HTTP server and shuts it down on signal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"routebite/internal/config"
	httptransport "routebite/internal/http"
	"routebite/internal/infra"
	"routebite/internal/maps"
	"routebite/internal/modules/capacity"
	"routebite/internal/modules/location"
	"routebite/internal/modules/matching"
	"routebite/internal/modules/order"
	"routebite/internal/modules/pricing"
	"routebite/internal/modules/restaurant"
	"routebite/internal/modules/slot"
	"routebite/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("routebite-api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	telemetry.InitLogger("routebite-api", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	restaurants := restaurant.NewStore(dbPool, cfg.Directory.Timeout)
	ledger, dir, err := newCapacity(cfg.Capacity.Backend, dbPool, redisClient, restaurants)
	if err != nil {
		return err
	}

	pricingSvc := pricing.NewService(restaurants)
	orderSvc := order.NewService(
		order.NewStore(dbPool), dir, pricingSvc, ledger,
		slot.NewPlanner(cfg.Slot.HoldMinutes, nil), cfg.Order,
	)

	var geo matching.GeoIndex
	if cfg.Matching.UseGeoIndex {
		geo = location.NewStore(redisClient)
	}
	matchingSvc := matching.NewService(dir, geo, cfg.Matching, nil)
	if cfg.Matching.UseGeoIndex {
		n, err := matchingSvc.RebuildIndex(ctx)
		if err != nil {
			return fmt.Errorf("rebuild geo index: %w", err)
		}
		slog.Info("geo index rebuilt", "restaurants", n)
	}

	routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
	if err != nil {
		return err
	}
	geocodeSvc, err := maps.NewGeocodeService(cfg.Maps.APIKey, cfg.Maps.Region)
	if err != nil {
		return err
	}
	if cfg.Maps.APIKey == "" {
		slog.Warn("ROUTEBITE_MAPS_API_KEY not set; route preview and geocoding are unavailable")
	}

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Order:     orderSvc,
		Matching:  matchingSvc,
		Pricing:   pricingSvc,
		Previewer: routeSvc,
		Geocoder:  geocodeSvc,
		Directory: dir,
		Menu:      restaurants,
		Ledger:    ledger,
		Verifier:  verifier,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTP.Addr, "capacity_backend", cfg.Capacity.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newVerifier(ctx context.Context, cfg config.Config) (infra.TokenVerifier, error) {
	if cfg.Auth.Disabled {
		slog.Warn("auth disabled; bearer tokens are trusted as role:uid")
		return infra.InsecureVerifier{}, nil
	}
	if cfg.Firebase.ProjectID == "" {
		return nil, errors.New("ROUTEBITE_FIREBASE_PROJECT_ID is required unless ROUTEBITE_AUTH_DISABLED=true")
	}
	v, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	return v, nil
}

// newCapacity picks the ledger. Only the postgres ledger writes restaurants.current_orders,
// so the others get a directory that reads counts from the ledger.
func newCapacity(backend string, db *pgxpool.Pool, rdb *redis.Client, restaurants *restaurant.Store) (capacity.Ledger, capacity.Source, error) {
	switch backend {
	case "", "postgres":
		return capacity.NewPostgresLedger(db), restaurants, nil
	case "redis":
		l := capacity.NewRedisLedger(rdb)
		return l, capacity.NewDirectory(restaurants, l), nil
	case "memory":
		l := capacity.NewMemoryLedger()
		return l, capacity.NewDirectory(restaurants, l), nil
	default:
		return nil, nil, fmt.Errorf("unknown capacity backend %q", backend)
	}
}
