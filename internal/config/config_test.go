package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROUTEBITE_HTTP_ADDR", "")
	t.Setenv("ROUTEBITE_SLOT_HOLD_MINUTES", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Slot.HoldMinutes != 15 {
		t.Errorf("HoldMinutes = %d", cfg.Slot.HoldMinutes)
	}
	if cfg.Order.PickupCodeTTL != 2*time.Hour {
		t.Errorf("PickupCodeTTL = %v", cfg.Order.PickupCodeTTL)
	}
	if cfg.Matching.DetourPenaltyPerKm != 5 || cfg.Matching.MismatchPenaltyPerMin != 2 {
		t.Errorf("unexpected matching penalties: %+v", cfg.Matching)
	}
	if !cfg.Matching.IncludeNonAccepting {
		t.Error("non-accepting restaurants should be surfaced by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ROUTEBITE_SLOT_HOLD_MINUTES", "20")
	t.Setenv("ROUTEBITE_PICKUP_CODE_TTL", "90m")
	t.Setenv("ROUTEBITE_MATCH_DETOUR_PENALTY", "7.5")
	t.Setenv("ROUTEBITE_MATCH_INCLUDE_NON_ACCEPTING", "false")
	t.Setenv("ROUTEBITE_CAPACITY_BACKEND", "redis")
	t.Setenv("ROUTEBITE_DIRECTORY_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Slot.HoldMinutes != 20 {
		t.Errorf("HoldMinutes = %d", cfg.Slot.HoldMinutes)
	}
	if cfg.Order.PickupCodeTTL != 90*time.Minute {
		t.Errorf("PickupCodeTTL = %v", cfg.Order.PickupCodeTTL)
	}
	if cfg.Matching.DetourPenaltyPerKm != 7.5 {
		t.Errorf("DetourPenaltyPerKm = %v", cfg.Matching.DetourPenaltyPerKm)
	}
	if cfg.Matching.IncludeNonAccepting {
		t.Error("IncludeNonAccepting override ignored")
	}
	if cfg.Capacity.Backend != "redis" {
		t.Errorf("Capacity.Backend = %q", cfg.Capacity.Backend)
	}
	if cfg.Directory.Timeout != 2*time.Second {
		t.Errorf("malformed duration should fall back to default, got %v", cfg.Directory.Timeout)
	}
}
