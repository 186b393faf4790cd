package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("THERAPY_PRODUCTS", "")
	t.Setenv("FOLLOWUP_DAY6_DELAY", "")
	cfg := Load()
	if cfg.Port != "5000" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.GoogleCalendarID != "primary" {
		t.Fatalf("expected primary calendar, got %s", cfg.GoogleCalendarID)
	}
	if len(cfg.TherapyProducts) != 2 {
		t.Fatalf("expected two default therapy products, got %v", cfg.TherapyProducts)
	}
	if cfg.FollowupDay6Delay != 144*time.Hour {
		t.Fatalf("expected 6 day delay, got %s", cfg.FollowupDay6Delay)
	}
	if cfg.HorizonDays != 7 || cfg.MaxSlots != 10 {
		t.Fatalf("expected 7 day horizon and 10 slots, got %d/%d", cfg.HorizonDays, cfg.MaxSlots)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SUBSCRIBERS", " 5215511111111, ,5215522222222 ")
	t.Setenv("PENDING_BOOKING_TTL", "30m")
	t.Setenv("USE_MEMORY_CALENDAR", "true")
	t.Setenv("WORKER_COUNT", "nope")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if len(cfg.Subscribers) != 2 || cfg.Subscribers[1] != "5215522222222" {
		t.Fatalf("unexpected subscribers %v", cfg.Subscribers)
	}
	if cfg.PendingBookingTTL != 30*time.Minute {
		t.Fatalf("expected ttl override, got %s", cfg.PendingBookingTTL)
	}
	if !cfg.UseMemoryCalendar {
		t.Fatal("expected memory calendar enabled")
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.WorkerCount)
	}
}

func TestIsTherapyProduct(t *testing.T) {
	cfg := &Config{TherapyProducts: []string{"Terapia individual"}}
	if !cfg.IsTherapyProduct(" terapia INDIVIDUAL ") {
		t.Fatal("expected case-insensitive match")
	}
	if cfg.IsTherapyProduct("El Método") {
		t.Fatal("book should not be a therapy product")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	if cfg.Location() != time.UTC {
		t.Fatal("expected UTC fallback")
	}
}
