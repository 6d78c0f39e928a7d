package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("ADDR", "")
	t.Setenv("GEOCODE_H3_RES", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := FromEnv()
	if cfg.Addr != ":8050" {
		t.Fatalf("addr=%q want :8050", cfg.Addr)
	}
	if cfg.Auth.Username != "admin" || cfg.Auth.Password != "password" {
		t.Fatalf("unexpected default credentials: %+v", cfg.Auth)
	}
	if cfg.Geocode.Timeout != 3*time.Second {
		t.Fatalf("geocode timeout=%v want 3s", cfg.Geocode.Timeout)
	}
	if cfg.Geocode.H3Res != 9 {
		t.Fatalf("h3 res=%d want 9", cfg.Geocode.H3Res)
	}
	if cfg.RedisAddr != "" {
		t.Fatalf("redis should be disabled by default, got %q", cfg.RedisAddr)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("ADDR", ":9999")
	t.Setenv("GEOCODE_TIMEOUT", "750ms")
	t.Setenv("GEOCODE_H3_RES", "42")
	t.Setenv("EVENTS_ENABLED", "yes")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")

	cfg := FromEnv()
	if cfg.Addr != ":9999" {
		t.Fatalf("addr=%q", cfg.Addr)
	}
	if cfg.Geocode.Timeout != 750*time.Millisecond {
		t.Fatalf("timeout=%v", cfg.Geocode.Timeout)
	}
	if cfg.Geocode.H3Res != 9 {
		t.Fatalf("out of range res should fall back to 9, got %d", cfg.Geocode.H3Res)
	}
	if !cfg.Events.Enabled {
		t.Fatal("events should be enabled")
	}
	got := cfg.Events.BrokerList()
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("brokers=%v", got)
	}
}
