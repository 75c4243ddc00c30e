package config

import (
	"reflect"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"APP_PORT", "INPUT_SOURCE", "DISPATCH_POLICY", "SKIP_MALFORMED", "CONSOLE_TYPES", "JWT_SECRET", "CONSOLE_STATS_SEC"} {
		t.Setenv(key, "")
	}
	t.Setenv("APP_PORT", "8080")
	t.Setenv("INPUT_SOURCE", "stdin")
	t.Setenv("DISPATCH_POLICY", "abort")

	cfg := LoadConfig()
	if cfg.AppPort != "8080" || cfg.InputSource != "stdin" || cfg.DispatchPolicy != "abort" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.SkipMalformed {
		t.Fatalf("expected malformed payloads to be skipped when SKIP_MALFORMED is unparseable")
	}
	if cfg.ConsoleTypes != nil {
		t.Fatalf("expected no console type filter, got %v", cfg.ConsoleTypes)
	}
	if !cfg.SkipCallbackErrors || cfg.StreamRateLimit != 30 || cfg.ConsoleMoveIntervalMS != 100 || cfg.ConsoleStatsSec != 0 {
		t.Fatalf("unexpected delivery defaults %+v", cfg)
	}
	if cfg.RedisCapturePattern != "input:capture:*" {
		t.Fatalf("unexpected capture pattern %q", cfg.RedisCapturePattern)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INPUT_SOURCE", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("TOKEN_TTL_MIN", "not-a-number")
	t.Setenv("SKIP_MALFORMED", "false")
	t.Setenv("CONSOLE_TYPES", "KeyPress, Wheel,,")
	t.Setenv("DISPATCH_POLICY", "continue")
	t.Setenv("CONSOLE_STATS_SEC", "5")

	cfg := LoadConfig()
	if cfg.InputSource != "redis" || cfg.RedisDB != 3 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.TokenTTLMin != 60 {
		t.Fatalf("expected fallback TTL, got %d", cfg.TokenTTLMin)
	}
	if cfg.SkipMalformed {
		t.Fatalf("expected SKIP_MALFORMED=false to be honoured")
	}
	if !reflect.DeepEqual(cfg.ConsoleTypes, []string{"KeyPress", "Wheel"}) {
		t.Fatalf("unexpected console types %v", cfg.ConsoleTypes)
	}
	if cfg.DispatchPolicy != "continue" {
		t.Fatalf("unexpected policy %q", cfg.DispatchPolicy)
	}
	if cfg.ConsoleStatsSec != 5 {
		t.Fatalf("unexpected stats interval %d", cfg.ConsoleStatsSec)
	}
}
