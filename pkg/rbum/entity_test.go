package rbum

import (
	"testing"
	"time"
)

func TestRelEnvLiveTimeWindow(t *testing.T) {
	env := RelEnv{
		Kind:   "time",
		Value1: "2026-01-01T00:00:00Z",
		Value2: "2026-02-01T00:00:00Z",
	}
	inside := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	before := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	after := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	if !env.Live(inside) {
		t.Error("expected rel to be live inside its window")
	}
	if env.Live(before) || env.Live(after) {
		t.Error("expected rel to be dead outside its window")
	}
}

func TestRelEnvLiveNonTimeKinds(t *testing.T) {
	env := RelEnv{Kind: "ip", Value1: "10.0.0.0/8"}
	if !env.Live(time.Now()) {
		t.Error("non-time envelopes are not evaluated here and must not block the rel")
	}
}

func TestRelEnvLiveUnparseableWindow(t *testing.T) {
	env := RelEnv{Kind: "time", Value1: "not-a-time", Value2: "also-not"}
	if !env.Live(time.Now()) {
		t.Error("an unparseable window must fail open, not lock every binding out")
	}
}

func TestScopeLevelValid(t *testing.T) {
	for _, l := range []ScopeLevel{ScopePrivate, ScopeRoot, ScopeL1, ScopeL2, ScopeL3} {
		if !l.Valid() {
			t.Errorf("ScopeLevel %d should be valid", l)
		}
	}
	if ScopeLevel(4).Valid() || ScopeLevel(-2).Valid() {
		t.Error("out-of-range scope levels should be invalid")
	}
}
