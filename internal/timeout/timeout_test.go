package timeout

import (
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T, config Config) *Manager {
	t.Helper()
	m, err := NewManager(config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestResolveFirstRule(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "pg_stat", Timeout: 5 * time.Second},
			{Pattern: "JOIN", Timeout: 60 * time.Second},
		},
	})

	got, pattern := m.Resolve("SELECT * FROM pg_stat_activity")
	if got != 5*time.Second {
		t.Errorf("expected 5s, got %v", got)
	}
	if pattern != "pg_stat" {
		t.Errorf("expected pattern 'pg_stat', got %q", pattern)
	}
}

func TestResolveStopsOnFirstMatch(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "pg_stat", Timeout: 5 * time.Second},
			{Pattern: "JOIN", Timeout: 60 * time.Second},
		},
	})

	got, _ := m.Resolve("SELECT * FROM pg_stat JOIN x JOIN y JOIN z")
	if got != 5*time.Second {
		t.Errorf("expected 5s (first match wins), got %v", got)
	}
}

func TestResolveDefault(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "pg_stat", Timeout: 5 * time.Second},
		},
	})

	got, pattern := m.Resolve("SELECT 1")
	if got != 30*time.Second {
		t.Errorf("expected 30s (default), got %v", got)
	}
	if pattern != "" {
		t.Errorf("expected empty pattern for default, got %q", pattern)
	}
}

func TestResolveNoRules(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, Config{DefaultTimeout: 30 * time.Second})

	got, _ := m.Resolve("SELECT 1")
	if got != 30*time.Second {
		t.Errorf("expected 30s (default), got %v", got)
	}
}

func TestNewManagerInvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "[invalid", Timeout: 5 * time.Second},
		},
	})
	if err == nil {
		t.Fatal("expected error for invalid regex pattern")
	}
	if !strings.Contains(err.Error(), "[invalid") {
		t.Errorf("expected error to name the offending pattern, got %v", err)
	}
}
