package pgmux_test

import (
	"strings"
	"testing"

	pgmux "github.com/pmorrell/pgmux"
)

// expectPanic calls f and asserts that it panics with a message containing substr.
func expectPanic(t *testing.T, substr string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q, but no panic occurred", substr)
		}
		msg := ""
		switch v := r.(type) {
		case string:
			msg = v
		case error:
			msg = v.Error()
		default:
			t.Fatalf("expected panic string/error containing %q, got %T: %v", substr, r, r)
		}
		if !strings.Contains(msg, substr) {
			t.Fatalf("expected panic containing %q, got %q", substr, msg)
		}
	}()
	f()
}

// expectNoPanic calls f and asserts that it does NOT panic.
func expectNoPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	f()
}

func TestNew_ZeroConfigUsesDefaults(t *testing.T) {
	t.Parallel()
	expectNoPanic(t, func() {
		p := pgmux.New(pgmux.Config{}, testLogger())
		p.Close()
	})
}

func TestNew_NegativeMaxConns(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Pool.MaxConns = -1

	expectPanic(t, "max_conns", func() {
		pgmux.New(config, testLogger())
	})
}

func TestNew_NegativeMinConns(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Pool.MinConns = -1

	expectPanic(t, "min_conns", func() {
		pgmux.New(config, testLogger())
	})
}

func TestNew_NegativeDefaultTimeout(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Query.DefaultTimeoutSeconds = -5

	expectPanic(t, "default_timeout_seconds", func() {
		pgmux.New(config, testLogger())
	})
}

func TestNew_InvalidTimeoutRulePattern(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Query.TimeoutRules = []pgmux.TimeoutRule{
		{Pattern: "[invalid(regex", TimeoutSeconds: 60},
	}

	expectPanic(t, "pgmux:", func() {
		pgmux.New(config, testLogger())
	})
}

func TestNew_TimeoutRuleWithoutTimeout(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Query.TimeoutRules = []pgmux.TimeoutRule{
		{Pattern: `(?i)pg_sleep`, TimeoutSeconds: 0},
	}

	expectPanic(t, "timeout_seconds", func() {
		pgmux.New(config, testLogger())
	})
}

func TestNew_InvalidPoolLifetime(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Pool.MaxConnLifetime = "ten minutes"

	expectPanic(t, "max_conn_lifetime", func() {
		pgmux.New(config, testLogger())
	})
}

func TestNew_ValidPoolDurations(t *testing.T) {
	t.Parallel()
	config := defaultConfig()
	config.Pool.MaxConnLifetime = "30m"
	config.Pool.MaxConnIdleTime = "5m"

	expectNoPanic(t, func() {
		p := pgmux.New(config, testLogger())
		p.Close()
	})
}
