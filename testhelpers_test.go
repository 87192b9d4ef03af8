package pgmux_test

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	pgmux "github.com/pmorrell/pgmux"
	"github.com/rs/zerolog"
)

// connStringEnv names the environment variable carrying a connection
// string to a disposable PostgreSQL database. Integration tests are
// skipped when it is unset.
const connStringEnv = "PGMUX_TEST_CONNSTRING"

var tableSeq atomic.Int64

func testConnString(t *testing.T) string {
	t.Helper()
	connStr := os.Getenv(connStringEnv)
	if connStr == "" {
		t.Skipf("set %s to run integration tests", connStringEnv)
	}
	return connStr
}

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func defaultConfig() pgmux.Config {
	return pgmux.Config{
		Pool: pgmux.PoolConfig{MaxConns: 5},
		Query: pgmux.QueryConfig{
			DefaultTimeoutSeconds: 30,
		},
	}
}

// newTestMux creates a PgMux with one registered connection to the test
// database and returns the instance plus the connection handle.
func newTestMux(t *testing.T, config pgmux.Config) (*pgmux.PgMux, string) {
	t.Helper()
	connStr := testConnString(t)
	p := pgmux.New(config, testLogger())
	t.Cleanup(p.Close)

	handle, err := p.Register(context.Background(), connStr)
	if err != nil {
		t.Fatalf("failed to register test connection: %v", err)
	}
	return p, handle
}

// uniqueName returns a table/index/type name unique within the test
// binary, so parallel tests sharing one database never collide.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, tableSeq.Add(1))
}

func setupTable(t *testing.T, p *pgmux.PgMux, handle, sql string) {
	t.Helper()
	if _, err := p.CreateTable(context.Background(), handle, sql); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
}
