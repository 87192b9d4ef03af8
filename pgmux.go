package pgmux

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pmorrell/pgmux/internal/timeout"
)

// PgMux is the core engine: a registry of handle-addressed PostgreSQL
// connections plus the statement-validated operations that MCP tools
// dispatch to. All exported methods are safe for concurrent use from
// multiple goroutines.
type PgMux struct {
	config     Config
	registry   *Registry
	timeoutMgr *timeout.Manager
	logger     zerolog.Logger
}

// New creates a new PgMux instance.
// Panics on invalid config. The registry starts empty; connections are
// added through Register.
func New(config Config, logger zerolog.Logger) *PgMux {
	// --- Config validation and defaults (panics on invalid config) ---

	if config.Pool.MaxConns == 0 {
		config.Pool.MaxConns = 5
	}
	if config.Pool.MaxConns < 0 {
		panic("pgmux: pool.max_conns must be > 0")
	}
	if config.Pool.MinConns < 0 {
		panic("pgmux: pool.min_conns must be >= 0")
	}
	if config.Query.DefaultTimeoutSeconds == 0 {
		config.Query.DefaultTimeoutSeconds = 30
	}
	if config.Query.DefaultTimeoutSeconds < 0 {
		panic("pgmux: query.default_timeout_seconds must be > 0")
	}
	for _, rule := range config.Query.TimeoutRules {
		if rule.TimeoutSeconds <= 0 {
			panic(fmt.Sprintf("pgmux: timeout_rule with pattern %q has timeout_seconds <= 0", rule.Pattern))
		}
	}

	pool := poolSettings{
		maxConns: int32(config.Pool.MaxConns),
		minConns: int32(config.Pool.MinConns),
	}
	if config.Pool.MaxConnLifetime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnLifetime)
		if err != nil {
			panic(fmt.Sprintf("pgmux: invalid pool.max_conn_lifetime %q: %v", config.Pool.MaxConnLifetime, err))
		}
		pool.maxConnLifetime = d
	}
	if config.Pool.MaxConnIdleTime != "" {
		d, err := time.ParseDuration(config.Pool.MaxConnIdleTime)
		if err != nil {
			panic(fmt.Sprintf("pgmux: invalid pool.max_conn_idle_time %q: %v", config.Pool.MaxConnIdleTime, err))
		}
		pool.maxConnIdleTime = d
	}

	// --- Timeout manager ---

	timeoutRules := make([]timeout.Rule, len(config.Query.TimeoutRules))
	for i, r := range config.Query.TimeoutRules {
		timeoutRules[i] = timeout.Rule{
			Pattern: r.Pattern,
			Timeout: time.Duration(r.TimeoutSeconds) * time.Second,
		}
	}
	tmgr, err := timeout.NewManager(timeout.Config{
		DefaultTimeout: time.Duration(config.Query.DefaultTimeoutSeconds) * time.Second,
		Rules:          timeoutRules,
	})
	if err != nil {
		panic(fmt.Sprintf("pgmux: %v", err))
	}

	return &PgMux{
		config:     config,
		registry:   newRegistry(pool, logger),
		timeoutMgr: tmgr,
		logger:     logger,
	}
}

// Register opens a pooled connection to connStr and returns its handle.
func (p *PgMux) Register(ctx context.Context, connStr string) (string, error) {
	return p.registry.Register(ctx, connStr)
}

// Unregister removes the connection for handle from the registry.
func (p *PgMux) Unregister(handle string) error {
	return p.registry.Unregister(handle)
}

// Registry returns the underlying connection registry.
func (p *PgMux) Registry() *Registry {
	return p.registry
}

// Close closes every registered pool. Call at process shutdown.
func (p *PgMux) Close() {
	p.registry.Close()
}

// resolve looks up handle, mapping a miss onto the error taxonomy.
func (p *PgMux) resolve(handle string) (*Conn, error) {
	conn, ok := p.registry.Resolve(handle)
	if !ok {
		return nil, errConnectionNotFound(handle)
	}
	return conn, nil
}

// opContext bounds ctx with the timeout resolved for sql, returning the
// matched rule pattern for logging.
func (p *PgMux) opContext(ctx context.Context, sql string) (context.Context, context.CancelFunc, string) {
	d, pattern := p.timeoutMgr.Resolve(sql)
	queryCtx, cancel := context.WithTimeout(ctx, d)
	return queryCtx, cancel, pattern
}
