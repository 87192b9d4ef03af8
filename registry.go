package pgmux

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Conn is one registered connection: an opaque handle, the connection
// string it was opened with, and the shared pool. Work that resolved the
// entry before an unregister keeps a valid pool and may finish normally.
type Conn struct {
	Handle  string
	ConnStr string
	Pool    *pgxpool.Pool
}

// poolSettings are the validated pool parameters applied to every
// registered connection. Built by New() from PoolConfig.
type poolSettings struct {
	maxConns        int32
	minConns        int32
	maxConnLifetime time.Duration
	maxConnIdleTime time.Duration
}

// Registry maps opaque handles to pooled connections. Reads are lock-free
// loads of an immutable snapshot; mutations build a new snapshot and
// install it through a compare-and-swap retry loop, so concurrent
// mutations never lose each other's updates.
type Registry struct {
	snapshot atomic.Pointer[map[string]*Conn]
	pool     poolSettings
	logger   zerolog.Logger
}

// newRegistry creates an empty Registry. Construction goes through
// pgmux.New, which validates the pool settings first.
func newRegistry(pool poolSettings, logger zerolog.Logger) *Registry {
	r := &Registry{pool: pool, logger: logger}
	empty := make(map[string]*Conn)
	r.snapshot.Store(&empty)
	return r
}

// Register opens a pool for connStr, verifies connectivity with a ping,
// and installs the entry under a freshly generated handle.
func (r *Registry) Register(ctx context.Context, connStr string) (string, error) {
	pool, err := r.openPool(ctx, connStr)
	if err != nil {
		return "", errConnection(err)
	}

	var handle string
	for {
		handle = uuid.NewString()
		if r.tryInsert(&Conn{Handle: handle, ConnStr: connStr, Pool: pool}) {
			break
		}
	}

	r.logger.Info().Str("handle", handle).Msg("connection registered")
	return handle, nil
}

// Unregister removes the entry for handle from the current snapshot.
// The pool closes in the background: pgxpool.Pool.Close blocks until all
// acquired connections are released, so in-flight queries holding the
// pool complete normally.
func (r *Registry) Unregister(handle string) error {
	conn, ok := r.remove(handle)
	if !ok {
		return errConnectionNotFound(handle)
	}
	if conn.Pool != nil {
		go conn.Pool.Close()
	}
	r.logger.Info().Str("handle", handle).Msg("connection unregistered")
	return nil
}

// Resolve returns the entry for handle from the current snapshot.
// Non-blocking: a concurrent mutation is observed either entirely or
// not at all.
func (r *Registry) Resolve(handle string) (*Conn, bool) {
	m := r.snapshot.Load()
	conn, ok := (*m)[handle]
	return conn, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(*r.snapshot.Load())
}

// Close closes every registered pool. Intended for process shutdown only;
// the registry performs no eviction or health checks during its lifetime.
func (r *Registry) Close() {
	empty := make(map[string]*Conn)
	old := r.snapshot.Swap(&empty)
	for _, conn := range *old {
		if conn.Pool != nil {
			conn.Pool.Close()
		}
	}
}

func (r *Registry) openPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = r.pool.maxConns
	poolConfig.MinConns = r.pool.minConns
	poolConfig.MaxConnLifetime = r.pool.maxConnLifetime
	poolConfig.MaxConnIdleTime = r.pool.maxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	// pgxpool connects lazily; ping so auth failures and unreachable
	// hosts surface at registration time.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// tryInsert installs conn under its handle via a CAS retry loop.
// Returns false without modifying the registry if the handle is already
// live.
func (r *Registry) tryInsert(conn *Conn) bool {
	for {
		old := r.snapshot.Load()
		if _, exists := (*old)[conn.Handle]; exists {
			return false
		}
		next := make(map[string]*Conn, len(*old)+1)
		for k, v := range *old {
			next[k] = v
		}
		next[conn.Handle] = conn
		if r.snapshot.CompareAndSwap(old, &next) {
			return true
		}
	}
}

// remove deletes handle via a CAS retry loop, reporting whether it was
// present.
func (r *Registry) remove(handle string) (*Conn, bool) {
	for {
		old := r.snapshot.Load()
		conn, ok := (*old)[handle]
		if !ok {
			return nil, false
		}
		next := make(map[string]*Conn, len(*old))
		for k, v := range *old {
			if k != handle {
				next[k] = v
			}
		}
		if r.snapshot.CompareAndSwap(old, &next) {
			return conn, true
		}
	}
}
