package pgmux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/pmorrell/pgmux/internal/classify"
)

// Query validates sql as a single SELECT statement and executes it with
// all rows aggregated server-side into one JSON array. Returns the array
// as a string; an empty result set yields "[]", not an error.
func (p *PgMux) Query(ctx context.Context, handle, sql string) (string, error) {
	start := time.Now()

	conn, err := p.resolve(handle)
	if err != nil {
		return "", p.fail("query", err)
	}
	if err := p.checkKind(sql, classify.Select); err != nil {
		return "", p.fail("query", err)
	}

	wrapped := aggregateSelect(sql)
	queryCtx, cancel, rule := p.opContext(ctx, sql)
	defer cancel()

	var ret *string
	if err := conn.Pool.QueryRow(queryCtx, wrapped).Scan(&ret); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// JSON_AGG always produces exactly one row.
			return "", p.fail("query", errInternal(fmt.Errorf("aggregation returned no rows: %w", err)))
		}
		return "", p.fail("query", errDatabase("query", err))
	}

	result, err := jsonResult(ret)
	if err != nil {
		return "", p.fail("query", err)
	}

	logEvent := p.logger.Info().
		Str("handle", handle).
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(start))
	if rule != "" {
		logEvent = logEvent.Str("timeout_rule", rule)
	}
	logEvent.Msg("query executed")

	return result, nil
}

// aggregateSelect wraps a validated SELECT so the server aggregates all
// rows into a single JSON array. Trailing semicolons would terminate the
// CTE body early, so they are stripped first; the SELECT text itself is
// untouched.
func aggregateSelect(sql string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), "; \t\n")
	return fmt.Sprintf("WITH data AS (%s) SELECT JSON_AGG(data.*) AS ret FROM data;", trimmed)
}

// jsonResult converts an aggregated JSON column value into the result
// string. A NULL aggregate (zero rows) becomes the empty array.
func jsonResult(ret *string) (string, error) {
	if ret == nil {
		return "[]", nil
	}
	if !json.Valid([]byte(*ret)) {
		return "", errSerialization(errors.New("aggregate is not valid JSON"))
	}
	return *ret, nil
}

// truncateForLog truncates a string for log output to avoid oversized log entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
