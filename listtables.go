package pgmux

import (
	"context"
	"time"
)

const listTablesSQL = `
WITH data AS (
    SELECT
        t.table_name,
        obj_description(format('%s.%s', t.table_schema, t.table_name)::regclass::oid) AS description,
        pg_stat_get_tuples_inserted(format('%s.%s', t.table_schema, t.table_name)::regclass::oid) AS total_rows
    FROM information_schema.tables t
    WHERE t.table_schema = $1
      AND t.table_type = 'BASE TABLE'
    ORDER BY t.table_name)
SELECT JSON_AGG(data.*) AS ret FROM data;
`

// ListTables returns the base tables in schema as a JSON array of table
// metadata (name, comment, insert count). A schema with no base tables
// yields "[]", not an error.
func (p *PgMux) ListTables(ctx context.Context, handle, schema string) (string, error) {
	start := time.Now()

	conn, err := p.resolve(handle)
	if err != nil {
		return "", p.fail("list_tables", err)
	}

	queryCtx, cancel, _ := p.opContext(ctx, listTablesSQL)
	defer cancel()

	var ret *string
	if err := conn.Pool.QueryRow(queryCtx, listTablesSQL, schema).Scan(&ret); err != nil {
		return "", p.fail("list_tables", errDatabase("list_tables", err))
	}

	result, err := jsonResult(ret)
	if err != nil {
		return "", p.fail("list_tables", err)
	}

	p.logger.Info().
		Str("handle", handle).
		Str("schema", schema).
		Dur("duration", time.Since(start)).
		Msg("tables listed")

	return result, nil
}
