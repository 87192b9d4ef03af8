package pgmux

import (
	"context"
	"time"

	"github.com/pmorrell/pgmux/internal/ident"
)

const describeColumnsSQL = `
WITH data AS (
    SELECT column_name, data_type, character_maximum_length, column_default, is_nullable
    FROM information_schema.columns
    WHERE table_schema = $1 AND table_name = $2
    ORDER BY ordinal_position)
SELECT JSON_AGG(data.*) AS ret FROM data;
`

// Describe returns column metadata for table as a JSON array. The table
// may be schema-qualified ("schema.table"); the schema defaults to
// public. A table with no visible columns yields "[]".
func (p *PgMux) Describe(ctx context.Context, handle, table string) (string, error) {
	start := time.Now()

	conn, err := p.resolve(handle)
	if err != nil {
		return "", p.fail("describe", err)
	}
	schema, name := ident.SplitQualified(table)

	queryCtx, cancel, _ := p.opContext(ctx, describeColumnsSQL)
	defer cancel()

	var ret *string
	if err := conn.Pool.QueryRow(queryCtx, describeColumnsSQL, schema, name).Scan(&ret); err != nil {
		return "", p.fail("describe", errDatabase("describe", err))
	}

	result, err := jsonResult(ret)
	if err != nil {
		return "", p.fail("describe", err)
	}

	p.logger.Info().
		Str("handle", handle).
		Str("schema", schema).
		Str("table", name).
		Dur("duration", time.Since(start)).
		Msg("table described")

	return result, nil
}
