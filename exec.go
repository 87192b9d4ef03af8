package pgmux

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pmorrell/pgmux/internal/classify"
	"github.com/pmorrell/pgmux/internal/ident"
)

// Insert validates sql as a single INSERT statement and executes it.
// Returns a success message carrying the number of affected rows.
func (p *PgMux) Insert(ctx context.Context, handle, sql string) (string, error) {
	return p.execStatement(ctx, "insert", handle, sql, classify.Insert, true)
}

// Update validates sql as a single UPDATE statement and executes it.
// Returns a success message carrying the number of affected rows.
func (p *PgMux) Update(ctx context.Context, handle, sql string) (string, error) {
	return p.execStatement(ctx, "update", handle, sql, classify.Update, true)
}

// Delete validates sql as a single DELETE statement and executes it.
// Returns a success message carrying the number of affected rows.
func (p *PgMux) Delete(ctx context.Context, handle, sql string) (string, error) {
	return p.execStatement(ctx, "delete", handle, sql, classify.Delete, true)
}

// CreateTable validates sql as a single CREATE TABLE statement and executes it.
func (p *PgMux) CreateTable(ctx context.Context, handle, sql string) (string, error) {
	return p.execStatement(ctx, "create_table", handle, sql, classify.CreateTable, false)
}

// CreateIndex validates sql as a single CREATE INDEX statement and executes it.
func (p *PgMux) CreateIndex(ctx context.Context, handle, sql string) (string, error) {
	return p.execStatement(ctx, "create_index", handle, sql, classify.CreateIndex, false)
}

// CreateType validates sql as a single CREATE TYPE statement and executes it.
func (p *PgMux) CreateType(ctx context.Context, handle, sql string) (string, error) {
	return p.execStatement(ctx, "create_type", handle, sql, classify.CreateType, false)
}

// DropTable drops the named table. The name is a bare identifier, not SQL.
func (p *PgMux) DropTable(ctx context.Context, handle, table string) (string, error) {
	return p.dropObject(ctx, "drop_table", "TABLE", handle, table)
}

// DropIndex drops the named index. The name is a bare identifier, not SQL.
func (p *PgMux) DropIndex(ctx context.Context, handle, index string) (string, error) {
	return p.dropObject(ctx, "drop_index", "INDEX", handle, index)
}

// CreateSchema creates a schema. The name is a bare identifier, not a
// statement, so it is restricted to letters, digits, and underscores
// instead of going through the statement classifier.
func (p *PgMux) CreateSchema(ctx context.Context, handle, name string) (string, error) {
	conn, err := p.resolve(handle)
	if err != nil {
		return "", p.fail("create_schema", err)
	}
	if !ident.ValidName(name) {
		err := errValidation(ValidationInvalidStatementType, name,
			errors.New("invalid schema name: only letters, digits, and underscores are allowed"))
		return "", p.fail("create_schema", err)
	}

	sql := fmt.Sprintf(`CREATE SCHEMA "%s"`, name)
	queryCtx, cancel, _ := p.opContext(ctx, sql)
	defer cancel()

	if _, err := conn.Pool.Exec(queryCtx, sql); err != nil {
		return "", p.fail("create_schema", errDatabase("create_schema", err))
	}

	p.logger.Info().Str("handle", handle).Str("schema", name).Msg("schema created")
	return "success", nil
}

// execStatement is the shared resolve → classify → execute pipeline for
// operations that take raw SQL.
func (p *PgMux) execStatement(ctx context.Context, operation, handle, sql string, kind classify.Kind, reportRows bool) (string, error) {
	start := time.Now()

	conn, err := p.resolve(handle)
	if err != nil {
		return "", p.fail(operation, err)
	}
	if err := p.checkKind(sql, kind); err != nil {
		return "", p.fail(operation, err)
	}

	queryCtx, cancel, rule := p.opContext(ctx, sql)
	defer cancel()

	tag, err := conn.Pool.Exec(queryCtx, sql)
	if err != nil {
		return "", p.fail(operation, errDatabase(operation, err))
	}

	logEvent := p.logger.Info().
		Str("handle", handle).
		Str("operation", operation).
		Str("sql", truncateForLog(sql, 200)).
		Dur("duration", time.Since(start)).
		Int64("rows_affected", tag.RowsAffected())
	if rule != "" {
		logEvent = logEvent.Str("timeout_rule", rule)
	}
	logEvent.Msg("statement executed")

	if reportRows {
		return fmt.Sprintf("success, rows_affected: %d", tag.RowsAffected()), nil
	}
	return "success", nil
}

// dropObject builds and executes a DROP statement from a caller-supplied
// object name. The name is a bare identifier (optionally
// schema-qualified), never arbitrary SQL, so it is checked against the
// identifier character set instead of the statement classifier.
// No IF EXISTS: dropping an object that does not exist fails with a
// database error.
func (p *PgMux) dropObject(ctx context.Context, operation, object, handle, name string) (string, error) {
	conn, err := p.resolve(handle)
	if err != nil {
		return "", p.fail(operation, err)
	}
	if !ident.ValidRelation(name) {
		err := errValidation(ValidationInvalidStatementType, name,
			fmt.Errorf("invalid %s name: only letters, digits, underscores, and a single schema qualifier are allowed", strings.ToLower(object)))
		return "", p.fail(operation, err)
	}

	sql := fmt.Sprintf("DROP %s %s", object, name)
	queryCtx, cancel, _ := p.opContext(ctx, sql)
	defer cancel()

	if _, err := conn.Pool.Exec(queryCtx, sql); err != nil {
		return "", p.fail(operation, errDatabase(operation, err))
	}

	p.logger.Info().Str("handle", handle).Str("operation", operation).Str("name", name).Msg("object dropped")
	return "success", nil
}

// checkKind runs the statement classifier, mapping its failures onto the
// validation error kinds.
func (p *PgMux) checkKind(sql string, kind classify.Kind) error {
	err := classify.Check(sql, kind)
	if err == nil {
		return nil
	}
	vk := ValidationInvalidStatementType
	if errors.Is(err, classify.ErrParse) {
		vk = ValidationParseError
	}
	return errValidation(vk, sql, err)
}

// fail logs a classified operation error before returning it.
func (p *PgMux) fail(operation string, err error) error {
	p.logger.Error().Str("operation", operation).Err(err).Msg("operation failed")
	return err
}
