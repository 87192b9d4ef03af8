// Package classify determines the syntactic kind of a SQL text using
// PostgreSQL's actual C parser via pg_query. A text passes only if it
// parses to exactly one statement of the required kind. Multi-statement
// submissions are always rejected, even when every statement matches.
package classify

import (
	"errors"
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Kind is the statement kind an operation requires.
type Kind int

const (
	Select Kind = iota
	Insert
	Update
	Delete
	CreateTable
	CreateIndex
	CreateType
)

func (k Kind) String() string {
	switch k {
	case Select:
		return "SELECT"
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case CreateTable:
		return "CREATE TABLE"
	case CreateIndex:
		return "CREATE INDEX"
	case CreateType:
		return "CREATE TYPE"
	default:
		return "UNKNOWN"
	}
}

// ErrParse marks SQL that PostgreSQL's parser rejects.
// ErrStatementKind marks SQL that parses but is not exactly one
// statement of the required kind.
var (
	ErrParse         = errors.New("SQL parse error")
	ErrStatementKind = errors.New("statement kind not allowed")
)

// Check verifies that sql is exactly one statement of the given kind.
// The SQL text itself is never rewritten; callers execute the original
// text verbatim after a nil return.
func Check(sql string, kind Kind) error {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(result.Stmts) == 0 {
		return fmt.Errorf("%w: empty query", ErrParse)
	}
	if len(result.Stmts) > 1 {
		return fmt.Errorf("%w: expected a single %s statement, found %d statements", ErrStatementKind, kind, len(result.Stmts))
	}
	if !matches(result.Stmts[0].Stmt, kind) {
		return fmt.Errorf("%w: only %s statements are allowed", ErrStatementKind, kind)
	}
	return nil
}

// matches checks whether the parsed node is of the required kind.
// CREATE TYPE is special: the parser produces different node types for
// the enum, composite, range, and shell forms.
func matches(node *pg_query.Node, kind Kind) bool {
	if node == nil {
		return false
	}
	switch kind {
	case Select:
		_, ok := node.Node.(*pg_query.Node_SelectStmt)
		return ok
	case Insert:
		_, ok := node.Node.(*pg_query.Node_InsertStmt)
		return ok
	case Update:
		_, ok := node.Node.(*pg_query.Node_UpdateStmt)
		return ok
	case Delete:
		_, ok := node.Node.(*pg_query.Node_DeleteStmt)
		return ok
	case CreateTable:
		_, ok := node.Node.(*pg_query.Node_CreateStmt)
		return ok
	case CreateIndex:
		_, ok := node.Node.(*pg_query.Node_IndexStmt)
		return ok
	case CreateType:
		switch n := node.Node.(type) {
		case *pg_query.Node_CreateEnumStmt, *pg_query.Node_CompositeTypeStmt, *pg_query.Node_CreateRangeStmt:
			return true
		case *pg_query.Node_DefineStmt:
			return n.DefineStmt.Kind == pg_query.ObjectType_OBJECT_TYPE
		}
		return false
	default:
		return false
	}
}
