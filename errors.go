package pgmux

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind classifies every failure surfaced by pgmux operations.
// The set is closed: any internal failure is converted into exactly one
// of these kinds at the boundary of the operation that produced it.
type ErrorKind int

const (
	KindConnectionNotFound ErrorKind = iota
	KindValidationFailed
	KindDatabaseError
	KindSerializationError
	KindConnectionError
	KindInternalError
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectionNotFound:
		return "connection_not_found"
	case KindValidationFailed:
		return "validation_failed"
	case KindDatabaseError:
		return "database_error"
	case KindSerializationError:
		return "serialization_error"
	case KindConnectionError:
		return "connection_error"
	default:
		return "internal_error"
	}
}

// ValidationKind distinguishes why SQL validation failed.
type ValidationKind int

const (
	ValidationParseError ValidationKind = iota
	ValidationInvalidStatementType
)

func (k ValidationKind) String() string {
	if k == ValidationParseError {
		return "parse error"
	}
	return "invalid statement type"
}

// Error is the single error type returned by registry and executor
// operations. Kind selects which context fields are meaningful.
type Error struct {
	Kind       ErrorKind
	Handle     string         // ConnectionNotFound
	Validation ValidationKind // ValidationFailed
	Query      string         // ValidationFailed: the offending SQL or identifier
	Operation  string         // DatabaseError: the operation that failed
	Details    string
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnectionNotFound:
		return fmt.Sprintf("connection not found for handle: %s", e.Handle)
	case KindValidationFailed:
		return fmt.Sprintf("SQL validation failed for query %q: %s - %s", e.Query, e.Validation, e.Details)
	case KindDatabaseError:
		return fmt.Sprintf("database operation %q failed: %s", e.Operation, e.Details)
	case KindSerializationError:
		return fmt.Sprintf("result serialization failed: %s", e.Details)
	case KindConnectionError:
		return fmt.Sprintf("database connection failed: %s", e.Details)
	default:
		return fmt.Sprintf("internal error: %s", e.Details)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a pgmux *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func errConnectionNotFound(handle string) *Error {
	return &Error{Kind: KindConnectionNotFound, Handle: handle}
}

func errValidation(kind ValidationKind, query string, err error) *Error {
	return &Error{Kind: KindValidationFailed, Validation: kind, Query: query, Details: err.Error(), Err: err}
}

func errDatabase(operation string, err error) *Error {
	return &Error{Kind: KindDatabaseError, Operation: operation, Details: pgErrorDetails(err), Err: err}
}

func errSerialization(err error) *Error {
	return &Error{Kind: KindSerializationError, Details: err.Error(), Err: err}
}

func errConnection(err error) *Error {
	return &Error{Kind: KindConnectionError, Details: err.Error(), Err: err}
}

func errInternal(err error) *Error {
	return &Error{Kind: KindInternalError, Details: err.Error(), Err: err}
}

// pgErrorDetails renders the underlying error, surfacing the SQLSTATE code
// for PostgreSQL server errors.
func pgErrorDetails(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	}
	return err.Error()
}
