// Package ident validates bare identifiers supplied by tool callers.
// Operations like drop_table and create_schema take an object name rather
// than a full SQL statement, so the name is checked against a restrictive
// character set before it is interpolated into a statement.
package ident

import "strings"

// ValidName reports whether s is a safe bare identifier:
// ASCII letters, digits, and underscores only, non-empty.
func ValidName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isWordChar(r) {
			return false
		}
	}
	return true
}

// ValidRelation reports whether s is a valid table or index reference:
// a bare name, optionally qualified by a single schema prefix.
func ValidRelation(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !ValidName(p) {
			return false
		}
	}
	return true
}

// SplitQualified splits a possibly schema-qualified relation name into
// schema and name, defaulting the schema to "public".
func SplitQualified(s string) (schema, name string) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "public", s
}

func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}
