package model

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRegex validates SQL identifiers (column names, table names).
// Must start with a letter or underscore, followed by alphanumeric or underscore.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// maxIdentifierLength is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLength = 63

// ValidateIdentifier ensures a table or column name can be used verbatim in
// generated DDL. Identifiers are always quoted, so reserved words are allowed.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("identifier too long (max %d chars): %q", maxIdentifierLength, name)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	return nil
}

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
