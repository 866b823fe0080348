// Package schema compares schema snapshots and produces the DDL that
// migrates one into the other. It also assembles snapshots from a live
// database and renders them back as model files.
package schema

import "fmt"

// Severity grades an advisory issue.
type Severity int

const (
	Warning Severity = iota
	Hint
)

func (s Severity) String() string {
	if s == Hint {
		return "hint"
	}
	return "warning"
}

// Issue is a non-fatal finding reported alongside a successful result.
type Issue struct {
	Severity Severity
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Severity, i.Message)
}

func warningf(format string, args ...interface{}) Issue {
	return Issue{Severity: Warning, Message: fmt.Sprintf(format, args...)}
}

func hintf(format string, args ...interface{}) Issue {
	return Issue{Severity: Hint, Message: fmt.Sprintf(format, args...)}
}

// WithIssues pairs a value with the advisory issues found producing it.
type WithIssues[T any] struct {
	Value  T
	Issues []Issue
}
