// Package resolver lowers GraphQL-shaped arguments (order-by and where
// objects) into abstract order-by lists and predicates over column paths.
package resolver

import (
	"errors"
	"fmt"
)

// ErrUnsupportedShape is returned when an argument is neither an object nor
// a list where one of the two is required.
var ErrUnsupportedShape = errors.New("unsupported argument shape")

// ValidationError reports an argument that does not fit its declared type.
type ValidationError struct {
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Param == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Param)
}

func validationError(param, reason string) error {
	return &ValidationError{Param: param, Reason: reason}
}
