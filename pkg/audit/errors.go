package audit

import (
	"errors"
	"fmt"
)

// ErrEmptyResult reports that a filter or date range left no records. It is
// informational: callers show it, they do not fail on it.
var ErrEmptyResult = errors.New("no records match")

// MissingColumnError reports that a computation needs a column the
// workbook does not have.
type MissingColumnError struct {
	Field  Field
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q (%s)", e.Column, e.Field)
}
