package normalizer

import (
	"errors"
	"fmt"
)

var (
	ErrTypeMismatch = errors.New("type mismatch")
	ErrMissingTable = errors.New("source table missing")
)

// TypeMismatchError reports a source value that cannot be coerced to the
// column's expected type.
type TypeMismatchError struct {
	Table    string
	Column   string
	Row      int
	Value    interface{}
	Expected string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s.%s row %d: cannot coerce %#v to %s", e.Table, e.Column, e.Row, e.Value, e.Expected)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}
