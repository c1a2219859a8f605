// internal/journal/errors.go
package journal

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple checks.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// NotFoundError is returned when a record is not found.
type NotFoundError struct {
	Key   string
	Value string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no journal record with %s %q", e.Key, e.Value)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsNotFound returns true if err is a NotFoundError.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
