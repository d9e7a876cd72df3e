package store

import "fmt"

// DatabaseError wraps any persistence-layer failure so callers can map it
// uniformly (service-unavailable at the API edge) with errors.As.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// dbErr wraps err as a DatabaseError, passing nil through.
func dbErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DatabaseError{Op: op, Err: err}
}
