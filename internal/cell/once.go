// Package cell provides single-assignment slots for fields that resolution
// fills in place after the tree has been built.
package cell

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadySet is returned when a cell is written a second time.
	ErrAlreadySet = errors.New("cell already set")
	// ErrUnset is the panic value wrapped by Get on an empty cell.
	ErrUnset = errors.New("cell read before set")
)

// Once holds a value that may be written exactly once.
// The zero value is an empty cell.
type Once[T any] struct {
	v   T
	set bool
}

// Set stores v. It fails with ErrAlreadySet if the cell already holds a value.
func (o *Once[T]) Set(v T) error {
	if o.set {
		return ErrAlreadySet
	}
	o.v = v
	o.set = true
	return nil
}

// MustSet is Set for callers that own the only write path; a second write panics.
func (o *Once[T]) MustSet(v T) {
	if err := o.Set(v); err != nil {
		panic(err)
	}
}

// IsSet reports whether the cell holds a value.
func (o *Once[T]) IsSet() bool {
	return o.set
}

// Lookup returns the value and whether it was set.
func (o *Once[T]) Lookup() (T, bool) {
	return o.v, o.set
}

// Get returns the stored value. Reading an empty cell is a contract violation.
func (o *Once[T]) Get() T {
	if !o.set {
		panic(fmt.Errorf("%w: %T", ErrUnset, o.v))
	}
	return o.v
}

// GetOr returns the stored value or def when the cell is empty.
func (o *Once[T]) GetOr(def T) T {
	if !o.set {
		return def
	}
	return o.v
}
