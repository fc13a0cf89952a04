// Copyright (c) 2021 Silvano DAL ZILIO
//
// MIT License

package dd

import "errors"

// Sentinel errors returned by the public API. Wrap with fmt.Errorf("...: %w")
// at call sites when extra context is useful.
var (
	// ErrInvalidArgument is returned when a precondition on a public method is
	// violated: an out-of-range variable or level, a negative cardinality
	// bound, a manager-less (zero value) handle, etc.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIncompatibleManager is returned when an operation mixes handles that
	// were built by two different Managers.
	ErrIncompatibleManager = errors.New("incompatible manager")

	// ErrOutOfMemory is returned when the unique table is full after a GC
	// pass and a resize attempt.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrIO is reserved for I/O collaborators (serializers); the core never
	// returns it itself.
	ErrIO = errors.New("io error")

	// ErrEmptyDivisor is returned by Quotient/Remainder when the divisor is
	// the empty ZDD family.
	ErrEmptyDivisor = errors.New("division by empty family")

	// ErrNotIndexed names an unavailable ZDD index. Building an index never
	// fails, so no function in this package currently returns it.
	ErrNotIndexed = errors.New("zdd index not available")
)

// errState is embedded in Manager to provide the "sticky last error" surface
// rudd exposes via BDD.Error()/Errored(), kept for callers that prefer
// polling over checking every return value.
type errState struct {
	err error
}

func (e *errState) seterror(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Error returns the sticky error status of the manager, or "" if none.
func (m *Manager) Error() string {
	if m.errState.err == nil {
		return ""
	}
	return m.errState.err.Error()
}

// Errored reports whether the manager recorded an error since the last reset.
func (m *Manager) Errored() bool {
	return m.errState.err != nil
}

// ResetError clears the sticky error status.
func (m *Manager) ResetError() {
	m.errState.err = nil
}
