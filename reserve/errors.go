package reserve

import "github.com/cockroachdb/errors"

// Error definitions
var (
	// ErrInvalidRequest is returned when a request is malformed or exceeds container capacity
	ErrInvalidRequest = errors.New("reserve: invalid request")
	// ErrGeometry is returned when the request cannot be mapped to slot geometry
	ErrGeometry = errors.New("reserve: unresolvable geometry")
	// ErrNoGroup is returned when no group context is available
	ErrNoGroup = errors.New("reserve: no group context")
	// ErrMismatch is returned when luma and chroma commits disagree
	ErrMismatch = errors.New("reserve: luma and chroma commits differ")
)

func invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidRequest, format, args...)
}
