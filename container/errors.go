package container

import "github.com/cockroachdb/errors"

// Error definitions
var (
	// ErrNoSpace is returned when no free region of the requested size is left
	ErrNoSpace = errors.New("container: no space available")
	// ErrBadFormat is returned for formats the container has no geometry for
	ErrBadFormat = errors.New("container: unsupported format")
	// ErrBadSize is returned for empty or oversized buffers
	ErrBadSize = errors.New("container: bad buffer size")
	// ErrBadAlign is returned when the alignment exceeds a page
	ErrBadAlign = errors.New("container: bad alignment")
	// ErrBadOffset is returned when the offset is negative, not below the alignment or not pixel aligned
	ErrBadOffset = errors.New("container: bad offset")
	// ErrTooManyGroups is returned when the group limit is reached
	ErrTooManyGroups = errors.New("container: too many groups")
	// ErrNotAllocated is returned when freeing a buffer the container does not hold
	ErrNotAllocated = errors.New("container: buffer not allocated")
)
