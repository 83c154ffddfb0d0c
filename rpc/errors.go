package rpc

import (
	"github.com/cockroachdb/errors"
	"github.com/shenjiangwei/tilerAllocator/container"
	"github.com/shenjiangwei/tilerAllocator/reserve"
)

// errorKinds maps the kind sent with a failed response to the sentinel the
// client marks the error with, so errors.Is works across the connection
var errorKinds = []struct {
	kind string
	err  error
}{
	{"invalid_request", reserve.ErrInvalidRequest},
	{"geometry", reserve.ErrGeometry},
	{"no_group", reserve.ErrNoGroup},
	{"mismatch", reserve.ErrMismatch},
	{"no_space", container.ErrNoSpace},
	{"bad_format", container.ErrBadFormat},
	{"bad_size", container.ErrBadSize},
	{"bad_align", container.ErrBadAlign},
	{"bad_offset", container.ErrBadOffset},
	{"too_many_groups", container.ErrTooManyGroups},
	{"not_allocated", container.ErrNotAllocated},
}

func encodeError(err error) (kind, msg string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind, err.Error()
		}
	}
	return "", err.Error()
}

func decodeError(kind, msg string) error {
	err := errors.Newf("server error: %s", msg)
	for _, k := range errorKinds {
		if k.kind == kind {
			return errors.Mark(err, k.err)
		}
	}
	return err
}
