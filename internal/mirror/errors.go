package mirror

import (
	"context"
	"errors"
	"net"
)

// Category is the user-facing classification of a connect failure.
type Category string

const (
	CategoryDuplicateSession Category = "duplicate-session"
	CategoryInvalidKey       Category = "invalid-key"
	CategoryNetwork          Category = "network-failure"
	CategoryUnknown          Category = "unknown"
)

// Sentinel connect errors raised by mirror implementations.
var (
	ErrDuplicateSession = errors.New("another session already holds this mirror connection")
	ErrInvalidKey       = errors.New("access key rejected by the mirror store")
	ErrUnreachable      = errors.New("mirror store unreachable")
)

// Classify maps a connect or transport error onto the small set of
// user-facing categories. Validation errors never reach here; they are
// rejected before any remote call.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, ErrDuplicateSession):
		return CategoryDuplicateSession
	case errors.Is(err, ErrInvalidKey):
		return CategoryInvalidKey
	case errors.Is(err, ErrUnreachable),
		errors.Is(err, context.DeadlineExceeded):
		return CategoryNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryNetwork
	}
	return CategoryUnknown
}
