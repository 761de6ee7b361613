package graphcore

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// InvalidArgument signals a nil or out-of-range input at a public boundary.
	InvalidArgument
	// NotFound signals an entity id that never existed or is tombstoned.
	NotFound
	// LockFailure signals a failed lock acquisition or release.
	LockFailure
	// StoreFailure signals an IO or corruption error reported by the record loader.
	StoreFailure
	// CacheStateFailure signals a violated internal cache invariant. Fatal.
	CacheStateFailure
)

// Error is the graphcore custom error. UserData typically carries the
// offending entity or resource id.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Errorf("error code: %d, user data: %v, details: %w", e.Code, e.UserData, e.Err).Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is a graphcore Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
