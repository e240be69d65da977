package storage

import (
	"context"
	"errors"
	"net"

	"google.golang.org/api/googleapi"
)

var (
	// ErrNotFound is returned when a requested remote path does not exist.
	ErrNotFound = errors.New("remote path not found")

	// ErrExists is returned when a create/upload hits an existing path
	// and overwriting was not requested.
	ErrExists = errors.New("remote path already exists")

	// ErrPermission is returned when the backend rejects the caller's
	// credentials for the requested operation.
	ErrPermission = errors.New("permission denied by storage backend")
)

// Class is the coarse category of a storage error, used both to drive the
// retry policy and to pick an actionable user-facing message.
type Class int

const (
	ClassUnknown Class = iota
	ClassTransient
	ClassTimeout
	ClassConflict
	ClassNotFound
	ClassPermission
)

// Classify maps an error from any Backend into a Class.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrExists):
		return ClassConflict
	case errors.Is(err, ErrPermission):
		return ClassPermission
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassTransient
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return ClassPermission
		case apiErr.Code == 404:
			return ClassNotFound
		case apiErr.Code == 409:
			return ClassConflict
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return ClassTransient
		}
	}
	return ClassUnknown
}

// Retryable reports whether an error class is worth another attempt.
func (c Class) Retryable() bool {
	return c == ClassTransient || c == ClassTimeout
}

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "network"
	case ClassTimeout:
		return "timeout"
	case ClassConflict:
		return "already exists"
	case ClassNotFound:
		return "not found"
	case ClassPermission:
		return "permission"
	default:
		return "unrecognized"
	}
}
