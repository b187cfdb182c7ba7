package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks caller misuse, e.g. normalizing object-shaped results without an extractor
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedFrame marks a column frame with a non-numeric row index
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrNetworkFailure marks a BEO request that failed or returned a non-success status
	ErrNetworkFailure = errors.New("network failure")

	// ErrRollbackFailure marks a rollback that could not be applied because the entity is gone
	ErrRollbackFailure = errors.New("rollback failure")

	// ErrNotFound marks a lookup of an entity that is not in the store
	ErrNotFound = errors.New("not found")
)

// NetworkError describes a failed request against the BEO API
type NetworkError struct {
	Op     string // e.g. "GET /v1/cost/scenario/"
	Status int    // 0 when the request never got a response
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
		}
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNetworkFailure) match every NetworkError
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetworkFailure
}
