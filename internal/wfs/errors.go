package wfs

import (
	"errors"
	"fmt"
)

// Kind categorizes page fetch failures.
type Kind string

const (
	// KindNetwork covers transport failures, timeouts and non-2xx statuses.
	KindNetwork Kind = "network"

	// KindDecode covers payloads that are not a GeoJSON FeatureCollection.
	KindDecode Kind = "decode"
)

// Sentinels for errors.Is.
var (
	ErrNetwork = errors.New("wfs: network failure")
	ErrDecode  = errors.New("wfs: decode failure")
)

// Error is a failed page fetch.
type Error struct {
	Kind   Kind
	URL    string
	Status int // HTTP status, 0 for transport failures
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("wfs %s: status %d: %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("wfs %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrNetwork and ErrDecode by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrDecode:
		return e.Kind == KindDecode
	}
	return false
}
