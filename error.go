package livehost

import (
	"errors"
	"strings"

	"pipelined.dev/livehost/internal/runtime"
)

var (
	// ErrInvalidState is returned if host method cannot be executed at this moment.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidBlockSize is returned when block size is not positive.
	ErrInvalidBlockSize = errors.New("invalid block size")
	// ErrNoOutputs is returned when plugin doesn't produce audio.
	ErrNoOutputs = errors.New("plugin has no outputs")
	// ErrPlugin is returned when plugin fails during processing.
	ErrPlugin = runtime.ErrPlugin
	// ErrTap is returned when output tap fails.
	ErrTap = runtime.ErrTap
)

// closeErrors wraps errors that might occur when multiple components
// fail to close.
type closeErrors []error

func (e closeErrors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ",")
}

// Unwrap allows to match any of wrapped errors.
func (e closeErrors) Unwrap() []error {
	return e
}

// ret returns untyped nil if error is list is empty.
func (e closeErrors) ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
