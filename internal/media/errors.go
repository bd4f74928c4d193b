package media

import (
	"errors"
	"fmt"
)

var (
	ErrNoDevice       = errors.New("no capture device available")
	ErrReleased       = errors.New("capture already released")
	ErrShareCancelled = errors.New("screen share request cancelled")
)

// CaptureError wraps a device-layer failure with the operation that hit it.
type CaptureError struct {
	Op  string
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CaptureError {
	return &CaptureError{Op: op, Err: err}
}
