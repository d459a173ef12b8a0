package studio

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrUserCancelled     = errors.New("cancelled by user")
	ErrInvalidTransition = errors.New("invalid recording state transition")
	ErrEncoding          = errors.New("encoding failed")
	ErrNoCanvas          = errors.New("no canvas to capture")
	ErrNoParticipants    = errors.New("no participant to remove")
	ErrNoScreenShare     = errors.New("screen share not active")
	ErrNoDeviceProvider  = errors.New("no device provider registered")
	ErrClosed            = errors.New("studio closed")
)

// AcquisitionReason classifies why a device could not be acquired.
type AcquisitionReason int

const (
	ReasonPermissionDenied AcquisitionReason = iota
	ReasonNotFound
	ReasonUserCancelled
)

func (r AcquisitionReason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonNotFound:
		return "not found"
	case ReasonUserCancelled:
		return "cancelled by user"
	default:
		return "unknown"
	}
}

func (r AcquisitionReason) sentinel() error {
	switch r {
	case ReasonPermissionDenied:
		return ErrPermissionDenied
	case ReasonNotFound:
		return ErrDeviceNotFound
	case ReasonUserCancelled:
		return ErrUserCancelled
	default:
		return nil
	}
}

// AcquisitionError reports a camera, microphone or display that could not be
// acquired. It matches ErrPermissionDenied, ErrDeviceNotFound or
// ErrUserCancelled with errors.Is.
type AcquisitionError struct {
	Device DeviceKind
	Reason AcquisitionReason
	Err    error // underlying cause, optional
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquire %s: %s: %v", e.Device, e.Reason, e.Err)
	}
	return fmt.Sprintf("acquire %s: %s", e.Device, e.Reason)
}

func (e *AcquisitionError) Is(target error) bool {
	return target == e.Reason.sentinel()
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// InvalidTransitionError is returned when a recording operation is called in
// the wrong state. It matches ErrInvalidTransition.
type InvalidTransitionError struct {
	Op    string
	State SessionState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s", ErrInvalidTransition, e.Op, e.State)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// EncodingError reports a recorder failure. It matches ErrEncoding.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: %v", ErrEncoding, e.Err)
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

func (e *EncodingError) Unwrap() error { return e.Err }
