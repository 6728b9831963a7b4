package dispatch

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateEvent = errors.New("event already registered")
	ErrEmptyEventName = errors.New("event name is empty")
	ErrNilHandler     = errors.New("handler is nil")
	ErrDecode         = errors.New("decode failed")
)

// DecodeError reports an inbound message whose args do not match the
// handler's expected shape. It matches ErrDecode with errors.Is.
type DecodeError struct {
	Event  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Event != "" {
		msg += fmt.Sprintf(" %q", e.Event)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}
