package actor

import "errors"

var (
	ErrNilActor        = errors.New("actor is nil")
	ErrActorRegistered = errors.New("actor already registered")
	ErrInvalidFPS      = errors.New("frames per second must be between 1 and 1000")
)
