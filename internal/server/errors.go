package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrMissingName          = errors.New("connection name is required")
	ErrListenerFailed       = errors.New("failed to create listener")
)
