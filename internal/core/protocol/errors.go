package protocol

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrSendBufferFull   = errors.New("send buffer is full")
	ErrMessageTooLarge  = errors.New("message too large")
	ErrHandshake        = errors.New("handshake failed")
)
