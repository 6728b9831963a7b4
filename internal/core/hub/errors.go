package hub

import "errors"

var (
	ErrNilPeer        = errors.New("peer is nil")
	ErrPeerRegistered = errors.New("peer already registered")
)
