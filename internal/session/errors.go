package session

import (
	"errors"
	"fmt"
)

var (
	ErrPeerDisconnected   = errors.New("peer disconnected")
	ErrSignalingError     = errors.New("signaling server error")
	ErrNegotiationTimeout = errors.New("negotiation timeout")
	ErrSessionClosed      = errors.New("session closed")
	ErrUnexpectedSignal   = errors.New("unexpected signal kind")
)

// SessionError wraps a peer-session failure with the operation and peer it
// belongs to.
type SessionError struct {
	Op      string
	Peer    string
	Err     error
	Details string
}

func (e *SessionError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *SessionError {
	return &SessionError{Op: op, Err: err}
}

func NewPeerError(op, peer string, err error) *SessionError {
	return &SessionError{Op: op, Peer: peer, Err: err}
}

func WrapError(op string, err error, details string) *SessionError {
	return &SessionError{Op: op, Err: err, Details: details}
}
