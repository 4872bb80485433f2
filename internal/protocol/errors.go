package protocol

import (
	"errors"
)

// Kind categorizes protocol errors so callers can decide how to react.
// KindReplay is the only kind a conforming caller ignores and continues past;
// every other kind should end the handshake or the session.
type Kind uint8

const (
	KindProtocolMismatch Kind = iota + 1
	KindSignatureInvalid
	KindMalformedMessage
	KindPeerMismatch
	KindStaleHandshake
	KindShortFrame
	KindLengthMismatch
	KindReplay
	KindDecryptFailure
	KindMessageTooLarge
	KindMalformedFragment
	KindSequenceExhausted
)

var kindNames = map[Kind]string{
	KindProtocolMismatch:  "protocol mismatch",
	KindSignatureInvalid:  "signature invalid",
	KindMalformedMessage:  "malformed message",
	KindPeerMismatch:      "peer mismatch",
	KindStaleHandshake:    "stale handshake",
	KindShortFrame:        "short frame",
	KindLengthMismatch:    "length mismatch",
	KindReplay:            "replay",
	KindDecryptFailure:    "decrypt failure",
	KindMessageTooLarge:   "message too large",
	KindMalformedFragment: "malformed fragment",
	KindSequenceExhausted: "sequence exhausted",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Recoverable reports whether an error of this kind leaves the session usable.
func (k Kind) Recoverable() bool {
	return k == KindReplay
}

type Error struct {
	Kind  Kind
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Inner == nil {
		return "bitseal: " + e.Msg
	}
	return "bitseal: " + e.Msg + ": " + e.Inner.Error()
}

func (e *Error) Unwrap() error { return e.Inner }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, inner error) *Error {
	return &Error{Kind: kind, Msg: msg, Inner: inner}
}

// IsKind reports whether err (or anything it wraps) is a protocol error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first protocol error in err's chain, or 0.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
