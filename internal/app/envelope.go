package app

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Kind tags the content of an application message.
type Kind uint8

const (
	KindText Kind = 1
	KindFile Kind = 2
	KindAck  Kind = 3 // Name echoes the acknowledged message; a non-empty Body is an error text
)

const envelopeHeaderSize = 3 // kind(1) + nameLen(2)

var ErrMalformedEnvelope = errors.New("malformed message envelope")

// Envelope is the application layout inside one reassembled message:
//
//	[kind:u8][nameLen:u16 BE][name][body]
type Envelope struct {
	Kind Kind
	Name string
	Body []byte
}

func (e *Envelope) Marshal() ([]byte, error) {
	if len(e.Name) > math.MaxUint16 {
		return nil, fmt.Errorf("name too long: %d bytes", len(e.Name))
	}
	buf := make([]byte, envelopeHeaderSize, envelopeHeaderSize+len(e.Name)+len(e.Body))
	buf[0] = byte(e.Kind)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(e.Name)))
	buf = append(buf, e.Name...)
	return append(buf, e.Body...), nil
}

// ParseEnvelope decodes msg. Body aliases msg.
func ParseEnvelope(msg []byte) (*Envelope, error) {
	if len(msg) < envelopeHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedEnvelope, len(msg))
	}
	kind := Kind(msg[0])
	switch kind {
	case KindText, KindFile, KindAck:
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedEnvelope, kind)
	}
	nameLen := int(binary.BigEndian.Uint16(msg[1:3]))
	if len(msg) < envelopeHeaderSize+nameLen {
		return nil, fmt.Errorf("%w: name length %d exceeds message", ErrMalformedEnvelope, nameLen)
	}
	return &Envelope{
		Kind: kind,
		Name: string(msg[envelopeHeaderSize : envelopeHeaderSize+nameLen]),
		Body: msg[envelopeHeaderSize+nameLen:],
	}, nil
}
