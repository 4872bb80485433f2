// Package protocol defines the BitSeal-RTC wire formats: the sealed record
// frame, the fragment header carried inside it, and the protocol error kinds.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame layout: [len:u32][flags:u8][seq:u64][ciphertext][tag:16], big endian.
// len counts everything after the length field.
const (
	LengthSize = 4
	FlagsSize  = 1
	SeqSize    = 8
	TagSize    = 16

	// HeaderSize is the cleartext prefix before the ciphertext.
	HeaderSize = LengthSize + FlagsSize + SeqSize
	// Overhead is the smallest possible frame (empty ciphertext).
	Overhead = HeaderSize + TagSize
)

// AEAD parameters.
const (
	KeySize   = 32
	SaltSize  = 4
	NonceSize = SaltSize + SeqSize
	ADSize    = FlagsSize + SeqSize
)

// Frame is the parsed view of one record. Ciphertext and Tag alias the
// buffer handed to ParseFrame.
type Frame struct {
	Flags      uint8
	Seq        uint64
	Ciphertext []byte
	Tag        []byte
}

// AppendFrame serializes f onto dst and returns the extended slice.
func AppendFrame(dst []byte, f *Frame) []byte {
	length := uint32(FlagsSize + SeqSize + len(f.Ciphertext) + TagSize)
	dst = binary.BigEndian.AppendUint32(dst, length)
	dst = append(dst, f.Flags)
	dst = binary.BigEndian.AppendUint64(dst, f.Seq)
	dst = append(dst, f.Ciphertext...)
	return append(dst, f.Tag...)
}

// ParseFrame splits a wire frame into its fields without decrypting it.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < Overhead {
		return nil, New(KindShortFrame, fmt.Sprintf("frame too short: %d bytes (need at least %d)", len(data), Overhead))
	}
	length := binary.BigEndian.Uint32(data[:LengthSize])
	if uint64(length) != uint64(len(data)-LengthSize) {
		return nil, New(KindLengthMismatch, fmt.Sprintf("length mismatch: header says %d, frame carries %d", length, len(data)-LengthSize))
	}
	return &Frame{
		Flags:      data[LengthSize],
		Seq:        binary.BigEndian.Uint64(data[LengthSize+FlagsSize : HeaderSize]),
		Ciphertext: data[HeaderSize : len(data)-TagSize],
		Tag:        data[len(data)-TagSize:],
	}, nil
}

// Nonce builds salt || seq.
func Nonce(salt []byte, seq uint64) []byte {
	nonce := make([]byte, 0, NonceSize)
	nonce = append(nonce, salt...)
	return binary.BigEndian.AppendUint64(nonce, seq)
}

// AssociatedData builds flags || seq.
func AssociatedData(flags uint8, seq uint64) []byte {
	ad := make([]byte, 0, ADSize)
	ad = append(ad, flags)
	return binary.BigEndian.AppendUint64(ad, seq)
}
