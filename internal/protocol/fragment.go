package protocol

import (
	"encoding/binary"
	"fmt"
)

// Fragmentation profile: 16 KiB per fragment, at most 4096 fragments,
// which caps a single message at 64 MiB.
const (
	FragmentSize         = 16 * 1024
	MaxFragments         = 4096
	MaxMessageSize       = FragmentSize * MaxFragments
	FragmentHeaderSize   = 8
	MaxMsgID             = 1<<24 - 1
	FragmentFlagLast     = 0x01
	MaxFragmentPlaintext = FragmentHeaderSize + FragmentSize
)

// FragmentHeader prefixes every fragment inside the sealed payload:
// [flags:u8][msgID:u24][index:u16][total:u16].
type FragmentHeader struct {
	Flags uint8
	MsgID uint32 // 24 bits used
	Index uint16
	Total uint16
}

// Last reports whether the header marks the final fragment.
func (h FragmentHeader) Last() bool { return h.Flags&FragmentFlagLast != 0 }

// AppendFragment writes the header followed by payload onto dst.
func AppendFragment(dst []byte, h FragmentHeader, payload []byte) []byte {
	dst = append(dst, h.Flags, byte(h.MsgID>>16), byte(h.MsgID>>8), byte(h.MsgID))
	dst = binary.BigEndian.AppendUint16(dst, h.Index)
	dst = binary.BigEndian.AppendUint16(dst, h.Total)
	return append(dst, payload...)
}

// ParseFragment validates a decrypted fragment and returns its header and payload.
// The payload aliases plain.
func ParseFragment(plain []byte) (FragmentHeader, []byte, error) {
	if len(plain) < FragmentHeaderSize {
		return FragmentHeader{}, nil, New(KindMalformedFragment, fmt.Sprintf("fragment too short: %d bytes", len(plain)))
	}
	h := FragmentHeader{
		Flags: plain[0],
		MsgID: uint32(plain[1])<<16 | uint32(plain[2])<<8 | uint32(plain[3]),
		Index: binary.BigEndian.Uint16(plain[4:6]),
		Total: binary.BigEndian.Uint16(plain[6:8]),
	}
	payload := plain[FragmentHeaderSize:]

	switch {
	case h.Total == 0 || int(h.Total) > MaxFragments:
		return h, nil, New(KindMalformedFragment, fmt.Sprintf("fragment total %d out of range", h.Total))
	case h.Index >= h.Total:
		return h, nil, New(KindMalformedFragment, fmt.Sprintf("fragment index %d >= total %d", h.Index, h.Total))
	case len(payload) > FragmentSize:
		return h, nil, New(KindMalformedFragment, fmt.Sprintf("fragment payload %d exceeds %d", len(payload), FragmentSize))
	case h.Last() != (h.Index == h.Total-1):
		return h, nil, New(KindMalformedFragment, fmt.Sprintf("last flag disagrees with index %d/%d", h.Index, h.Total))
	}
	return h, payload, nil
}
