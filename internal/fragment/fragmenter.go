// Package fragment splits application messages into sealed record frames and
// reassembles them on the receiving side, tolerating reordering and
// duplicates within the record layer's replay window.
package fragment

import (
	"fmt"

	"github.com/1ureka/bitseal/internal/protocol"
)

// Encoder seals one fragment into a wire frame. *record.Session implements it.
// Encode must not retain plaintext; the Fragmenter reuses the buffer.
type Encoder interface {
	Encode(plaintext []byte, flags uint8) ([]byte, error)
}

// Fragmenter owns the outgoing message ID counter for one session.
// It is not safe for concurrent use.
type Fragmenter struct {
	enc Encoder
	ids MsgIDGen
}

func NewFragmenter(enc Encoder) *Fragmenter {
	return &Fragmenter{enc: enc}
}

// Encode returns the frames for msg in fragment order. An empty message
// yields no frames. Oversized messages fail before any frame is sealed.
func (f *Fragmenter) Encode(msg []byte) ([][]byte, error) {
	total := (len(msg) + protocol.FragmentSize - 1) / protocol.FragmentSize
	if total == 0 {
		return nil, nil
	}
	if total > protocol.MaxFragments {
		return nil, protocol.New(protocol.KindMessageTooLarge,
			fmt.Sprintf("message of %d bytes needs %d fragments (max %d)", len(msg), total, protocol.MaxFragments))
	}

	msgID := f.ids.Next()
	frames := make([][]byte, 0, total)
	plain := make([]byte, 0, protocol.MaxFragmentPlaintext)

	for i := 0; i < total; i++ {
		start := i * protocol.FragmentSize
		end := min(start+protocol.FragmentSize, len(msg))

		h := protocol.FragmentHeader{MsgID: msgID, Index: uint16(i), Total: uint16(total)}
		if i == total-1 {
			h.Flags = protocol.FragmentFlagLast
		}

		plain = protocol.AppendFragment(plain[:0], h, msg[start:end])
		frame, err := f.enc.Encode(plain, 0)
		if err != nil {
			return nil, fmt.Errorf("encode fragment %d/%d of message %d: %w", i, total, msgID, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
