package fragment

import (
	"sync/atomic"

	"github.com/1ureka/bitseal/internal/protocol"
)

// MsgIDGen hands out 24-bit message IDs, wrapping after 2^24 messages.
// It is independent of the record sequence counter.
type MsgIDGen struct {
	val atomic.Uint32
}

// Next returns the next message ID; the first call returns 1.
func (g *MsgIDGen) Next() uint32 {
	return g.val.Add(1) & protocol.MaxMsgID
}
