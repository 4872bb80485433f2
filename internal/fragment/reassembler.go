package fragment

import (
	"container/list"
	"time"

	"github.com/1ureka/bitseal/internal/protocol"
)

// Decoder authenticates one wire frame. *record.Session implements it.
type Decoder interface {
	Decode(frame []byte) ([]byte, error)
}

// Limits bound the memory held by incomplete messages. Zero fields fall back
// to the defaults; a negative MaxAge disables age eviction.
type Limits struct {
	MaxPending int           // incomplete messages held at once
	MaxBytes   int           // fragment bytes held across all incomplete messages
	MaxAge     time.Duration // since the last new fragment of a message arrived
}

const (
	DefaultMaxPending = 32
	DefaultMaxBytes   = 4 * protocol.MaxMessageSize
	DefaultMaxAge     = time.Minute
)

func (l Limits) withDefaults() Limits {
	if l.MaxPending <= 0 {
		l.MaxPending = DefaultMaxPending
	}
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBytes
	}
	if l.MaxAge == 0 {
		l.MaxAge = DefaultMaxAge
	}
	return l
}

// pending accumulates the fragments of one message.
type pending struct {
	msgID    uint32
	total    uint16
	frags    [][]byte
	received uint16
	size     int
	touched  time.Time // last new fragment
}

// Reassembler rebuilds messages from frames arriving in any order. It is
// not safe for concurrent use.
//
// Incomplete messages live in an LRU list; the least recently touched one is
// dropped when a limit is exceeded, and any other message idle for longer
// than MaxAge is dropped on the next Push.
type Reassembler struct {
	dec    Decoder
	limits Limits
	now    func() time.Time

	msgs    map[uint32]*list.Element
	lru     *list.List // front = most recently touched
	bytes   int
	evicted uint64
}

func NewReassembler(dec Decoder, limits Limits) *Reassembler {
	return &Reassembler{
		dec:    dec,
		limits: limits.withDefaults(),
		now:    time.Now,
		msgs:   make(map[uint32]*list.Element),
		lru:    list.New(),
	}
}

// Push decodes one frame. It returns the complete message and true once the
// last missing fragment arrives. Decode errors are returned unchanged;
// protocol.KindReplay among them is expected under reordering and should be
// ignored by the caller.
func (r *Reassembler) Push(frame []byte) ([]byte, bool, error) {
	plain, err := r.dec.Decode(frame)
	if err != nil {
		return nil, false, err
	}
	h, payload, err := protocol.ParseFragment(plain)
	if err != nil {
		return nil, false, err
	}

	now := r.now()
	r.expire(now, h.MsgID)

	p := r.lookup(h)
	if p.frags[h.Index] == nil {
		p.touched = now
		if payload == nil {
			payload = []byte{}
		}
		p.frags[h.Index] = payload
		p.received++
		p.size += len(payload)
		r.bytes += len(payload)
	}

	if p.received < p.total {
		r.enforce()
		return nil, false, nil
	}

	msg := make([]byte, 0, p.size)
	for _, frag := range p.frags {
		msg = append(msg, frag...)
	}
	r.remove(r.msgs[p.msgID])
	return msg, true, nil
}

// lookup returns the buffer for h.MsgID, creating it on first sight. A
// buffer whose total disagrees belongs to an earlier message that wrapped
// onto the same ID and is replaced.
func (r *Reassembler) lookup(h protocol.FragmentHeader) *pending {
	if el, ok := r.msgs[h.MsgID]; ok {
		p := el.Value.(*pending)
		if p.total == h.Total {
			r.lru.MoveToFront(el)
			return p
		}
		r.drop(el)
	}

	p := &pending{
		msgID: h.MsgID,
		total: h.Total,
		frags: make([][]byte, h.Total),
	}
	r.msgs[h.MsgID] = r.lru.PushFront(p)
	return p
}

// enforce evicts from the back until the count and byte limits hold. The
// front entry (the one just touched) is never evicted.
func (r *Reassembler) enforce() {
	for r.lru.Len() > 1 && (r.lru.Len() > r.limits.MaxPending || r.bytes > r.limits.MaxBytes) {
		r.drop(r.lru.Back())
	}
}

// expire drops idle messages other than active, the one being pushed.
func (r *Reassembler) expire(now time.Time, active uint32) {
	if r.limits.MaxAge < 0 {
		return
	}
	for el := r.lru.Back(); el != nil; {
		prev := el.Prev()
		p := el.Value.(*pending)
		if p.msgID != active && now.Sub(p.touched) > r.limits.MaxAge {
			r.drop(el)
		}
		el = prev
	}
}

func (r *Reassembler) drop(el *list.Element) {
	r.remove(el)
	r.evicted++
}

func (r *Reassembler) remove(el *list.Element) {
	p := r.lru.Remove(el).(*pending)
	delete(r.msgs, p.msgID)
	r.bytes -= p.size
}

// Pending returns the number of incomplete messages held.
func (r *Reassembler) Pending() int { return r.lru.Len() }

// Evicted returns how many incomplete messages were dropped by the limits.
func (r *Reassembler) Evicted() uint64 { return r.evicted }
