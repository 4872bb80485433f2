package record

// WindowSize is the number of recent sequence numbers tracked per direction.
const WindowSize = 64

// Window is a sliding replay bitmap. Bit i set means maxSeq-i was accepted.
type Window struct {
	maxSeq uint64
	bitmap uint64
}

// Check reports whether seq would be accepted, without recording it.
func (w *Window) Check(seq uint64) bool {
	if seq > w.maxSeq {
		return true
	}
	offset := w.maxSeq - seq
	if offset >= WindowSize {
		return false
	}
	return (w.bitmap>>offset)&1 == 0
}

// Accept records seq if it is new and inside the window.
func (w *Window) Accept(seq uint64) bool {
	if seq > w.maxSeq {
		shift := seq - w.maxSeq
		if shift >= WindowSize {
			w.bitmap = 0
		} else {
			w.bitmap <<= shift
		}
		w.bitmap |= 1
		w.maxSeq = seq
		return true
	}

	offset := w.maxSeq - seq
	if offset >= WindowSize {
		return false
	}
	if (w.bitmap>>offset)&1 == 1 {
		return false
	}
	w.bitmap |= 1 << offset
	return true
}

// MaxSeq returns the highest accepted sequence number.
func (w *Window) MaxSeq() uint64 { return w.maxSeq }
