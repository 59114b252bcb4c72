package wire

// WindowWidth is the number of sequence ids of local history the bitfield
// window tracks. The wire-visible ack field is always the low 16 bits
// (First16/Combine); the remaining 64 bits are kept locally only so the
// duplicate filter and pending-clear tracker have 64 sequence ids of slack
// beyond what fits in a single ack datagram (80 in total).
const WindowWidth = 80

// Window is a fixed-width shift register used both as the "received"
// duplicate filter and the "acked" delivery tracker on a Connection. Bit 0
// is always the newest tracked sequence id; bit k (k>=1) is k sequence ids
// older. It has no notion of which sequence id it currently represents —
// callers track that (lastReceivedSeq / lastAckedSeq) alongside it.
type Window struct {
	lo uint64 // bits 0..63
	hi uint64 // bits 64..(WindowWidth-1), held in the low bits of hi
}

const hiBits = WindowWidth - 64
const hiMask = (uint64(1) << hiBits) - 1

// ShiftBy left-shifts the register by n positions, discarding bits that
// fall off the top and introducing zeros at bit 0. n <= 0 is a no-op; n >=
// WindowWidth invalidates the whole register (all history is too old to
// mean anything), matching the "gap exceeds window" rule in the gap
// arithmetic spec.
func (w *Window) ShiftBy(n int) {
	switch {
	case n <= 0:
		return
	case n >= WindowWidth:
		*w = Window{}
	case n >= 64:
		w.hi = (w.lo << uint(n-64)) & hiMask
		w.lo = 0
	default:
		w.hi = ((w.hi << uint(n)) | (w.lo >> uint(64-n))) & hiMask
		w.lo <<= uint(n)
	}
}

// Set marks bit k (0-based from the newest tracked position) as present.
// Out-of-range k is silently ignored.
func (w *Window) Set(k int) {
	if k < 0 || k >= WindowWidth {
		return
	}
	if k < 64 {
		w.lo |= uint64(1) << uint(k)
	} else {
		w.hi |= uint64(1) << uint(k-64)
	}
}

// IsSet tests bit k. Out-of-range k reads as unset.
func (w *Window) IsSet(k int) bool {
	if k < 0 || k >= WindowWidth {
		return false
	}
	if k < 64 {
		return w.lo&(uint64(1)<<uint(k)) != 0
	}
	return w.hi&(uint64(1)<<uint(k-64)) != 0
}

// Combine ORs a remote peer's 16-bit ack summary into the low bits, used
// when applying an inbound Ack/AckExtra's ackBits field.
func (w *Window) Combine(bits16 uint16) {
	w.lo |= uint64(bits16)
}

// First16 reads the low 16 bits, the portion of the window that is ever
// placed on the wire as an ack's ackBits field.
func (w *Window) First16() uint16 {
	return uint16(w.lo)
}
