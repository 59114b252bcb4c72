package wire

// Gap computes the wrap-aware signed distance between two 16-bit sequence
// ids: positive when a is newer than b, zero when equal, negative when a is
// older. The result is interpreted in (-32768, +32768] — the canonical
// 16-bit wraparound distance, since a and b differ by at most 65535 in
// either direction once reduced mod 2^16.
func Gap(a, b uint16) int32 {
	d := int32(a) - int32(b)
	switch {
	case d > 32768:
		d -= 65536
	case d <= -32768:
		d += 65536
	}
	return d
}
