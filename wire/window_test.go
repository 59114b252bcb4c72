package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowSetIsSet(t *testing.T) {
	var w Window
	w.Set(0)
	w.Set(5)
	w.Set(79)

	require.True(t, w.IsSet(0))
	require.True(t, w.IsSet(5))
	require.True(t, w.IsSet(79))
	require.False(t, w.IsSet(1))
	require.False(t, w.IsSet(80), "bit 80 is out of range for an 80-bit window")
}

func TestWindowShiftByMovesBitsUp(t *testing.T) {
	var w Window
	w.Set(0) // newest received
	w.ShiftBy(1)

	require.False(t, w.IsSet(0), "bit 0 after a shift is the brand-new slot, unset")
	require.True(t, w.IsSet(1), "the old bit 0 is now one position older")
}

func TestWindowShiftAcrossWordBoundary(t *testing.T) {
	var w Window
	w.Set(0)
	w.ShiftBy(64)
	require.True(t, w.IsSet(64))
	require.False(t, w.IsSet(0))
}

func TestWindowShiftBeyondWidthZeroesRegister(t *testing.T) {
	var w Window
	w.Set(0)
	w.Set(79)
	w.ShiftBy(WindowWidth)
	require.False(t, w.IsSet(0))
	require.False(t, w.IsSet(79))
}

func TestWindowCombineAndFirst16(t *testing.T) {
	var w Window
	w.Set(20) // bit outside the wire-visible low 16 bits
	w.Combine(0x00FF)

	require.Equal(t, uint16(0x00FF), w.First16())
	require.True(t, w.IsSet(20), "Combine must not disturb bits above 16")
}

func TestGapWrapsAroundSixteenBits(t *testing.T) {
	require.EqualValues(t, 1, Gap(0, 65535), "seq 0 is one newer than 65535 across the wrap")
	require.EqualValues(t, -1, Gap(65535, 0))
	require.EqualValues(t, 0, Gap(42, 42))
	require.EqualValues(t, 10, Gap(52, 42))
	require.EqualValues(t, -10, Gap(42, 52))
}

func TestGapBoundaryHalfway(t *testing.T) {
	// exactly half the space around: canonical distance resolves to +32768.
	require.EqualValues(t, 32768, Gap(32768, 0))
}
