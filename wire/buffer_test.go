package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteBool(true)
	w.WriteInt8(-7)
	w.WriteUint16(4242)
	w.WriteInt16(-1234)
	w.WriteUint32(123456789)
	w.WriteInt32(-123456789)
	w.WriteUint64(1234567890123)
	w.WriteInt64(-1234567890123)
	w.WriteFloat32(3.5)
	w.WriteFloat64(-2.71828)
	w.WriteString("hello, reliudp")
	w.WriteVarUint(300)
	w.WriteVarInt(-300)

	r := NewReader(w.Bytes())

	b, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, b)

	i8, err := r.ReadInt8()
	require.NoError(t, err)
	require.Equal(t, int8(-7), i8)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(4242), u16)

	i16, err := r.ReadInt16()
	require.NoError(t, err)
	require.Equal(t, int16(-1234), i16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(123456789), u32)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	require.Equal(t, int32(-123456789), i32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(1234567890123), u64)

	i64, err := r.ReadInt64()
	require.NoError(t, err)
	require.Equal(t, int64(-1234567890123), i64)

	f32, err := r.ReadFloat32()
	require.NoError(t, err)
	require.Equal(t, float32(3.5), f32)

	f64, err := r.ReadFloat64()
	require.NoError(t, err)
	require.Equal(t, -2.71828, f64)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello, reliudp", s)

	vu, err := r.ReadVarUint()
	require.NoError(t, err)
	require.Equal(t, uint64(300), vu)

	vi, err := r.ReadVarInt()
	require.NoError(t, err)
	require.Equal(t, int64(-300), vi)

	require.Zero(t, r.Remaining())
}

func TestReaderRejectsReadPastEnd(t *testing.T) {
	w := NewWriter()
	w.WriteUint16(1)

	r := NewReader(w.Bytes())
	_, err := r.ReadUint32()
	require.ErrorIs(t, err, ErrBufferUnderflow)
}

func TestWireEndiannessIsLittleEndianRegardlessOfHost(t *testing.T) {
	w := NewWriter()
	w.WriteUint32(0x01020304)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, w.Bytes())

	r := NewReader(w.Bytes())
	v, err := r.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x01020304), v)
}

func TestVarIntSmallNegativeValuesStayCompact(t *testing.T) {
	for _, v := range []int64{0, -1, 1, -64, 63} {
		w := NewWriter()
		w.WriteVarInt(v)
		require.LessOrEqual(t, w.Len(), 1, "zig-zag varint for %d should fit in one byte", v)

		r := NewReader(w.Bytes())
		got, err := r.ReadVarInt()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}
