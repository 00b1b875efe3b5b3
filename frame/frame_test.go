package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatagramEncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		dg      Datagram
		dataLen int
	}{
		{
			name: "physical read",
			dg: Datagram{
				Command: FPRD,
				Index:   7,
				Addr:    PhysAddr(0x1001, 0x0130),
				Data:    make([]byte, 2),
			},
		},
		{
			name: "logical read-write",
			dg: Datagram{
				Command: LRW,
				Index:   42,
				Addr:    0x00010000,
				Data:    []byte{0xde, 0xad, 0xbe, 0xef},
			},
		},
		{
			name: "broadcast write",
			dg: Datagram{
				Command: BWR,
				Index:   0,
				Addr:    PhysAddr(0, 0x0120),
				Data:    []byte{0x02, 0x00},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Frame{}
			f.Add(&tt.dg)

			buf, err := f.Encode()
			require.NoError(t, err)
			require.Len(t, buf, HeaderLen+tt.dg.ByteLen())

			decoded, err := Decode(buf)
			require.NoError(t, err)
			require.Len(t, decoded.Datagrams, 1)

			got := decoded.Datagrams[0]
			assert.Equal(t, tt.dg.Command, got.Command)
			assert.Equal(t, tt.dg.Index, got.Index)
			assert.Equal(t, tt.dg.Addr, got.Addr)
			assert.Equal(t, tt.dg.Data, got.Data)
			assert.Equal(t, tt.dg.Wkc, got.Wkc)
		})
	}
}

func TestFrameMultipleDatagrams(t *testing.T) {
	f := &Frame{}
	f.Add(&Datagram{Command: LWR, Index: 1, Addr: 0, Data: []byte{1, 2, 3}})
	f.Add(&Datagram{Command: LRD, Index: 2, Addr: 3, Data: make([]byte, 5)})
	f.Add(&Datagram{Command: BRD, Index: 3, Addr: PhysAddr(0, 0x0130), Data: make([]byte, 2)})

	buf, err := f.Encode()
	require.NoError(t, err)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, decoded.Datagrams, 3)

	assert.Equal(t, uint8(1), decoded.Datagrams[0].Index)
	assert.Equal(t, uint8(2), decoded.Datagrams[1].Index)
	assert.Equal(t, uint8(3), decoded.Datagrams[2].Index)
	assert.Equal(t, LWR, decoded.Datagrams[0].Command)
	assert.Equal(t, LRD, decoded.Datagrams[1].Command)
	assert.Equal(t, BRD, decoded.Datagrams[2].Command)
}

func TestFrameEncodeErrors(t *testing.T) {
	t.Run("no datagrams", func(t *testing.T) {
		f := &Frame{}
		_, err := f.Encode()
		assert.ErrorIs(t, err, ErrNoDatagrams)
	})

	t.Run("frame too long", func(t *testing.T) {
		f := &Frame{}
		f.Add(&Datagram{Command: LWR, Data: make([]byte, MaxDataLen)})
		f.Add(&Datagram{Command: LWR, Data: make([]byte, 16)})
		_, err := f.Encode()
		assert.ErrorIs(t, err, ErrDataTooLong)
	})
}

func TestDecodeErrors(t *testing.T) {
	t.Run("short buffer", func(t *testing.T) {
		_, err := Decode([]byte{0x01})
		assert.ErrorIs(t, err, ErrFrameTooShort)
	})

	t.Run("wrong frame type", func(t *testing.T) {
		f := &Frame{}
		f.Add(&Datagram{Command: NOP, Data: nil})
		buf, err := f.Encode()
		require.NoError(t, err)

		buf[1] = 0xE0 // corrupt the type nibble
		_, err = Decode(buf)
		assert.ErrorIs(t, err, ErrFrameType)
	})

	t.Run("truncated datagram", func(t *testing.T) {
		f := &Frame{}
		f.Add(&Datagram{Command: LRD, Data: make([]byte, 8)})
		buf, err := f.Encode()
		require.NoError(t, err)

		_, err = Decode(buf[:len(buf)-4])
		assert.ErrorIs(t, err, ErrFrameTooShort)
	})
}

func TestFits(t *testing.T) {
	f := &Frame{}
	assert.True(t, f.Fits(MaxDataLen))
	assert.False(t, f.Fits(MaxDataLen+1))

	f.Add(&Datagram{Command: LWR, Data: make([]byte, MaxDataLen)})
	assert.False(t, f.Fits(1))
}

func TestCommandProperties(t *testing.T) {
	assert.True(t, LRW.DoesRead())
	assert.True(t, LRW.DoesWrite())
	assert.True(t, LRW.IsLogical())
	assert.True(t, FPRD.DoesRead())
	assert.False(t, FPRD.DoesWrite())
	assert.True(t, BWR.IsBroadcast())
	assert.True(t, APRD.IsPositional())
	assert.False(t, NOP.DoesRead())
	assert.Equal(t, "LRW", LRW.String())
	assert.Equal(t, "Command(99)", Command(99).String())
}
