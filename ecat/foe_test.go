package ecat_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openec/go-ecat/ecat"
	"github.com/openec/go-ecat/mailbox"
	"github.com/openec/go-ecat/sim"
)

// foeSlave uses a wide mailbox so file blocks carry 256 bytes each.
func foeSlave() sim.SlaveConfig {
	return sim.SlaveConfig{
		Vendor:     testVendor,
		Product:    0x46,
		Revision:   1,
		Mailbox:    true,
		MbxRecvOff: 0x1000,
		MbxSendOff: 0x1200,
		MbxLen:     268,
	}
}

func foePattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func TestFoE_WriteRead(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{foeSlave()})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	tests := []struct {
		name string
		size int
	}{
		{name: "short single block", size: 17},
		{name: "exact block multiple", size: 1024},
		{name: "ragged tail", size: 1000},
		{name: "empty file", size: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := foePattern(tt.size)

			require.NoError(t, m.FoEWrite(0, "firmware.bin", 0, data))

			stored, ok := slaves[0].File("firmware.bin")
			require.True(t, ok)
			require.True(t, bytes.Equal(data, stored))

			got, err := m.FoERead(0, "firmware.bin", 0, 0)
			require.NoError(t, err)
			require.True(t, bytes.Equal(data, got))
		})
	}
}

func TestFoE_ReadSizeCap(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{foeSlave()})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	data := foePattern(1024)
	slaves[0].SetFile("big.bin", data)

	got, err := m.FoERead(0, "big.bin", 0, 300)
	require.NoError(t, err)
	require.Len(t, got, 300)
	require.True(t, bytes.Equal(data[:300], got))
}

func TestFoE_NotFound(t *testing.T) {
	m, _, _ := newSegment(t, []sim.SlaveConfig{foeSlave()})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	_, err = m.FoERead(0, "missing.bin", 0, 0)

	var foeErr *mailbox.FoEError
	require.ErrorAs(t, err, &foeErr)
	require.Equal(t, mailbox.FoEErrNotFound, foeErr.Code)
}

func TestFoE_DroppedBlock(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{foeSlave()})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	slaves[0].DropFoEBlock(3)

	err = m.FoEWrite(0, "fw.bin", 0, foePattern(1000))
	require.ErrorIs(t, err, ecat.ErrFoETimeout)

	_, ok := slaves[0].File("fw.bin")
	require.False(t, ok)

	// the session is abandoned; a fresh transfer succeeds
	require.NoError(t, m.FoEWrite(0, "fw.bin", 0, foePattern(1000)))
}

func TestFoE_BusyBlockIsResent(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{foeSlave()})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	slaves[0].BusyFoEBlock(2)

	data := foePattern(1000)
	require.NoError(t, m.FoEWrite(0, "fw.bin", 0, data))

	stored, ok := slaves[0].File("fw.bin")
	require.True(t, ok)
	require.True(t, bytes.Equal(data, stored))
}

func TestFoE_Password(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{foeSlave()})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	slaves[0].SetFilePassword(0xC0FFEE)

	err = m.FoEWrite(0, "locked.bin", 0xBAD, foePattern(64))
	var foeErr *mailbox.FoEError
	require.ErrorAs(t, err, &foeErr)
	require.Equal(t, mailbox.FoEErrNoRights, foeErr.Code)

	require.NoError(t, m.FoEWrite(0, "locked.bin", 0xC0FFEE, foePattern(64)))

	got, err := m.FoERead(0, "locked.bin", 0xC0FFEE, 0)
	require.NoError(t, err)
	require.Equal(t, foePattern(64), got)
}

func TestFoE_NoMailbox(t *testing.T) {
	cfg := foeSlave()
	cfg.Mailbox = false
	m, _, _ := newSegment(t, []sim.SlaveConfig{cfg})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	err = m.FoEWrite(0, "fw.bin", 0, []byte{1})
	require.ErrorIs(t, err, ecat.ErrNoMailbox)

	_, err = m.FoERead(0, "fw.bin", 0, 0)
	require.ErrorIs(t, err, ecat.ErrNoMailbox)
}
