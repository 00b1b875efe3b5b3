package eeprom_test

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openec/go-ecat/eeprom"
	"github.com/openec/go-ecat/esc"
)

// fakeBus emulates the EEPROM interface registers of one device over a word
// store, including a configurable number of busy polls per command.
type fakeBus struct {
	words     map[uint16]uint16
	station   uint16
	addr      uint32
	data      [4]byte
	busyPolls int
	busyLeft  int
	stuck     bool
	failReads bool
}

func newFakeBus(station uint16, words map[uint16]uint16) *fakeBus {
	return &fakeBus{station: station, words: words}
}

func (b *fakeBus) ReadRegister(station uint16, offset uint16, n int) ([]byte, error) {
	if b.failReads {
		return nil, errors.New("wire down")
	}
	if station != b.station {
		return nil, errors.New("unknown station")
	}

	out := make([]byte, n)
	switch offset {
	case esc.RegEEPROMControl:
		if b.stuck || b.busyLeft > 0 {
			b.busyLeft--
			binary.LittleEndian.PutUint16(out, esc.EEPROMBusy)
		}
	case esc.RegEEPROMData:
		copy(out, b.data[:])
	}
	return out, nil
}

func (b *fakeBus) WriteRegister(station uint16, offset uint16, data []byte) error {
	if station != b.station {
		return errors.New("unknown station")
	}

	switch offset {
	case esc.RegEEPROMAddr:
		b.addr = binary.LittleEndian.Uint32(data)
	case esc.RegEEPROMData:
		copy(b.data[:], data)
	case esc.RegEEPROMControl:
		switch binary.LittleEndian.Uint16(data) {
		case esc.EEPROMCmdRead:
			word := uint16(b.addr)
			binary.LittleEndian.PutUint16(b.data[0:], b.words[word])
			binary.LittleEndian.PutUint16(b.data[2:], b.words[word+1])
		case esc.EEPROMCmdWrite:
			b.words[uint16(b.addr)] = binary.LittleEndian.Uint16(b.data[:2])
		}
		b.busyLeft = b.busyPolls
	}
	return nil
}

func TestReadWord(t *testing.T) {
	bus := newFakeBus(0x1001, map[uint16]uint16{
		eeprom.SIIVendor:     0xCA7E,
		eeprom.SIIVendor + 1: 0x000E,
		eeprom.SIIMbxProto:   eeprom.ProtoCoE | eeprom.ProtoFoE,
	})
	dev := eeprom.New(bus, 0x1001)

	word, err := dev.ReadWord(eeprom.SIIMbxProto, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, uint16(eeprom.ProtoCoE|eeprom.ProtoFoE), word)

	// absent words read as zero, not as an error
	word, err = dev.ReadWord(0x40, 10*time.Millisecond)
	require.NoError(t, err)
	require.Zero(t, word)
}

func TestReadUint32(t *testing.T) {
	bus := newFakeBus(0x1001, map[uint16]uint16{
		eeprom.SIIVendor:     0xCA7E,
		eeprom.SIIVendor + 1: 0x000E,
	})
	dev := eeprom.New(bus, 0x1001)

	v, err := dev.ReadUint32(eeprom.SIIVendor, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, uint32(0x000ECA7E), v)
}

func TestWriteWord(t *testing.T) {
	bus := newFakeBus(0x1001, map[uint16]uint16{})
	dev := eeprom.New(bus, 0x1001)

	require.NoError(t, dev.WriteWord(0x0010, 0xBEEF, 10*time.Millisecond))

	word, err := dev.ReadWord(0x0010, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), word)
}

func TestBusyWait(t *testing.T) {
	bus := newFakeBus(0x1001, map[uint16]uint16{eeprom.SIIDCSupport: 1})
	bus.busyPolls = 3
	dev := eeprom.New(bus, 0x1001)

	word, err := dev.ReadWord(eeprom.SIIDCSupport, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, uint16(1), word)
}

func TestBusyTimeout(t *testing.T) {
	bus := newFakeBus(0x1001, map[uint16]uint16{})
	bus.stuck = true
	dev := eeprom.New(bus, 0x1001)

	start := time.Now()
	_, err := dev.ReadWord(eeprom.SIIVendor, 5*time.Millisecond)
	require.ErrorIs(t, err, eeprom.ErrTimeout)
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestNoResponse(t *testing.T) {
	bus := newFakeBus(0x1001, map[uint16]uint16{})
	bus.failReads = true
	dev := eeprom.New(bus, 0x1001)

	_, err := dev.ReadWord(eeprom.SIIVendor, 5*time.Millisecond)
	require.ErrorIs(t, err, eeprom.ErrNoResponse)
}
