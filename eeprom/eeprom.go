// Package eeprom provides word-addressed access to a device's configuration
// memory (SII) through the slave controller's EEPROM interface registers.
//
// The enumerator reads device identity and descriptor words through this
// package; configuration callbacks may use it for vendor-specific areas.
package eeprom

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/openec/go-ecat/esc"
)

// SII word addresses of the configuration memory layout.
const (
	SIIVendor     = 0x08 // vendor id, 2 words
	SIIProduct    = 0x0A // product code, 2 words
	SIIRevision   = 0x0C // revision number, 2 words
	SIIMbxRecvOff = 0x18 // receive mailbox physical start
	SIIMbxRecvLen = 0x19 // receive mailbox size
	SIIMbxSendOff = 0x1A // send mailbox physical start
	SIIMbxSendLen = 0x1B // send mailbox size
	SIIMbxProto   = 0x1C // supported mailbox protocols
	SIIOutputBits = 0x30 // declared output process data size in bits
	SIIInputBits  = 0x31 // declared input process data size in bits
	SIIDCSupport  = 0x32 // distributed clock capability
	SIIOutputOff  = 0x33 // physical start of the output process data area
	SIIInputOff   = 0x34 // physical start of the input process data area
)

// Mailbox protocol bits of the SIIMbxProto word.
const (
	ProtoAoE = 0x01
	ProtoEoE = 0x02
	ProtoCoE = 0x04
	ProtoFoE = 0x08
	ProtoSoE = 0x10
	ProtoVoE = 0x20
)

var (
	// ErrTimeout indicates that the EEPROM interface stayed busy past the deadline.
	ErrTimeout = errors.New("eeprom busy timeout")

	// ErrNoResponse indicates that the device did not answer a register access
	// of the EEPROM interface.
	ErrNoResponse = errors.New("no response from eeprom interface")
)

// RegisterBus is the register access the EEPROM interface runs on. The master
// core implements it with configured-station-address datagrams.
type RegisterBus interface {
	// ReadRegister reads n bytes from a device register, addressed by
	// configured station address.
	ReadRegister(station uint16, offset uint16, n int) ([]byte, error)
	// WriteRegister writes data to a device register, addressed by
	// configured station address.
	WriteRegister(station uint16, offset uint16, data []byte) error
}

// Device is the EEPROM of one device, addressed by configured station address.
type Device struct {
	bus     RegisterBus
	station uint16
}

// New returns the EEPROM device of the given station.
func New(bus RegisterBus, station uint16) *Device {
	return &Device{bus: bus, station: station}
}

const pollInterval = 50 * time.Microsecond

// waitIdle polls the EEPROM control register until the busy flag clears or the
// timeout elapses.
func (d *Device) waitIdle(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		b, err := d.bus.ReadRegister(d.station, esc.RegEEPROMControl, 2)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoResponse, err)
		}

		if binary.LittleEndian.Uint16(b)&esc.EEPROMBusy == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return ErrTimeout
		}
		time.Sleep(pollInterval)
	}
}

// read issues one EEPROM read cycle and returns the 4 data bytes at the given
// word address.
func (d *Device) read(word uint16, timeout time.Duration) ([]byte, error) {
	if err := d.waitIdle(timeout); err != nil {
		return nil, err
	}

	addr := make([]byte, 4)
	binary.LittleEndian.PutUint32(addr, uint32(word))
	if err := d.bus.WriteRegister(d.station, esc.RegEEPROMAddr, addr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	cmd := make([]byte, 2)
	binary.LittleEndian.PutUint16(cmd, esc.EEPROMCmdRead)
	if err := d.bus.WriteRegister(d.station, esc.RegEEPROMControl, cmd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	if err := d.waitIdle(timeout); err != nil {
		return nil, err
	}

	data, err := d.bus.ReadRegister(d.station, esc.RegEEPROMData, 4)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	return data, nil
}

// ReadWord reads one 16-bit word from the configuration memory.
func (d *Device) ReadWord(word uint16, timeout time.Duration) (uint16, error) {
	data, err := d.read(word, timeout)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// ReadUint32 reads two consecutive words as one 32-bit value.
func (d *Device) ReadUint32(word uint16, timeout time.Duration) (uint32, error) {
	data, err := d.read(word, timeout)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// WriteWord writes one 16-bit word to the configuration memory.
func (d *Device) WriteWord(word uint16, value uint16, timeout time.Duration) error {
	if err := d.waitIdle(timeout); err != nil {
		return err
	}

	addr := make([]byte, 4)
	binary.LittleEndian.PutUint32(addr, uint32(word))
	if err := d.bus.WriteRegister(d.station, esc.RegEEPROMAddr, addr); err != nil {
		return fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data, value)
	if err := d.bus.WriteRegister(d.station, esc.RegEEPROMData, data); err != nil {
		return fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	cmd := make([]byte, 2)
	binary.LittleEndian.PutUint16(cmd, esc.EEPROMCmdWrite)
	if err := d.bus.WriteRegister(d.station, esc.RegEEPROMControl, cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrNoResponse, err)
	}

	return d.waitIdle(timeout)
}
