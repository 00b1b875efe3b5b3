package frame

import (
	"encoding/binary"
)

const (
	// HeaderLen is the length of the EtherCAT frame header in bytes.
	HeaderLen = 2
	// DatagramHeaderLen is the length of a datagram header in bytes.
	DatagramHeaderLen = 10
	// WkcLen is the length of the working counter trailer in bytes.
	WkcLen = 2
	// DatagramOverheadLen is the per-datagram overhead (header + working counter).
	DatagramOverheadLen = DatagramHeaderLen + WkcLen

	// MaxFrameLen is the maximum length of a whole EtherCAT frame, header included.
	MaxFrameLen = 1500
	// MaxFrameDataLen is the maximum number of bytes available for datagrams in one frame.
	MaxFrameDataLen = MaxFrameLen - HeaderLen
	// MaxDataLen is the maximum data payload of a single datagram in a full-size frame.
	MaxDataLen = MaxFrameDataLen - DatagramOverheadLen
)

// Datagram length word bits: 11-bit data length, circulating flag, more-follows flag.
const (
	dataLenMask    = (1 << 11) - 1
	circulatingBit = 1 << 14
	moreBit        = 1 << 15
)

// Datagram is a single EtherCAT datagram: one command addressed to a span of
// the bus-wide physical or logical memory space.
//
// Index is free for use by the master; responses carry it back unchanged, which
// is what the cyclic engine keys its outstanding-datagram stack on.
type Datagram struct {
	Command     Command
	Index       uint8
	Addr        uint32
	Circulating bool
	IRQ         uint16
	Data        []byte
	Wkc         uint16
}

// PhysAddr packs a device address (position or configured station) and a
// register offset into the datagram 32-bit address field.
func PhysAddr(device, offset uint16) uint32 {
	return uint32(device) | uint32(offset)<<16
}

// DeviceAddr returns the device part (position or configured station address)
// of a physically addressed datagram.
func (dg *Datagram) DeviceAddr() uint16 {
	return uint16(dg.Addr)
}

// OffsetAddr returns the register offset part of a physically addressed datagram.
func (dg *Datagram) OffsetAddr() uint16 {
	return uint16(dg.Addr >> 16)
}

// LogicalAddr returns the full 32-bit logical address of a logically addressed datagram.
func (dg *Datagram) LogicalAddr() uint32 {
	return dg.Addr
}

// ByteLen returns the encoded length of the datagram including header and
// working counter.
func (dg *Datagram) ByteLen() int {
	return DatagramOverheadLen + len(dg.Data)
}

// encode writes the datagram into b, which must be at least ByteLen() bytes.
// more marks that further datagrams follow in the same frame.
// It returns the number of bytes written.
func (dg *Datagram) encode(b []byte, more bool) int {
	b[0] = byte(dg.Command)
	b[1] = dg.Index
	binary.LittleEndian.PutUint32(b[2:], dg.Addr)

	lenWord := uint16(len(dg.Data)) & dataLenMask
	if dg.Circulating {
		lenWord |= circulatingBit
	}
	if more {
		lenWord |= moreBit
	}
	binary.LittleEndian.PutUint16(b[6:], lenWord)
	binary.LittleEndian.PutUint16(b[8:], dg.IRQ)

	copy(b[DatagramHeaderLen:], dg.Data)
	binary.LittleEndian.PutUint16(b[DatagramHeaderLen+len(dg.Data):], dg.Wkc)

	return dg.ByteLen()
}

// decodeDatagram parses one datagram from b.
// It returns the datagram, the remaining bytes, and whether more datagrams follow.
func decodeDatagram(b []byte) (dg *Datagram, rest []byte, more bool, err error) {
	if len(b) < DatagramHeaderLen {
		return nil, b, false, ErrFrameTooShort
	}

	dg = &Datagram{
		Command: Command(b[0]),
		Index:   b[1],
		Addr:    binary.LittleEndian.Uint32(b[2:]),
		IRQ:     binary.LittleEndian.Uint16(b[8:]),
	}

	lenWord := binary.LittleEndian.Uint16(b[6:])
	dataLen := int(lenWord & dataLenMask)
	dg.Circulating = lenWord&circulatingBit != 0
	more = lenWord&moreBit != 0

	b = b[DatagramHeaderLen:]
	if len(b) < dataLen+WkcLen {
		return nil, b, false, ErrFrameTooShort
	}

	dg.Data = b[:dataLen:dataLen]
	dg.Wkc = binary.LittleEndian.Uint16(b[dataLen:])

	return dg, b[dataLen+WkcLen:], more, nil
}
