package mailbox

import (
	"encoding/binary"
	"fmt"
)

// HeaderLen is the length of the common mailbox header in bytes.
const HeaderLen = 6

// Type identifies the sub-protocol carried in a mailbox frame.
type Type uint8

// Mailbox sub-protocol types.
const (
	TypeError Type = 0x00
	TypeEoE   Type = 0x02
	TypeCoE   Type = 0x03
	TypeFoE   Type = 0x04
	TypeSoE   Type = 0x05
)

func (t Type) String() string {
	switch t {
	case TypeError:
		return "ERR"
	case TypeEoE:
		return "EoE"
	case TypeCoE:
		return "CoE"
	case TypeFoE:
		return "FoE"
	case TypeSoE:
		return "SoE"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Header is the common mailbox header preceding every mailbox payload.
//
// Counter is the 3-bit sequence counter (1..7, 0 meaning "not used") that
// detects stale or duplicated responses: a response is only accepted if its
// counter matches the request's.
type Header struct {
	Length   uint16
	Address  uint16
	Priority uint8
	Type     Type
	Counter  uint8
}

// Encode writes the header followed by payload into a single buffer.
func (h *Header) Encode(payload []byte) []byte {
	h.Length = uint16(len(payload))

	buf := make([]byte, HeaderLen+len(payload))
	binary.LittleEndian.PutUint16(buf, h.Length)
	binary.LittleEndian.PutUint16(buf[2:], h.Address)
	buf[4] = h.Priority
	buf[5] = uint8(h.Type)&0x0F | (h.Counter&0x07)<<4
	copy(buf[HeaderLen:], payload)

	return buf
}

// DecodeHeader parses the common mailbox header and returns it together with
// the payload it frames.
func DecodeHeader(b []byte) (*Header, []byte, error) {
	if len(b) < HeaderLen {
		return nil, nil, ErrShortFrame
	}

	h := &Header{
		Length:   binary.LittleEndian.Uint16(b),
		Address:  binary.LittleEndian.Uint16(b[2:]),
		Priority: b[4],
		Type:     Type(b[5] & 0x0F),
		Counter:  b[5] >> 4 & 0x07,
	}

	if int(h.Length) > len(b)-HeaderLen {
		return nil, nil, ErrShortFrame
	}

	return h, b[HeaderLen : HeaderLen+int(h.Length)], nil
}

// NextCounter advances a mailbox sequence counter. Counters run 1..7 and skip
// zero, which marks "counter not used".
func NextCounter(c uint8) uint8 {
	c++
	if c > 7 {
		c = 1
	}
	return c
}
