package frame

import "fmt"

// Command is the datagram command type. It selects the addressing mode
// (position, configured station, broadcast, logical) and the memory operation
// (read, write, read-write, read-multiple-write).
type Command uint8

// Datagram command types.
const (
	// NOP performs no operation.
	NOP Command = 0
	// APRD is an auto-increment position read.
	APRD Command = 1
	// APWR is an auto-increment position write.
	APWR Command = 2
	// APRW is an auto-increment position read-write.
	APRW Command = 3
	// FPRD is a configured station address read.
	FPRD Command = 4
	// FPWR is a configured station address write.
	FPWR Command = 5
	// FPRW is a configured station address read-write.
	FPRW Command = 6
	// BRD is a broadcast read.
	BRD Command = 7
	// BWR is a broadcast write.
	BWR Command = 8
	// BRW is a broadcast read-write.
	BRW Command = 9
	// LRD is a logical memory read.
	LRD Command = 10
	// LWR is a logical memory write.
	LWR Command = 11
	// LRW is a logical memory read-write.
	LRW Command = 12
	// ARMW is an auto-increment read, multiple write.
	ARMW Command = 13
	// FRMW is a configured station address read, multiple write.
	FRMW Command = 14
)

var commandNames = map[Command]string{
	NOP:  "NOP",
	APRD: "APRD",
	APWR: "APWR",
	APRW: "APRW",
	FPRD: "FPRD",
	FPWR: "FPWR",
	FPRW: "FPRW",
	BRD:  "BRD",
	BWR:  "BWR",
	BRW:  "BRW",
	LRD:  "LRD",
	LWR:  "LWR",
	LRW:  "LRW",
	ARMW: "ARMW",
	FRMW: "FRMW",
}

// String returns the mnemonic of the command.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// DoesRead reports whether the command reads device memory into the datagram.
func (c Command) DoesRead() bool {
	switch c {
	case APRD, FPRD, BRD, LRD, APRW, FPRW, BRW, LRW, ARMW, FRMW:
		return true
	default:
		return false
	}
}

// DoesWrite reports whether the command writes datagram data into device memory.
func (c Command) DoesWrite() bool {
	switch c {
	case APWR, FPWR, BWR, LWR, APRW, FPRW, BRW, LRW:
		return true
	default:
		return false
	}
}

// IsLogical reports whether the command uses 32-bit logical addressing.
func (c Command) IsLogical() bool {
	switch c {
	case LRD, LWR, LRW:
		return true
	default:
		return false
	}
}

// IsPositional reports whether the command uses auto-increment position addressing.
func (c Command) IsPositional() bool {
	switch c {
	case APRD, APWR, APRW, ARMW:
		return true
	default:
		return false
	}
}

// IsBroadcast reports whether the command addresses all devices.
func (c Command) IsBroadcast() bool {
	switch c {
	case BRD, BWR, BRW:
		return true
	default:
		return false
	}
}
