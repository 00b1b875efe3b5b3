package mailbox

import (
	"encoding/binary"
)

// FoEHeaderLen is the length of the FoE sub-header in bytes.
const FoEHeaderLen = 6

// FoEOp identifies the FoE operation.
type FoEOp uint8

// FoE operations.
const (
	FoERead  FoEOp = 1 // open a read session, payload is the file name
	FoEWrite FoEOp = 2 // open a write session, payload is the file name
	FoEData  FoEOp = 3 // one data block, numbered
	FoEAck   FoEOp = 4 // acknowledge of a numbered block
	FoEErr   FoEOp = 5 // abort with error code and optional text
	FoEBusy  FoEOp = 6 // device busy, retry the block
)

// FoEFrame is a decoded FoE PDU. Num carries the packet number for data and
// ack frames, the password for read/write requests, and the error code for
// error frames.
type FoEFrame struct {
	Op   FoEOp
	Num  uint32
	Data []byte
}

// Encode serializes the FoE PDU.
func (f *FoEFrame) Encode() []byte {
	buf := make([]byte, FoEHeaderLen+len(f.Data))
	buf[0] = uint8(f.Op)
	binary.LittleEndian.PutUint32(buf[2:], f.Num)
	copy(buf[FoEHeaderLen:], f.Data)
	return buf
}

// DecodeFoE parses an FoE PDU.
func DecodeFoE(b []byte) (*FoEFrame, error) {
	if len(b) < FoEHeaderLen {
		return nil, ErrShortFrame
	}
	return &FoEFrame{
		Op:   FoEOp(b[0]),
		Num:  binary.LittleEndian.Uint32(b[2:]),
		Data: b[FoEHeaderLen:],
	}, nil
}
