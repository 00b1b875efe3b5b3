package mailbox

import (
	"errors"
	"fmt"
)

var (
	// ErrShortFrame indicates a mailbox payload shorter than its header claims.
	ErrShortFrame = errors.New("mailbox frame too short")

	// ErrWrongProtocol indicates a mailbox frame of an unexpected sub-protocol type.
	ErrWrongProtocol = errors.New("unexpected mailbox protocol")

	// ErrCounterMismatch indicates a response whose sequence counter does not
	// match the outstanding request. Such responses are stale and discarded.
	ErrCounterMismatch = errors.New("mailbox counter mismatch")

	// ErrToggleMismatch indicates a segment whose toggle bit does not alternate
	// as required. Such segments are stale retransmissions and discarded.
	ErrToggleMismatch = errors.New("segment toggle mismatch")
)

// SDO abort codes returned by a device actively rejecting an object access.
const (
	AbortToggle          uint32 = 0x05030000
	AbortTimeout         uint32 = 0x05040000
	AbortCommand         uint32 = 0x05040001
	AbortAccess          uint32 = 0x06010000
	AbortWriteOnly       uint32 = 0x06010001
	AbortReadOnly        uint32 = 0x06010002
	AbortNotExist        uint32 = 0x06020000
	AbortLengthMismatch  uint32 = 0x06070010
	AbortSubindexMissing uint32 = 0x06090011
	AbortOutOfMemory     uint32 = 0x05040005
	AbortGeneral         uint32 = 0x08000000
	AbortDataStore       uint32 = 0x08000020
)

var abortDescriptions = map[uint32]string{
	AbortToggle:          "toggle bit not changed",
	AbortTimeout:         "SDO protocol timeout",
	AbortCommand:         "command specifier unknown",
	AbortAccess:          "unsupported access to object",
	AbortWriteOnly:       "object is write only",
	AbortReadOnly:        "object is read only",
	AbortNotExist:        "object does not exist",
	AbortLengthMismatch:  "data length does not match object",
	AbortSubindexMissing: "subindex does not exist",
	AbortOutOfMemory:     "out of memory",
	AbortGeneral:         "general error",
	AbortDataStore:       "data cannot be stored",
}

// AbortError is a protocol abort actively returned by a device for an object
// access. It identifies the rejected object and the device's reason.
type AbortError struct {
	Index    uint16
	Subindex uint8
	Code     uint32
}

func (e *AbortError) Error() string {
	desc, ok := abortDescriptions[e.Code]
	if !ok {
		desc = "unknown abort"
	}
	return fmt.Sprintf("SDO abort %#08x on %#04x:%d: %s", e.Code, e.Index, e.Subindex, desc)
}

// FoE error codes carried in an FoE error frame.
const (
	FoEErrNotDefined    uint32 = 0x8000
	FoEErrNotFound      uint32 = 0x8001
	FoEErrAccessDenied  uint32 = 0x8002
	FoEErrDiskFull      uint32 = 0x8003
	FoEErrIllegal       uint32 = 0x8004
	FoEErrPacketNumber  uint32 = 0x8005
	FoEErrAlreadyExists uint32 = 0x8006
	FoEErrNoUser        uint32 = 0x8007
	FoEErrBootstrapOnly uint32 = 0x8008
	FoEErrNotInBootstrap  uint32 = 0x8009
	FoEErrNoRights      uint32 = 0x800A
	FoEErrProgramError  uint32 = 0x800B
)

// FoEError is a protocol error actively returned by a device during a file
// transfer, or a transfer-level failure such as a wrong packet number.
type FoEError struct {
	Code uint32
	Text string
}

func (e *FoEError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("FoE error %#04x: %s", e.Code, e.Text)
	}
	return fmt.Sprintf("FoE error %#04x", e.Code)
}
