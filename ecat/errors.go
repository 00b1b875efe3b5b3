package ecat

import (
	"errors"
	"fmt"

	"github.com/openec/go-ecat/esc"
	"github.com/openec/go-ecat/frame"
)

var (
	// ErrNoSlaves indicates that no device on the segment answered the
	// enumeration scan.
	ErrNoSlaves = errors.New("no slave connected")

	// ErrSlaveIndex indicates a slave index outside the enumerated registry.
	ErrSlaveIndex = errors.New("slave index out of range")

	// ErrFrameTimeout indicates that a frame round trip got no response within
	// the receive timeout, across all retries.
	ErrFrameTimeout = errors.New("frame round-trip timeout")

	// ErrNoMailbox indicates a mailbox operation on a device that did not
	// advertise a mailbox.
	ErrNoMailbox = errors.New("device has no mailbox")

	// ErrMbxTimeout indicates that a device did not post a mailbox response
	// within the operation's timeout.
	ErrMbxTimeout = errors.New("mailbox response timeout")

	// ErrFoETimeout indicates an unacknowledged file-transfer block; the whole
	// transfer is aborted.
	ErrFoETimeout = errors.New("file transfer block unacknowledged")

	// ErrNotDCCapable indicates a clock operation on a device that did not
	// advertise distributed-clock support.
	ErrNotDCCapable = errors.New("device is not clock capable")

	// ErrSyncCycle indicates a sync-pulse cycle outside the 32-bit nanosecond
	// range the cycle registers hold.
	ErrSyncCycle = errors.New("sync cycle out of range")

	// ErrNoDCReference indicates a clock operation before ConfigDC established
	// a reference time base.
	ErrNoDCReference = errors.New("no reference clock configured")

	// ErrNoConfigTable indicates ConfigInit(true) without a loaded config table.
	ErrNoConfigTable = errors.New("no config table loaded")

	// ErrSlaveLost indicates that a device no longer answers at its position,
	// so recovery could not re-acquire it.
	ErrSlaveLost = errors.New("slave not reachable at its position")
)

// WkcError reports a working counter below the expected value for a single
// register access, meaning the addressed device did not confirm the access.
type WkcError struct {
	Cmd      frame.Command
	Addr     uint32
	Expected int
	Got      int
}

func (e *WkcError) Error() string {
	return fmt.Sprintf("working counter %d, expected %d (%s addr %#08x)", e.Got, e.Expected, e.Cmd, e.Addr)
}

// StateError reports a device that did not reach a requested state within the
// state timeout. StatusCode carries the device's reason, if it set one; see
// esc.ALStatusCodeString.
type StateError struct {
	Position   int
	Want       esc.State
	Got        esc.State
	StatusCode uint16
}

func (e *StateError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("slave %d stuck in %s, requested %s: %s",
			e.Position, e.Got, e.Want, esc.ALStatusCodeString(e.StatusCode))
	}
	return fmt.Sprintf("slave %d stuck in %s, requested %s", e.Position, e.Got, e.Want)
}
