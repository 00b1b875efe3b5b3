package ecat

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/openec/go-ecat/esc"
)

// Sync activation register bits.
const (
	dcSyncEnable = 0x01
	dcSync0      = 0x02
	dcSync1      = 0x04
)

// dcStartDelay is the lead time added to the reference time when arming a
// sync-pulse generator, so the programmed start lies in the future.
const dcStartDelay = 100 * time.Millisecond

// ConfigDC locates clock-capable devices, measures per-position propagation
// delay with a broadcast receive-time latch, elects the first capable device
// as the reference clock and programs every capable device's system-time
// delay and offset. It reports whether any clock-capable device was found.
func (m *Master) ConfigDC() (bool, error) {
	m.refSlave = -1

	// a broadcast write latches the local receive time in every device,
	// all within the same frame pass
	if _, err := m.bwr(esc.RegDCRecvTimeA, make([]byte, 4)); err != nil {
		return false, err
	}

	var refTime uint32
	for _, s := range m.slaves {
		if !s.DCCapable {
			continue
		}

		b, err := m.ReadRegister(s.Station, esc.RegDCRecvTimeA, 4)
		if err != nil {
			return false, err
		}
		recvTime := binary.LittleEndian.Uint32(b)

		if m.refSlave < 0 {
			m.refSlave = s.Position
			refTime = recvTime
		}

		s.PropDelayNS = recvTime - refTime

		delay := make([]byte, 4)
		binary.LittleEndian.PutUint32(delay, s.PropDelayNS)
		if err := m.WriteRegister(s.Station, esc.RegDCSysDelay, delay); err != nil {
			return false, err
		}

		offset := make([]byte, 8)
		binary.LittleEndian.PutUint64(offset, uint64(-int64(s.PropDelayNS)))
		if err := m.WriteRegister(s.Station, esc.RegDCSysOffset, offset); err != nil {
			return false, err
		}
	}

	if m.refSlave >= 0 {
		m.logger.Info("reference clock elected", "position", m.refSlave)
	}

	return m.refSlave >= 0, nil
}

// DCTime reads the current time of the reference clock in nanoseconds.
// It fails with ErrNoDCReference before a successful ConfigDC.
func (m *Master) DCTime() (uint64, error) {
	if m.refSlave < 0 {
		return 0, ErrNoDCReference
	}

	ref := m.slaves[m.refSlave]
	b, err := m.ReadRegister(ref.Station, esc.RegDCSysTime, 8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

// DCSync programs a device's sync-pulse generator to fire every cycle with
// phase shift relative to the reference time. act=false disables pulse
// generation. The device must be clock capable and ConfigDC must have run.
func (m *Master) DCSync(slave int, act bool, cycle time.Duration, shift time.Duration) error {
	return m.dcSync(slave, act, cycle, 0, shift, false)
}

// DCSync2 additionally programs the second, independent pulse train cycle1.
func (m *Master) DCSync2(slave int, act bool, cycle0 time.Duration, cycle1 time.Duration, shift time.Duration) error {
	return m.dcSync(slave, act, cycle0, cycle1, shift, true)
}

// maxSyncCycle is the longest cycle the 32-bit nanosecond cycle registers hold.
const maxSyncCycle = time.Duration(1<<32 - 1)

func (m *Master) dcSync(slave int, act bool, cycle0, cycle1, shift time.Duration, twoPulse bool) error {
	s, err := m.Slave(slave)
	if err != nil {
		return err
	}
	if act {
		if cycle0 < 0 || cycle0 > maxSyncCycle {
			return fmt.Errorf("%w: cycle0 %s", ErrSyncCycle, cycle0)
		}
		if twoPulse && (cycle1 < 0 || cycle1 > maxSyncCycle) {
			return fmt.Errorf("%w: cycle1 %s", ErrSyncCycle, cycle1)
		}
	}
	if !s.DCCapable {
		return ErrNotDCCapable
	}
	if m.refSlave < 0 {
		return ErrNoDCReference
	}

	// stop the generator before reprogramming
	if err := m.WriteRegister(s.Station, esc.RegDCSyncAct, []byte{0}); err != nil {
		return err
	}
	if !act {
		return nil
	}

	now, err := m.DCTime()
	if err != nil {
		return err
	}
	start := make([]byte, 8)
	binary.LittleEndian.PutUint64(start, now+uint64(dcStartDelay)+uint64(shift))
	if err := m.WriteRegister(s.Station, esc.RegDCStartTime, start); err != nil {
		return err
	}

	c0 := make([]byte, 4)
	binary.LittleEndian.PutUint32(c0, uint32(cycle0))
	if err := m.WriteRegister(s.Station, esc.RegDCCycle0, c0); err != nil {
		return err
	}

	actBits := uint8(dcSyncEnable | dcSync0)
	if twoPulse {
		c1 := make([]byte, 4)
		binary.LittleEndian.PutUint32(c1, uint32(cycle1))
		if err := m.WriteRegister(s.Station, esc.RegDCCycle1, c1); err != nil {
			return err
		}
		actBits |= dcSync1
	}

	return m.WriteRegister(s.Station, esc.RegDCSyncAct, []byte{actBits})
}
