package ecat

import (
	"encoding/binary"
	"time"

	"github.com/openec/go-ecat/esc"
)

// WriteState requests a state transition without verifying the prior state;
// the legality check is the caller's responsibility. slave is a registry index
// or AllSlaves for a broadcast. It returns the working counter of the write.
//
// Requesting a state with esc.StateErrorFlag set acknowledges a device-side
// error flag.
func (m *Master) WriteState(slave int, state esc.State) (int, error) {
	ctl := make([]byte, 2)
	binary.LittleEndian.PutUint16(ctl, uint16(state))

	if slave == AllSlaves {
		wkc, err := m.bwr(esc.RegALControl, ctl)
		return int(wkc), err
	}

	s, err := m.Slave(slave)
	if err != nil {
		return 0, err
	}

	wkc, err := m.fpwr(s.Station, esc.RegALControl, ctl)

	return int(wkc), err
}

// ReadState re-reads every device's actual state and returns the aggregate:
// the least-advanced state across the segment, so a single lagging device
// caps the result. With no responding device it returns esc.StateNone.
func (m *Master) ReadState() (esc.State, error) {
	if len(m.slaves) == 0 {
		return esc.StateNone, ErrNoSlaves
	}

	agg := esc.StateNone
	for _, s := range m.slaves {
		st, err := m.readSlaveState(s)
		if err != nil {
			return esc.StateNone, err
		}
		if st == esc.StateNone {
			continue
		}
		if agg == esc.StateNone {
			agg = st
		} else {
			agg = agg.Lower(st)
		}
	}

	return agg, nil
}

// readSlaveState refreshes one device's State and ALStatusCode. A device that
// does not answer reads as esc.StateNone.
func (m *Master) readSlaveState(s *Slave) (esc.State, error) {
	// AL status at 0x0130, status code at 0x0134
	b, wkc, err := m.fprd(s.Station, esc.RegALStatus, 6)
	if err != nil {
		return esc.StateNone, err
	}
	if wkc == 0 {
		s.State = esc.StateNone
		return esc.StateNone, nil
	}

	s.State = esc.State(b[0])
	s.ALStatusCode = binary.LittleEndian.Uint16(b[4:])

	return s.State, nil
}

// StateCheck polls the actual state until it matches the requested state or
// the timeout elapses, returning whichever state was observed last. It never
// overshoots the timeout by more than one poll interval. slave is a registry
// index or AllSlaves for the aggregate.
//
// StateCheck does not itself request the transition; pair it with WriteState.
func (m *Master) StateCheck(slave int, want esc.State, timeout time.Duration) (esc.State, error) {
	var s *Slave
	if slave != AllSlaves {
		var err error
		if s, err = m.Slave(slave); err != nil {
			return esc.StateNone, err
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		var (
			state esc.State
			err   error
		)
		if s != nil {
			state, err = m.readSlaveState(s)
		} else {
			state, err = m.ReadState()
		}
		if err != nil {
			return esc.StateNone, err
		}

		if state.Base() == want.Base() {
			return state, nil
		}
		if time.Now().After(deadline) {
			return state, nil
		}

		time.Sleep(m.cfg.statePollInterval)
	}
}

// requestState writes a transition request to one device and waits for it.
func (m *Master) requestState(s *Slave, want esc.State) error {
	if _, err := m.WriteState(s.Position, want); err != nil {
		return err
	}

	got, err := m.StateCheck(s.Position, want, m.cfg.stateTimeout)
	if err != nil {
		return err
	}
	if got.Base() != want.Base() {
		return &StateError{Position: s.Position, Want: want, Got: got, StatusCode: s.ALStatusCode}
	}

	return nil
}
