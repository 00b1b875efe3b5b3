package ecat

import (
	"encoding/binary"
	"fmt"

	"github.com/openec/go-ecat/esc"
	"github.com/openec/go-ecat/frame"
)

// Reconfig re-runs one device's configuration sequence without disturbing the
// rest of the segment: back to INIT (acknowledging a pending error flag),
// mailbox sync managers, PRE-OP, configuration callbacks, FMMUs from the
// current mapping, SAFE-OP. It returns the state the device reached.
//
// Run Reconfig after a device raised its error flag or dropped back below the
// segment's operating state.
func (m *Master) Reconfig(slave int) (esc.State, error) {
	s, err := m.Slave(slave)
	if err != nil {
		return esc.StateNone, err
	}

	if err := m.requestState(s, esc.StateInit|esc.StateErrorFlag); err != nil {
		return s.State, err
	}

	if s.HasMailbox {
		if err := m.writeMailboxSMs(s); err != nil {
			return s.State, err
		}
	}

	if err := m.requestState(s, esc.StatePreOp); err != nil {
		return s.State, err
	}

	if c := m.configurerFor(s); c != nil {
		if err := c.ConfigureMailbox(m, s.Position); err != nil {
			return s.State, fmt.Errorf("mailbox configurer for slave %d: %w", s.Position, err)
		}
		if err := c.ConfigurePDO(m, s.Position); err != nil {
			return s.State, fmt.Errorf("pdo configurer for slave %d: %w", s.Position, err)
		}
	}

	if !m.mapped || !s.Configured {
		return s.State, nil
	}

	if err := m.writeFMMUs(s); err != nil {
		return s.State, err
	}
	if err := m.requestState(s, esc.StateSafeOp); err != nil {
		return s.State, err
	}

	m.logger.Info("slave reconfigured", "position", s.Position, "state", s.State.String())

	return s.State, nil
}

// Recover re-acquires a device that dropped off the bus: it re-assigns the
// device's configured station address by position, then re-runs Reconfig. It
// fails with ErrSlaveLost when nothing answers at the position.
func (m *Master) Recover(slave int) (esc.State, error) {
	s, err := m.Slave(slave)
	if err != nil {
		return esc.StateNone, err
	}

	addr := make([]byte, 2)
	binary.LittleEndian.PutUint16(addr, s.Station)
	wkc, err := m.apwr(s.Position, esc.RegStationAddr, addr)
	if err != nil {
		return esc.StateNone, err
	}
	if wkc != 1 {
		return esc.StateNone, fmt.Errorf("%w: position %d (%s wkc %d)",
			ErrSlaveLost, s.Position, frame.APWR, wkc)
	}

	return m.Reconfig(slave)
}
