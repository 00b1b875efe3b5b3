package ecat

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/openec/go-ecat/eeprom"
	"github.com/openec/go-ecat/esc"
	"github.com/openec/go-ecat/frame"
	"github.com/openec/go-ecat/transport"
)

// ConfigInit scans the segment, assigns station addresses in position order,
// reads identity and mailbox/PDO descriptors from each device's configuration
// memory, and brings every device to PRE-OP. It returns the number of devices
// found.
//
// With usetable set the declared process data sizes come from the loaded
// config table instead of live descriptor discovery; a device whose identity
// does not match its table entry is left unconfigured rather than aborting the
// scan. A device that does not answer identity reads is likewise recorded
// with unknown identity.
func (m *Master) ConfigInit(usetable bool) (int, error) {
	if usetable && m.table == nil {
		return 0, ErrNoConfigTable
	}

	_, wkc, err := m.brd(esc.RegType, 1)
	if err != nil {
		return 0, err
	}
	if wkc == 0 {
		return 0, ErrNoSlaves
	}
	count := int(wkc)

	m.slaves = make([]*Slave, count)
	m.mapped = false
	m.refSlave = -1

	// force every device back to INIT, acknowledging stale error flags
	ctl := make([]byte, 2)
	binary.LittleEndian.PutUint16(ctl, uint16(esc.StateInit|esc.StateErrorFlag))
	if _, err := m.bwr(esc.RegALControl, ctl); err != nil {
		return 0, err
	}

	for p := 0; p < count; p++ {
		s := &Slave{
			Position:   p,
			Station:    firstStation + uint16(p),
			Configured: true,
		}
		m.slaves[p] = s

		addr := make([]byte, 2)
		binary.LittleEndian.PutUint16(addr, s.Station)
		awkc, err := m.apwr(p, esc.RegStationAddr, addr)
		if err != nil {
			return 0, err
		}
		if awkc != 1 {
			return 0, &WkcError{Cmd: frame.APWR, Addr: frame.PhysAddr(posAddr(p), esc.RegStationAddr), Expected: 1, Got: int(awkc)}
		}

		if err := m.readDescriptors(s, usetable); err != nil {
			return 0, err
		}
	}

	if usetable {
		m.applyTable()
	}

	m.logger.Info("enumeration complete", "slaves", count)

	if _, err := m.WriteState(AllSlaves, esc.StatePreOp); err != nil {
		return 0, err
	}
	if _, err := m.StateCheck(AllSlaves, esc.StatePreOp, m.cfg.stateTimeout); err != nil {
		return 0, err
	}

	for _, s := range m.slaves {
		if c := m.configurerFor(s); c != nil {
			if err := c.ConfigureMailbox(m, s.Position); err != nil {
				return 0, fmt.Errorf("mailbox configurer for slave %d: %w", s.Position, err)
			}
		}
	}

	return count, nil
}

// readDescriptors populates one device's identity, mailbox configuration and
// process data descriptors from its configuration memory, then programs the
// mailbox sync managers. A device whose configuration memory stops answering
// anywhere in the sequence is recorded with unknown identity and left
// unconfigured rather than aborting the scan; only transport failures abort.
func (m *Master) readDescriptors(s *Slave, usetable bool) error {
	err := m.readSII(s, usetable)
	if err == nil {
		if s.HasMailbox {
			return m.writeMailboxSMs(s)
		}
		return nil
	}

	if !siiAnswerFailure(err) {
		return err
	}

	m.logger.Warn("descriptor read failed, leaving slave unconfigured",
		"position", s.Position, "error", err)
	s.Configured = false
	s.HasMailbox = false

	return nil
}

// siiAnswerFailure reports whether an SII read error means the device did not
// answer, as opposed to the transport itself failing.
func siiAnswerFailure(err error) bool {
	if errors.Is(err, transport.ErrPortClosed) || errors.Is(err, transport.ErrConnection) {
		return false
	}
	return errors.Is(err, eeprom.ErrTimeout) || errors.Is(err, eeprom.ErrNoResponse)
}

func (m *Master) readSII(s *Slave, usetable bool) error {
	dev := eeprom.New(m, s.Station)
	t := m.cfg.eepromTimeout

	var err error
	if s.Vendor, err = dev.ReadUint32(eeprom.SIIVendor, t); err != nil {
		return err
	}
	if s.Product, err = dev.ReadUint32(eeprom.SIIProduct, t); err != nil {
		return err
	}
	if s.Revision, err = dev.ReadUint32(eeprom.SIIRevision, t); err != nil {
		return err
	}

	if s.MbxRecvOff, err = dev.ReadWord(eeprom.SIIMbxRecvOff, t); err != nil {
		return err
	}
	if s.MbxRecvLen, err = dev.ReadWord(eeprom.SIIMbxRecvLen, t); err != nil {
		return err
	}
	if s.MbxSendOff, err = dev.ReadWord(eeprom.SIIMbxSendOff, t); err != nil {
		return err
	}
	if s.MbxSendLen, err = dev.ReadWord(eeprom.SIIMbxSendLen, t); err != nil {
		return err
	}
	if s.MbxProto, err = dev.ReadWord(eeprom.SIIMbxProto, t); err != nil {
		return err
	}
	s.HasMailbox = s.MbxRecvLen > 0

	if !usetable {
		outBits, err := dev.ReadWord(eeprom.SIIOutputBits, t)
		if err != nil {
			return err
		}
		inBits, err := dev.ReadWord(eeprom.SIIInputBits, t)
		if err != nil {
			return err
		}
		s.OutBytes = (int(outBits) + 7) / 8
		s.InBytes = (int(inBits) + 7) / 8
	}

	if s.OutputOff, err = dev.ReadWord(eeprom.SIIOutputOff, t); err != nil {
		return err
	}
	if s.InputOff, err = dev.ReadWord(eeprom.SIIInputOff, t); err != nil {
		return err
	}

	dc, err := dev.ReadWord(eeprom.SIIDCSupport, t)
	if err != nil {
		return err
	}
	s.DCCapable = dc != 0

	return nil
}

// writeMailboxSMs programs sync manager 0 (receive mailbox) and 1 (send
// mailbox) from the device's mailbox descriptors.
func (m *Master) writeMailboxSMs(s *Slave) error {
	if err := m.WriteRegister(s.Station, esc.RegSM(0),
		smConfig(s.MbxRecvOff, s.MbxRecvLen, esc.SMControlMailbox)); err != nil {
		return err
	}

	return m.WriteRegister(s.Station, esc.RegSM(1),
		smConfig(s.MbxSendOff, s.MbxSendLen, esc.SMControlMailbox))
}

func smConfig(start uint16, length uint16, control uint8) []byte {
	b := make([]byte, esc.SMChannelLen)
	binary.LittleEndian.PutUint16(b[esc.SMStartAddrOff:], start)
	binary.LittleEndian.PutUint16(b[esc.SMLengthOff:], length)
	b[esc.SMControlOff] = control
	b[esc.SMActivateOff] = 0x01

	return b
}
