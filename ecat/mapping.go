package ecat

import (
	"encoding/binary"
	"fmt"

	"github.com/openec/go-ecat/esc"
)

// ConfigMap lays out the process image in non-overlapping mode: every
// configured device's outputs get consecutive offsets in the output region,
// then every device's inputs in the input region, in registry order. It
// programs the FMMUs accordingly, invokes registered PDO configurers, brings
// the segment to SAFE-OP and returns the total image size.
//
// Offsets computed by an earlier mapping become invalid; re-run ConfigMap
// after any re-enumeration.
func (m *Master) ConfigMap() (int, error) {
	if len(m.slaves) == 0 {
		return 0, ErrNoSlaves
	}

	if err := m.runPDOConfigurers(); err != nil {
		return 0, err
	}

	outLen := 0
	inLen := 0
	for _, s := range m.slaves {
		if !s.Configured {
			continue
		}
		s.logOutStart = uint32(outLen)
		outLen += s.OutBytes
		s.logInStart = uint32(inLen) // relative for now, shifted below
		inLen += s.InBytes
	}

	m.outLen = outLen
	m.inLen = inLen
	m.overlap = false
	m.image = make([]byte, outLen+inLen)
	m.outImage = nil
	m.inImage = nil

	for _, s := range m.slaves {
		if !s.Configured {
			s.Outputs, s.Inputs = nil, nil
			continue
		}
		s.logInStart += uint32(outLen)
		s.Outputs = m.image[s.logOutStart : s.logOutStart+uint32(s.OutBytes) : s.logOutStart+uint32(s.OutBytes)]
		s.Inputs = m.image[s.logInStart : s.logInStart+uint32(s.InBytes) : s.logInStart+uint32(s.InBytes)]

		if err := m.writeFMMUs(s); err != nil {
			return 0, err
		}
	}

	m.mapped = true
	m.expectedWKC = m.countSpanLRW(0, uint32(outLen+inLen))

	m.logger.Info("process image mapped", "outputs", outLen, "inputs", inLen)

	if _, err := m.WriteState(AllSlaves, esc.StateSafeOp); err != nil {
		return 0, err
	}
	if _, err := m.StateCheck(AllSlaves, esc.StateSafeOp, m.cfg.stateTimeout); err != nil {
		return 0, err
	}

	return outLen + inLen, nil
}

// ConfigOverlapMap lays out the process image in overlapping mode: each
// device's inputs and outputs share one logical range of max(out, in) bytes,
// for hardware that services a combined read-write of the same address. The
// output and input images become two separate arenas of the same (smaller)
// total size.
func (m *Master) ConfigOverlapMap() (int, error) {
	if len(m.slaves) == 0 {
		return 0, ErrNoSlaves
	}

	if err := m.runPDOConfigurers(); err != nil {
		return 0, err
	}

	total := 0
	for _, s := range m.slaves {
		if !s.Configured {
			continue
		}
		region := s.OutBytes
		if s.InBytes > region {
			region = s.InBytes
		}
		s.logOutStart = uint32(total)
		s.logInStart = uint32(total)
		total += region
	}

	m.outLen = total
	m.inLen = total
	m.overlap = true
	m.image = nil
	m.outImage = make([]byte, total)
	m.inImage = make([]byte, total)

	for _, s := range m.slaves {
		if !s.Configured {
			s.Outputs, s.Inputs = nil, nil
			continue
		}
		s.Outputs = m.outImage[s.logOutStart : s.logOutStart+uint32(s.OutBytes) : s.logOutStart+uint32(s.OutBytes)]
		s.Inputs = m.inImage[s.logInStart : s.logInStart+uint32(s.InBytes) : s.logInStart+uint32(s.InBytes)]

		if err := m.writeFMMUs(s); err != nil {
			return 0, err
		}
	}

	m.mapped = true
	m.expectedWKC = m.countSpanLRW(0, uint32(total))

	if _, err := m.WriteState(AllSlaves, esc.StateSafeOp); err != nil {
		return 0, err
	}
	if _, err := m.StateCheck(AllSlaves, esc.StateSafeOp, m.cfg.stateTimeout); err != nil {
		return 0, err
	}

	return total, nil
}

func (m *Master) runPDOConfigurers() error {
	for _, s := range m.slaves {
		if c := m.configurerFor(s); c != nil {
			if err := c.ConfigurePDO(m, s.Position); err != nil {
				return fmt.Errorf("pdo configurer for slave %d: %w", s.Position, err)
			}
		}
	}
	return nil
}

// writeFMMUs programs FMMU 0 (outputs, write direction) and FMMU 1 (inputs,
// read direction) from the device's current logical spans.
func (m *Master) writeFMMUs(s *Slave) error {
	if s.OutBytes > 0 {
		entry := fmmuConfig(s.logOutStart, s.OutBytes, s.OutputOff, esc.FMMUTypeWrite)
		if err := m.WriteRegister(s.Station, esc.RegFMMU(0), entry); err != nil {
			return err
		}
	}
	if s.InBytes > 0 {
		entry := fmmuConfig(s.logInStart, s.InBytes, s.InputOff, esc.FMMUTypeRead)
		if err := m.WriteRegister(s.Station, esc.RegFMMU(1), entry); err != nil {
			return err
		}
	}

	return nil
}

func fmmuConfig(logStart uint32, logLen int, physStart uint16, typ uint8) []byte {
	b := make([]byte, esc.FMMUEntryLen)
	binary.LittleEndian.PutUint32(b[esc.FMMULogStartOff:], logStart)
	binary.LittleEndian.PutUint16(b[esc.FMMULogLenOff:], uint16(logLen))
	b[esc.FMMULogStartBit] = 0
	b[esc.FMMULogEndBit] = 7
	binary.LittleEndian.PutUint16(b[esc.FMMUPhysStartOff:], physStart)
	b[esc.FMMUTypeOff] = typ
	b[esc.FMMUActivateOff] = 0x01

	return b
}
