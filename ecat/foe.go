package ecat

import (
	"errors"
	"fmt"
	"time"

	"github.com/openec/go-ecat/mailbox"
)

// foeBlockCap returns the data block capacity of one FoE mailbox frame.
func foeBlockCap(mbxLen uint16) int {
	return int(mbxLen) - mailbox.HeaderLen - mailbox.FoEHeaderLen
}

// FoERead opens a named file-transfer read session with an optional password
// and assembles the acknowledged blocks until the device signals end of file
// or maxSize is reached (0 means unbounded). An unacknowledged block aborts
// the whole transfer.
//
// A device actively rejecting the session yields a *mailbox.FoEError.
func (m *Master) FoERead(slave int, name string, password uint32, maxSize int) ([]byte, error) {
	s, err := m.mbxSlave(slave)
	if err != nil {
		return nil, err
	}
	blockCap := foeBlockCap(s.MbxSendLen)

	open := &mailbox.FoEFrame{Op: mailbox.FoERead, Num: password, Data: []byte(name)}
	rsp, err := m.foeExchange(s, open)
	if err != nil {
		return nil, err
	}

	var out []byte
	packet := uint32(0)

	for {
		if rsp.Op != mailbox.FoEData {
			m.foeAbort(s, mailbox.FoEErrIllegal)
			return nil, fmt.Errorf("%w: FoE op %d", mailbox.ErrWrongProtocol, rsp.Op)
		}
		if rsp.Num != packet+1 {
			m.foeAbort(s, mailbox.FoEErrPacketNumber)
			return nil, &mailbox.FoEError{Code: mailbox.FoEErrPacketNumber, Text: "block out of sequence"}
		}
		packet = rsp.Num
		out = append(out, rsp.Data...)

		if maxSize > 0 && len(out) >= maxSize {
			m.foeAbort(s, mailbox.FoEErrDiskFull)
			return out[:maxSize], nil
		}

		final := len(rsp.Data) < blockCap
		ack := &mailbox.FoEFrame{Op: mailbox.FoEAck, Num: packet}
		if final {
			// the last ack closes the session; no response follows
			if _, err := m.mbxSend(s, mailbox.TypeFoE, ack.Encode()); err != nil {
				return nil, err
			}
			return out, nil
		}

		if rsp, err = m.foeExchange(s, ack); err != nil {
			if errors.Is(err, ErrMbxTimeout) {
				m.foeAbort(s, mailbox.FoEErrNotDefined)
				return nil, fmt.Errorf("%w: block %d", ErrFoETimeout, packet+1)
			}
			return nil, err
		}
	}
}

// FoEWrite opens a named file-transfer write session with an optional
// password and sends the whole payload in fixed-size blocks, each
// acknowledged before the next. A device answering busy gets the block
// resent. An unacknowledged block aborts the transfer; the device discards
// the partial file rather than keeping it silently.
func (m *Master) FoEWrite(slave int, name string, password uint32, data []byte) error {
	s, err := m.mbxSlave(slave)
	if err != nil {
		return err
	}
	blockCap := foeBlockCap(s.MbxRecvLen)

	open := &mailbox.FoEFrame{Op: mailbox.FoEWrite, Num: password, Data: []byte(name)}
	rsp, err := m.foeExchange(s, open)
	if err != nil {
		return err
	}
	if rsp.Op != mailbox.FoEAck || rsp.Num != 0 {
		m.foeAbort(s, mailbox.FoEErrIllegal)
		return fmt.Errorf("%w: FoE op %d", mailbox.ErrWrongProtocol, rsp.Op)
	}

	// a payload that is an exact multiple of the block size needs a trailing
	// empty block so the device sees the short-block end marker
	blocks := len(data)/blockCap + 1

	for i := 0; i < blocks; i++ {
		lo := i * blockCap
		hi := lo + blockCap
		if hi > len(data) {
			hi = len(data)
		}

		packet := uint32(i + 1)
		blk := &mailbox.FoEFrame{Op: mailbox.FoEData, Num: packet, Data: data[lo:hi]}

		// busy responses resend the same block, up to the block timeout
		deadline := time.Now().Add(m.cfg.foeTimeout)
		for {
			rsp, err := m.foeExchange(s, blk)
			if err != nil {
				if errors.Is(err, ErrMbxTimeout) {
					m.foeAbort(s, mailbox.FoEErrNotDefined)
					return fmt.Errorf("%w: block %d", ErrFoETimeout, packet)
				}
				return err
			}
			if rsp.Op == mailbox.FoEBusy {
				if time.Now().After(deadline) {
					m.foeAbort(s, mailbox.FoEErrNotDefined)
					return fmt.Errorf("%w: block %d stayed busy", ErrFoETimeout, packet)
				}
				continue
			}
			if rsp.Op != mailbox.FoEAck || rsp.Num != packet {
				m.foeAbort(s, mailbox.FoEErrPacketNumber)
				return &mailbox.FoEError{Code: mailbox.FoEErrPacketNumber, Text: "ack out of sequence"}
			}
			break
		}
	}

	return nil
}

// foeExchange runs one FoE mailbox exchange, converting device-side error
// frames into *mailbox.FoEError.
func (m *Master) foeExchange(s *Slave, req *mailbox.FoEFrame) (*mailbox.FoEFrame, error) {
	body, err := m.mbxExchange(s, mailbox.TypeFoE, req.Encode(), m.cfg.foeTimeout)
	if err != nil {
		return nil, err
	}

	rsp, err := mailbox.DecodeFoE(body)
	if err != nil {
		return nil, err
	}
	if rsp.Op == mailbox.FoEErr {
		return nil, &mailbox.FoEError{Code: rsp.Num, Text: string(rsp.Data)}
	}

	return rsp, nil
}

// foeAbort sends a best-effort error frame closing the session on the device.
func (m *Master) foeAbort(s *Slave, code uint32) {
	abort := &mailbox.FoEFrame{Op: mailbox.FoEErr, Num: code}
	if _, err := m.mbxSend(s, mailbox.TypeFoE, abort.Encode()); err != nil {
		m.logger.Debug("foe abort send failed", "slave", s.Position, "error", err)
	}
}
