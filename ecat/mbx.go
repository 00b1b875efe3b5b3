package ecat

import (
	"fmt"
	"time"

	"github.com/openec/go-ecat/esc"
	"github.com/openec/go-ecat/internal/queue"
	"github.com/openec/go-ecat/mailbox"
)

// smMailboxFull is the send-mailbox status bit meaning a response is loaded.
const smMailboxFull = 0x08

// mbxSlave validates a registry index for mailbox traffic.
func (m *Master) mbxSlave(idx int) (*Slave, error) {
	s, err := m.Slave(idx)
	if err != nil {
		return nil, err
	}
	if !s.HasMailbox {
		return nil, fmt.Errorf("%w: slave %d", ErrNoMailbox, idx)
	}

	return s, nil
}

// mbxSend writes one request into the device's receive mailbox and returns
// the sequence counter it was tagged with.
func (m *Master) mbxSend(s *Slave, typ mailbox.Type, payload []byte) (uint8, error) {
	s.mbxCounter = mailbox.NextCounter(s.mbxCounter)

	hdr := &mailbox.Header{
		Address: s.Station,
		Type:    typ,
		Counter: s.mbxCounter,
	}
	buf := hdr.Encode(payload)
	if len(buf) > int(s.MbxRecvLen) {
		return 0, fmt.Errorf("mailbox payload %d exceeds mailbox size %d", len(buf), s.MbxRecvLen)
	}

	// the write must cover the whole mailbox to complete the transfer
	full := make([]byte, s.MbxRecvLen)
	copy(full, buf)
	if err := m.WriteRegister(s.Station, s.MbxRecvOff, full); err != nil {
		return 0, err
	}
	m.metrics.incMbxSendCount()

	return s.mbxCounter, nil
}

// mbxPoll waits until the device loads its send mailbox and reads it.
func (m *Master) mbxPoll(s *Slave, timeout time.Duration) (*mailbox.Header, []byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		b, wkc, err := m.fprd(s.Station, esc.RegSM(1)+esc.SMStatusOff, 1)
		if err != nil {
			return nil, nil, err
		}

		if wkc == 1 && b[0]&smMailboxFull != 0 {
			raw, wkc, err := m.fprd(s.Station, s.MbxSendOff, int(s.MbxSendLen))
			if err != nil {
				return nil, nil, err
			}
			if wkc == 1 {
				hdr, payload, err := mailbox.DecodeHeader(raw)
				if err == nil {
					m.metrics.incMbxRecvCount()
					return hdr, payload, nil
				}
				m.logger.Debug("dropping malformed mailbox frame", "slave", s.Position, "error", err)
			}
		}

		if time.Now().After(deadline) {
			return nil, nil, fmt.Errorf("%w: slave %d", ErrMbxTimeout, s.Position)
		}
		time.Sleep(m.cfg.mbxPollInterval)
	}
}

// mbxExchange runs one request/response mailbox transaction. Unsolicited
// traffic arriving in between is dispatched to the per-device queues; a
// response whose counter does not echo the request's is stale and discarded.
func (m *Master) mbxExchange(s *Slave, typ mailbox.Type, payload []byte, timeout time.Duration) ([]byte, error) {
	cnt, err := m.mbxSend(s, typ, payload)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: slave %d", ErrMbxTimeout, s.Position)
		}

		hdr, body, err := m.mbxPoll(s, remaining)
		if err != nil {
			return nil, err
		}

		if m.dispatchUnsolicited(s, hdr, body) {
			continue
		}
		if hdr.Counter != cnt {
			m.metrics.incMbxStaleCount()
			m.logger.Debug("discarding stale mailbox response",
				"slave", s.Position, "counter", hdr.Counter, "want", cnt)
			continue
		}
		if hdr.Type != typ {
			return nil, fmt.Errorf("%w: got %s, want %s", mailbox.ErrWrongProtocol, hdr.Type, typ)
		}

		return body, nil
	}
}

// dispatchUnsolicited routes emergency notifications into their per-device
// queue. It reports whether the frame was consumed.
func (m *Master) dispatchUnsolicited(s *Slave, hdr *mailbox.Header, body []byte) bool {
	if hdr.Type != mailbox.TypeCoE {
		return false
	}
	service, pdu, err := mailbox.DecodeCoE(body)
	if err != nil || service != mailbox.CoEEmergency {
		return false
	}

	em, err := mailbox.DecodeEmergency(pdu)
	if err != nil {
		m.logger.Warn("malformed emergency frame", "slave", s.Position, "error", err)
		return true
	}

	q, _ := m.emergencies.LoadOrCompute(s.Station, func() queue.Queue[*mailbox.Emergency] {
		return queue.NewSliceQueue[*mailbox.Emergency](8)
	})
	q.Enqueue(em)
	m.metrics.incEmergencyCount()
	m.logger.Warn("emergency received", "slave", s.Position, "code", em.ErrorCode)

	return true
}

// MbxReceive drains unsolicited mailbox traffic from one device into its
// per-device queue and returns the number of frames drained. It returns as
// soon as the send mailbox reads empty; timeout bounds the first poll.
func (m *Master) MbxReceive(slave int, timeout time.Duration) (int, error) {
	s, err := m.mbxSlave(slave)
	if err != nil {
		return 0, err
	}

	drained := 0
	deadline := time.Now().Add(timeout)
	for {
		b, wkc, err := m.fprd(s.Station, esc.RegSM(1)+esc.SMStatusOff, 1)
		if err != nil {
			return drained, err
		}
		if wkc != 1 || b[0]&smMailboxFull == 0 {
			if drained > 0 || time.Now().After(deadline) {
				return drained, nil
			}
			time.Sleep(m.cfg.mbxPollInterval)
			continue
		}

		hdr, body, err := m.mbxPoll(s, time.Until(deadline))
		if err != nil {
			return drained, err
		}
		if !m.dispatchUnsolicited(s, hdr, body) {
			m.logger.Debug("discarding unexpected mailbox frame",
				"slave", s.Position, "type", hdr.Type)
		}
		drained++
	}
}

// PopEmergency pops the oldest drained emergency notification of a device.
func (m *Master) PopEmergency(slave int) (*mailbox.Emergency, bool) {
	s, err := m.Slave(slave)
	if err != nil {
		return nil, false
	}

	q, ok := m.emergencies.Load(s.Station)
	if !ok {
		return nil, false
	}

	return q.Dequeue()
}
