package ecat

import (
	"errors"
	"fmt"

	"github.com/openec/go-ecat/frame"
	"github.com/openec/go-ecat/transport"
)

// posAddr returns the auto-increment address of position p: each device
// increments the address in flight, so the device at position p sees zero.
func posAddr(p int) uint16 {
	return uint16(-p)
}

func (m *Master) nextIndex() uint8 {
	m.idx++
	return m.idx
}

// transact runs one frame round trip: send, then receive until the response
// matching the frame's first datagram index arrives. A lost frame is resent up
// to the configured retry count; stale responses are drained and dropped.
//
// Callers hold busMu.
func (m *Master) transact(f *frame.Frame) (*frame.Frame, error) {
	data, err := f.Encode()
	if err != nil {
		return nil, err
	}
	want := f.Datagrams[0].Index

	for attempt := 0; attempt <= m.cfg.retryCount; attempt++ {
		if err := m.port.Send(data); err != nil {
			return nil, err
		}
		m.metrics.incFrameSendCount()

		rf, err := m.receiveMatch(want)
		if err == nil {
			m.metrics.incFrameRecvCount()
			return rf, nil
		}
		if !errors.Is(err, transport.ErrReceiveTimeout) {
			return nil, err
		}

		m.metrics.incFrameLostCount()
		m.logger.Debug("frame lost, resending", "index", want, "attempt", attempt+1)
	}

	return nil, fmt.Errorf("%w: index %d", ErrFrameTimeout, want)
}

func (m *Master) receiveMatch(want uint8) (*frame.Frame, error) {
	for {
		data, err := m.port.Receive(m.cfg.recvTimeout)
		if err != nil {
			return nil, err
		}

		rf, err := frame.Decode(data)
		if err != nil {
			m.logger.Debug("dropping undecodable frame", "error", err)
			continue
		}
		if rf.Datagrams[0].Index != want {
			m.logger.Debug("dropping stale frame", "index", rf.Datagrams[0].Index, "want", want)
			continue
		}

		return rf, nil
	}
}

// execute runs a single-datagram round trip and returns the response data and
// working counter.
func (m *Master) execute(cmd frame.Command, addr uint32, data []byte) ([]byte, uint16, error) {
	m.busMu.Lock()
	defer m.busMu.Unlock()

	f := &frame.Frame{}
	f.Add(&frame.Datagram{
		Command: cmd,
		Index:   m.nextIndex(),
		Addr:    addr,
		Data:    data,
	})

	rf, err := m.transact(f)
	if err != nil {
		return nil, 0, err
	}

	dg := rf.Datagrams[0]

	return dg.Data, dg.Wkc, nil
}

func (m *Master) brd(offset uint16, n int) ([]byte, uint16, error) {
	return m.execute(frame.BRD, frame.PhysAddr(0, offset), make([]byte, n))
}

func (m *Master) bwr(offset uint16, data []byte) (uint16, error) {
	_, wkc, err := m.execute(frame.BWR, frame.PhysAddr(0, offset), data)
	return wkc, err
}

func (m *Master) aprd(pos int, offset uint16, n int) ([]byte, uint16, error) {
	return m.execute(frame.APRD, frame.PhysAddr(posAddr(pos), offset), make([]byte, n))
}

func (m *Master) apwr(pos int, offset uint16, data []byte) (uint16, error) {
	_, wkc, err := m.execute(frame.APWR, frame.PhysAddr(posAddr(pos), offset), data)
	return wkc, err
}

func (m *Master) fprd(station uint16, offset uint16, n int) ([]byte, uint16, error) {
	return m.execute(frame.FPRD, frame.PhysAddr(station, offset), make([]byte, n))
}

func (m *Master) fpwr(station uint16, offset uint16, data []byte) (uint16, error) {
	_, wkc, err := m.execute(frame.FPWR, frame.PhysAddr(station, offset), data)
	return wkc, err
}

// ReadRegister reads n bytes from a device register, addressed by configured
// station address. It implements the register access the eeprom package runs on.
func (m *Master) ReadRegister(station uint16, offset uint16, n int) ([]byte, error) {
	data, wkc, err := m.fprd(station, offset, n)
	if err != nil {
		return nil, err
	}
	if wkc < 1 {
		return nil, &WkcError{Cmd: frame.FPRD, Addr: frame.PhysAddr(station, offset), Expected: 1, Got: int(wkc)}
	}

	return data, nil
}

// WriteRegister writes data to a device register, addressed by configured
// station address.
func (m *Master) WriteRegister(station uint16, offset uint16, data []byte) error {
	wkc, err := m.fpwr(station, offset, data)
	if err != nil {
		return err
	}
	if wkc < 1 {
		return &WkcError{Cmd: frame.FPWR, Addr: frame.PhysAddr(station, offset), Expected: 1, Got: int(wkc)}
	}

	return nil
}
