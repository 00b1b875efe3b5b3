package ecat

import (
	"errors"
	"time"

	"github.com/openec/go-ecat/frame"
	"github.com/openec/go-ecat/transport"
)

// pendingDatagram is one in-flight cyclic datagram awaiting its response,
// keyed by the frame index value.
type pendingDatagram struct {
	index   uint8
	cmd     frame.Command
	start   uint32
	length  int
	matched bool
}

// SendProcessdata packages the process image into the minimum number of
// datagrams given the payload cap, hands the frames to the transport and
// returns the number of image bytes transmitted. It does not wait for
// responses; each transmitted datagram is pushed onto the outstanding stack
// for the following ReceiveProcessdata.
//
// A zero return means the mapper has not produced an image yet.
func (m *Master) SendProcessdata() (int, error) {
	if m.overlap {
		return m.SendOverlapProcessdata()
	}
	if !m.mapped || len(m.image) == 0 {
		return 0, nil
	}

	if m.cfg.separateReadWrite {
		return m.sendCyclic([]cyclicRange{
			{cmd: frame.LWR, start: 0, data: m.image[:m.outLen]},
			{cmd: frame.LRD, start: uint32(m.outLen), data: m.image[m.outLen:]},
		})
	}

	return m.sendCyclic([]cyclicRange{
		{cmd: frame.LRW, start: 0, data: m.image},
	})
}

// SendOverlapProcessdata is the overlapping-mode analogue of SendProcessdata:
// one combined read-write range per image, outputs taken from the output
// arena.
func (m *Master) SendOverlapProcessdata() (int, error) {
	if !m.mapped || len(m.outImage) == 0 {
		return 0, nil
	}

	return m.sendCyclic([]cyclicRange{
		{cmd: frame.LRW, start: 0, data: m.outImage},
	})
}

type cyclicRange struct {
	cmd   frame.Command
	start uint32
	data  []byte
}

// sendCyclic splits the ranges at the payload cap, packs the datagrams into
// as few frames as possible and transmits them.
func (m *Master) sendCyclic(ranges []cyclicRange) (int, error) {
	m.busMu.Lock()
	defer m.busMu.Unlock()

	m.pending = m.pending[:0]
	expected := 0
	sent := 0

	f := &frame.Frame{}
	var frames []*frame.Frame

	for _, r := range ranges {
		if len(r.data) == 0 {
			continue
		}
		for off := 0; off < len(r.data); off += m.cfg.maxPayload {
			n := len(r.data) - off
			if n > m.cfg.maxPayload {
				n = m.cfg.maxPayload
			}

			start := r.start + uint32(off)
			dg := &frame.Datagram{
				Command: r.cmd,
				Index:   m.nextIndex(),
				Addr:    start,
				Data:    r.data[off : off+n],
			}

			if !f.Fits(n) {
				frames = append(frames, f)
				f = &frame.Frame{}
			}
			f.Add(dg)

			m.pending = append(m.pending, &pendingDatagram{
				index:  dg.Index,
				cmd:    r.cmd,
				start:  start,
				length: n,
			})
			expected += m.countSpan(r.cmd, start, start+uint32(n))
			sent += n
		}
	}
	if len(f.Datagrams) > 0 {
		frames = append(frames, f)
	}

	for _, f := range frames {
		data, err := f.Encode()
		if err != nil {
			return 0, err
		}
		if err := m.port.Send(data); err != nil {
			return 0, err
		}
		m.metrics.incFrameSendCount()
	}

	m.expectedWKC = expected
	m.metrics.incCycleCount()

	return sent, nil
}

// ReceiveProcessdata blocks until every outstanding datagram of the most
// recent send is matched or the timeout elapses, copies returned input data
// into the image and returns the aggregated working counter.
//
// A response that never arrives leaves its input region at the last-known
// value and simply lowers the working counter; a missed cycle never writes
// partial data into the image. Transport failures are returned as errors.
func (m *Master) ReceiveProcessdata(timeout time.Duration) (int, error) {
	m.busMu.Lock()
	defer m.busMu.Unlock()

	if len(m.pending) == 0 {
		return 0, nil
	}

	wkc := 0
	outstanding := len(m.pending)
	deadline := time.Now().Add(timeout)

	for outstanding > 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}

		data, err := m.port.Receive(remaining)
		if err != nil {
			if errors.Is(err, transport.ErrReceiveTimeout) {
				break
			}
			return wkc, err
		}

		rf, err := frame.Decode(data)
		if err != nil {
			m.logger.Debug("dropping undecodable cyclic frame", "error", err)
			continue
		}

		for _, dg := range rf.Datagrams {
			p := m.matchPending(dg)
			if p == nil {
				continue
			}
			p.matched = true
			outstanding--

			if dg.Command.DoesRead() {
				m.copyInputs(dg)
			}
			wkc += int(dg.Wkc)
			m.metrics.incFrameRecvCount()
		}
	}

	if outstanding > 0 {
		m.metrics.incFrameLostCount()
		m.logger.Debug("cyclic responses missing", "outstanding", outstanding)
	}
	if wkc < m.expectedWKC {
		m.metrics.incWkcErrCount()
	}

	m.pending = m.pending[:0]

	return wkc, nil
}

func (m *Master) matchPending(dg *frame.Datagram) *pendingDatagram {
	for _, p := range m.pending {
		if !p.matched && p.index == dg.Index && p.cmd == dg.Command && len(dg.Data) == p.length {
			return p
		}
	}
	return nil
}

// copyInputs copies the input-region part of a matched read response into the
// image. Output regions of a combined datagram echo what the master wrote and
// are skipped.
func (m *Master) copyInputs(dg *frame.Datagram) {
	start := dg.LogicalAddr()
	end := start + uint32(len(dg.Data))

	if m.overlap {
		copy(m.inImage[start:end], dg.Data)
		return
	}

	inStart := uint32(m.outLen)
	inEnd := uint32(m.outLen + m.inLen)
	lo, hi := start, end
	if lo < inStart {
		lo = inStart
	}
	if hi > inEnd {
		hi = inEnd
	}
	if lo >= hi {
		return
	}

	copy(m.image[lo:hi], dg.Data[lo-start:hi-start])
}

// countSpan returns the number of configured devices expected to bump the
// working counter of a datagram with the given command over [start, end).
func (m *Master) countSpan(cmd frame.Command, start uint32, end uint32) int {
	n := 0
	for _, s := range m.slaves {
		if !s.Configured {
			continue
		}
		outHit := cmd.DoesWrite() && overlaps(start, end, s.logOutStart, s.logOutStart+uint32(s.OutBytes))
		inHit := cmd.DoesRead() && overlaps(start, end, s.logInStart, s.logInStart+uint32(s.InBytes))
		if outHit || inHit {
			n++
		}
	}
	return n
}

func (m *Master) countSpanLRW(start uint32, end uint32) int {
	return m.countSpan(frame.LRW, start, end)
}

func overlaps(aStart, aEnd, bStart, bEnd uint32) bool {
	return aStart < bEnd && bStart < aEnd
}
