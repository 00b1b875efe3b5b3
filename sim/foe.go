package sim

import (
	"github.com/openec/go-ecat/mailbox"
)

// foeSession tracks one file transfer in progress.
type foeSession struct {
	name     string
	read     bool
	data     []byte // file content for reads, accumulated content for writes
	off      int
	packet   uint32
	lastSent int
}

// blockCap is the FoE data block capacity of one mailbox frame.
func (s *Slave) blockCap() int {
	return int(s.cfg.MbxLen) - mailbox.HeaderLen - mailbox.FoEHeaderLen
}

// handleFoE services one FoE request and returns the full mailbox response.
func (s *Slave) handleFoE(hdr *mailbox.Header, payload []byte) []byte {
	f, err := mailbox.DecodeFoE(payload)
	if err != nil {
		return nil
	}

	var resp *mailbox.FoEFrame
	switch f.Op {
	case mailbox.FoERead:
		resp = s.foeOpenRead(f)
	case mailbox.FoEWrite:
		resp = s.foeOpenWrite(f)
	case mailbox.FoEAck:
		resp = s.foeAck(f)
	case mailbox.FoEData:
		resp = s.foeData(f)
	case mailbox.FoEErr:
		// peer aborted; drop the session without a response
		s.foe = nil
		return nil
	default:
		resp = &mailbox.FoEFrame{Op: mailbox.FoEErr, Num: mailbox.FoEErrIllegal}
	}

	if resp == nil {
		return nil
	}
	out := &mailbox.Header{Type: mailbox.TypeFoE, Counter: hdr.Counter}
	return out.Encode(resp.Encode())
}

func (s *Slave) foeErr(code uint32, text string) *mailbox.FoEFrame {
	s.foe = nil
	return &mailbox.FoEFrame{Op: mailbox.FoEErr, Num: code, Data: []byte(text)}
}

func (s *Slave) foeOpenRead(f *mailbox.FoEFrame) *mailbox.FoEFrame {
	if s.passwd != 0 && f.Num != s.passwd {
		return s.foeErr(mailbox.FoEErrNoRights, "wrong password")
	}

	name := string(f.Data)
	data, ok := s.files[name]
	if !ok {
		return s.foeErr(mailbox.FoEErrNotFound, name)
	}

	s.foe = &foeSession{name: name, read: true, data: data}
	return s.foeNextBlock()
}

// foeNextBlock emits the next data block of a read session. End of file is
// signalled by a block shorter than the full capacity, with an extra empty
// block when the file length is a multiple of the capacity.
func (s *Slave) foeNextBlock() *mailbox.FoEFrame {
	n := s.blockCap()
	if rem := len(s.foe.data) - s.foe.off; n > rem {
		n = rem
	}
	chunk := s.foe.data[s.foe.off : s.foe.off+n]

	s.foe.packet++
	s.foe.lastSent = n

	return &mailbox.FoEFrame{Op: mailbox.FoEData, Num: s.foe.packet, Data: chunk}
}

func (s *Slave) foeAck(f *mailbox.FoEFrame) *mailbox.FoEFrame {
	if s.foe == nil || !s.foe.read {
		return s.foeErr(mailbox.FoEErrIllegal, "no read session")
	}
	if f.Num != s.foe.packet {
		return s.foeErr(mailbox.FoEErrPacketNumber, "out of sequence ack")
	}

	s.foe.off += s.foe.lastSent
	if s.foe.off < len(s.foe.data) || s.foe.lastSent == s.blockCap() {
		return s.foeNextBlock()
	}

	// transfer complete
	s.foe = nil
	return nil
}

func (s *Slave) foeOpenWrite(f *mailbox.FoEFrame) *mailbox.FoEFrame {
	if s.passwd != 0 && f.Num != s.passwd {
		return s.foeErr(mailbox.FoEErrNoRights, "wrong password")
	}

	s.foe = &foeSession{name: string(f.Data)}
	return &mailbox.FoEFrame{Op: mailbox.FoEAck, Num: 0}
}

func (s *Slave) foeData(f *mailbox.FoEFrame) *mailbox.FoEFrame {
	if s.dropFoEData != 0 && f.Num == s.dropFoEData {
		s.dropFoEData = 0
		return nil
	}
	if s.busyFoEData != 0 && f.Num == s.busyFoEData {
		s.busyFoEData = 0
		return &mailbox.FoEFrame{Op: mailbox.FoEBusy, Num: f.Num}
	}

	if s.foe == nil || s.foe.read {
		return s.foeErr(mailbox.FoEErrIllegal, "no write session")
	}
	if f.Num != s.foe.packet+1 {
		return s.foeErr(mailbox.FoEErrPacketNumber, "out of sequence block")
	}

	s.foe.packet = f.Num
	s.foe.data = append(s.foe.data, f.Data...)

	if len(f.Data) < s.blockCap() {
		// final block
		s.files[s.foe.name] = s.foe.data
		s.foe = nil
	}

	return &mailbox.FoEFrame{Op: mailbox.FoEAck, Num: f.Num}
}
