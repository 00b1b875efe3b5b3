package sim

import (
	"encoding/binary"
	"sync"

	"github.com/openec/go-ecat/eeprom"
	"github.com/openec/go-ecat/esc"
	"github.com/openec/go-ecat/frame"
	"github.com/openec/go-ecat/internal/queue"
	"github.com/openec/go-ecat/mailbox"
)

// Default physical memory layout of a simulated device.
const (
	DefaultMbxRecvOff = 0x1000
	DefaultMbxSendOff = 0x1080
	DefaultMbxLen     = 0x80
	DefaultOutputOff  = 0x1100
	DefaultInputOff   = 0x1400
)

// SlaveConfig describes a simulated device.
type SlaveConfig struct {
	Name     string
	Vendor   uint32
	Product  uint32
	Revision uint32

	// Declared cyclic process data sizes in bytes.
	OutBytes int
	InBytes  int

	// Mailbox enables the mailbox channel. MbxLen covers both directions;
	// zero values select the defaults.
	Mailbox    bool
	MbxRecvOff uint16
	MbxSendOff uint16
	MbxLen     uint16
	Protocols  uint16

	// DC marks the device as clock-synchronization capable.
	DC bool
}

// Slave is one simulated device on the bus.
type Slave struct {
	cfg SlaveConfig

	mu  sync.Mutex
	mem [1 << 16]byte
	sii map[uint16]uint16

	objects *Dictionary
	files   map[string][]byte
	passwd  uint32

	// mailbox send side: the loaded response plus overflow queue
	loaded      []byte
	responses   queue.Queue[[]byte]
	dl          *sdoDownload
	ul          *sdoUpload
	foe         *foeSession
	dropFoEData uint32
	busyFoEData uint32

	mute       bool
	stick      bool
	broken     bool
	breakAfter int

	position int // set when attached to a bus
}

// NewSlave creates a simulated device from its configuration.
func NewSlave(cfg SlaveConfig) *Slave {
	if cfg.MbxRecvOff == 0 {
		cfg.MbxRecvOff = DefaultMbxRecvOff
	}
	if cfg.MbxSendOff == 0 {
		cfg.MbxSendOff = DefaultMbxSendOff
	}
	if cfg.MbxLen == 0 {
		cfg.MbxLen = DefaultMbxLen
	}
	if cfg.Mailbox && cfg.Protocols == 0 {
		cfg.Protocols = eeprom.ProtoCoE | eeprom.ProtoFoE
	}

	s := &Slave{
		cfg:       cfg,
		objects:   NewDictionary(),
		files:     make(map[string][]byte),
		responses: queue.NewSliceQueue[[]byte](4),
		sii:       make(map[uint16]uint16),
	}

	s.mem[esc.RegType] = 0x11
	s.mem[esc.RegRevision] = 0x02
	s.mem[esc.RegFMMUCount] = 4
	s.mem[esc.RegSMCount] = 4
	s.mem[esc.RegALStatus] = uint8(esc.StateInit)

	s.siiPutUint32(eeprom.SIIVendor, cfg.Vendor)
	s.siiPutUint32(eeprom.SIIProduct, cfg.Product)
	s.siiPutUint32(eeprom.SIIRevision, cfg.Revision)
	if cfg.Mailbox {
		s.sii[eeprom.SIIMbxRecvOff] = cfg.MbxRecvOff
		s.sii[eeprom.SIIMbxRecvLen] = cfg.MbxLen
		s.sii[eeprom.SIIMbxSendOff] = cfg.MbxSendOff
		s.sii[eeprom.SIIMbxSendLen] = cfg.MbxLen
		s.sii[eeprom.SIIMbxProto] = cfg.Protocols
	}
	s.sii[eeprom.SIIOutputBits] = uint16(cfg.OutBytes * 8)
	s.sii[eeprom.SIIInputBits] = uint16(cfg.InBytes * 8)
	if cfg.DC {
		s.sii[eeprom.SIIDCSupport] = 1
	}
	s.sii[eeprom.SIIOutputOff] = DefaultOutputOff
	s.sii[eeprom.SIIInputOff] = DefaultInputOff

	return s
}

func (s *Slave) siiPutUint32(word uint16, v uint32) {
	s.sii[word] = uint16(v)
	s.sii[word+1] = uint16(v >> 16)
}

// Objects returns the device's object dictionary for test setup and inspection.
func (s *Slave) Objects() *Dictionary { return s.objects }

// SetFile places a file into the device's FoE store.
func (s *Slave) SetFile(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
}

// File returns a file from the device's FoE store.
func (s *Slave) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// SetFilePassword makes FoE sessions require the given password.
func (s *Slave) SetFilePassword(pw uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwd = pw
}

// SetMute detaches the device from the bus without removing it: it stops
// interacting with any datagram.
func (s *Slave) SetMute(mute bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mute = mute
}

// StickState freezes the AL state machine: state change requests are stored
// but the status register never follows.
func (s *Slave) StickState(stick bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stick = stick
}

// BreakEEPROM makes the EEPROM interface report busy forever, so identity
// reads run into their timeout.
func (s *Slave) BreakEEPROM() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = true
}

// BreakEEPROMAfter lets n EEPROM commands complete, then breaks the
// interface, so a descriptor scan fails partway through.
func (s *Slave) BreakEEPROMAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakAfter = n
}

// DropFoEBlock swallows the FoE data block with the given packet number once,
// forcing the master's block timeout.
func (s *Slave) DropFoEBlock(packet uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropFoEData = packet
}

// BusyFoEBlock answers the FoE data block with the given packet number with a
// busy frame once, forcing the master to resend it.
func (s *Slave) BusyFoEBlock(packet uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busyFoEData = packet
}

// QueueEmergency queues an unsolicited CoE emergency into the send mailbox.
func (s *Slave) QueueEmergency(em *mailbox.Emergency) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hdr := &mailbox.Header{Type: mailbox.TypeCoE}
	s.enqueueResponse(hdr.Encode(mailbox.EncodeCoE(mailbox.CoEEmergency, em.Encode())))
}

// ALState returns the current AL status for assertions.
func (s *Slave) ALState() esc.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return esc.State(s.mem[esc.RegALStatus])
}

// Outputs returns a copy of the device's output process memory.
func (s *Slave) Outputs() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, s.cfg.OutBytes)
	copy(out, s.mem[DefaultOutputOff:])
	return out
}

// SetInputs loads the device's input process memory.
func (s *Slave) SetInputs(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cfg.InBytes
	if len(data) < n {
		n = len(data)
	}
	copy(s.mem[DefaultInputOff:int(DefaultInputOff)+n], data[:n])
}

func (s *Slave) stationAddr() uint16 {
	return binary.LittleEndian.Uint16(s.mem[esc.RegStationAddr:])
}

// process runs one datagram against the device and returns its working
// counter contribution. localTime is the device-local arrival timestamp in
// nanoseconds, used for DC receive-time latching.
func (s *Slave) process(dg *frame.Datagram, localTime uint64) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mute {
		return 0
	}

	cmd := dg.Command
	switch {
	case cmd == frame.NOP:
		return 0
	case cmd.IsLogical():
		return s.processLogical(dg)
	case cmd.IsPositional():
		addressed := uint16(dg.Addr) == 0
		dg.Addr = dg.Addr&0xFFFF0000 | uint32(uint16(dg.Addr)+1)
		if !addressed {
			return 0
		}
	case cmd.IsBroadcast():
		// all devices interact
	default:
		if dg.DeviceAddr() != s.stationAddr() {
			return 0
		}
	}

	off := dg.OffsetAddr()

	if cmd.DoesRead() {
		if !s.readPhys(off, dg.Data, localTime, cmd.IsBroadcast()) {
			return 0
		}
	}
	if cmd.DoesWrite() {
		s.writePhys(off, dg.Data, localTime)
	}

	return 1
}

// processLogical applies a logically addressed datagram through the device's
// FMMU entries. The working counter contribution is 1 if any entry matched.
func (s *Slave) processLogical(dg *frame.Datagram) uint16 {
	dgStart := dg.Addr
	dgEnd := dg.Addr + uint32(len(dg.Data))
	interacted := false

	for e := 0; e < 4; e++ {
		base := esc.RegFMMU(e)
		if s.mem[base+esc.FMMUActivateOff]&0x01 == 0 {
			continue
		}

		logStart := binary.LittleEndian.Uint32(s.mem[base:])
		logLen := uint32(binary.LittleEndian.Uint16(s.mem[base+esc.FMMULogLenOff:]))
		phys := binary.LittleEndian.Uint16(s.mem[base+esc.FMMUPhysStartOff:])
		typ := s.mem[base+esc.FMMUTypeOff]

		lo := max32(logStart, dgStart)
		hi := min32(logStart+logLen, dgEnd)
		if lo >= hi {
			continue
		}

		span := dg.Data[lo-dgStart : hi-dgStart]
		physOff := int(phys) + int(lo-logStart)

		if dg.Command.DoesWrite() && typ&esc.FMMUTypeWrite != 0 {
			copy(s.mem[physOff:physOff+len(span)], span)
			interacted = true
		}
		if dg.Command.DoesRead() && typ&esc.FMMUTypeRead != 0 {
			copy(span, s.mem[physOff:physOff+len(span)])
			interacted = true
		}
	}

	if interacted {
		return 1
	}
	return 0
}

// readPhys copies device memory into data. Broadcast reads OR into the
// datagram instead of overwriting, matching the bus-wide OR semantics.
//
// A read of the send mailbox head with no loaded response does not interact,
// so the master sees a working counter of zero when polling an empty mailbox.
func (s *Slave) readPhys(off uint16, data []byte, localTime uint64, orMode bool) bool {
	s.refreshDynamicRegs(off, len(data), localTime)

	if s.cfg.Mailbox && off == s.cfg.MbxSendOff {
		if s.loaded == nil {
			return false
		}
		defer s.consumeResponse()
	}

	end := int(off) + len(data)
	if end > len(s.mem) {
		return false
	}

	if orMode {
		for i, b := range s.mem[off:end] {
			data[i] |= b
		}
	} else {
		copy(data, s.mem[off:end])
	}

	return true
}

// writePhys stores data into device memory and runs register side effects.
func (s *Slave) writePhys(off uint16, data []byte, localTime uint64) {
	end := int(off) + len(data)
	if end > len(s.mem) {
		return
	}
	copy(s.mem[off:end], data)

	if spanCovers(off, end, esc.RegDCRecvTimeA) {
		binary.LittleEndian.PutUint32(s.mem[esc.RegDCRecvTimeA:], uint32(localTime))
	}
	if spanCovers(off, end, esc.RegALControl) {
		s.handleALControl()
	}
	if spanCovers(off, end, esc.RegEEPROMControl) {
		s.handleEEPROMCommand()
	}
	if s.cfg.Mailbox && off == s.cfg.MbxRecvOff {
		s.handleMailboxWrite()
	}
}

// refreshDynamicRegs materializes registers whose value is time dependent
// before they are read.
func (s *Slave) refreshDynamicRegs(off uint16, n int, localTime uint64) {
	end := int(off) + n
	if spanCovers(off, end, esc.RegDCSysTime) {
		binary.LittleEndian.PutUint64(s.mem[esc.RegDCSysTime:], localTime)
	}
}

func (s *Slave) handleALControl() {
	req := esc.State(s.mem[esc.RegALControl])
	cur := esc.State(s.mem[esc.RegALStatus])

	if req.HasError() {
		// error acknowledge
		cur &^= esc.StateErrorFlag
		binary.LittleEndian.PutUint16(s.mem[esc.RegALStatusCode:], 0)
	}

	if s.stick {
		s.mem[esc.RegALStatus] = uint8(cur)
		return
	}

	target := req.Base()
	if target == cur.Base() {
		s.mem[esc.RegALStatus] = uint8(cur)
		return
	}

	if esc.ValidTransition(cur, target) {
		s.mem[esc.RegALStatus] = uint8(target)
		binary.LittleEndian.PutUint16(s.mem[esc.RegALStatusCode:], 0)
	} else {
		s.mem[esc.RegALStatus] = uint8(cur | esc.StateErrorFlag)
		binary.LittleEndian.PutUint16(s.mem[esc.RegALStatusCode:], 0x0011)
	}
}

func (s *Slave) handleEEPROMCommand() {
	if s.breakAfter > 0 {
		s.breakAfter--
		if s.breakAfter == 0 {
			s.broken = true
		}
	} else if s.broken {
		ctl := binary.LittleEndian.Uint16(s.mem[esc.RegEEPROMControl:])
		binary.LittleEndian.PutUint16(s.mem[esc.RegEEPROMControl:], ctl|esc.EEPROMBusy)
		return
	}

	ctl := binary.LittleEndian.Uint16(s.mem[esc.RegEEPROMControl:])
	word := uint16(binary.LittleEndian.Uint32(s.mem[esc.RegEEPROMAddr:]))

	switch {
	case ctl&esc.EEPROMCmdRead != 0:
		binary.LittleEndian.PutUint16(s.mem[esc.RegEEPROMData:], s.sii[word])
		binary.LittleEndian.PutUint16(s.mem[esc.RegEEPROMData+2:], s.sii[word+1])
	case ctl&esc.EEPROMCmdWrite != 0:
		s.sii[word] = binary.LittleEndian.Uint16(s.mem[esc.RegEEPROMData:])
	}

	binary.LittleEndian.PutUint16(s.mem[esc.RegEEPROMControl:], ctl&^(esc.EEPROMBusy|esc.EEPROMCmdRead|esc.EEPROMCmdWrite))
}

// handleMailboxWrite parses a request freshly written into the receive
// mailbox and queues its response. The mailbox is inactive below PRE-OP.
func (s *Slave) handleMailboxWrite() {
	if esc.State(s.mem[esc.RegALStatus]).Base() == esc.StateInit {
		return
	}

	raw := s.mem[s.cfg.MbxRecvOff : s.cfg.MbxRecvOff+s.cfg.MbxLen]
	hdr, payload, err := mailbox.DecodeHeader(raw)
	if err != nil {
		return
	}

	var resp []byte
	switch hdr.Type {
	case mailbox.TypeCoE:
		resp = s.handleCoE(hdr, payload)
	case mailbox.TypeFoE:
		resp = s.handleFoE(hdr, payload)
	}

	if resp != nil {
		s.enqueueResponse(resp)
	}
}

// enqueueResponse loads a response into the send mailbox, or queues it when a
// response is already waiting to be read.
func (s *Slave) enqueueResponse(resp []byte) {
	if s.loaded != nil {
		s.responses.Enqueue(resp)
		return
	}
	s.loadResponse(resp)
}

func (s *Slave) loadResponse(resp []byte) {
	buf := make([]byte, s.cfg.MbxLen)
	copy(buf, resp)
	copy(s.mem[s.cfg.MbxSendOff:int(s.cfg.MbxSendOff)+int(s.cfg.MbxLen)], buf)
	s.loaded = resp
	s.mem[esc.RegSM(1)+esc.SMStatusOff] |= 0x08
}

// consumeResponse pops the read response and loads the next queued one.
func (s *Slave) consumeResponse() {
	s.loaded = nil
	s.mem[esc.RegSM(1)+esc.SMStatusOff] &^= 0x08

	if next, ok := s.responses.Dequeue(); ok {
		s.loadResponse(next)
	}
}

func spanCovers(start uint16, end int, reg uint16) bool {
	return start <= reg && int(reg) < end
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
