package ecat

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/openec/go-ecat/esc"
	"github.com/openec/go-ecat/internal/queue"
	"github.com/openec/go-ecat/logger"
	"github.com/openec/go-ecat/mailbox"
	"github.com/openec/go-ecat/transport"
)

// AllSlaves addresses every enumerated device in state operations.
const AllSlaves = -1

// firstStation is the configured station address assigned to position 0;
// following positions get consecutive addresses.
const firstStation = 0x1001

// Slave is one enumerated device of the segment. Its identity and descriptors
// are populated by ConfigInit; its image views and logical spans by ConfigMap.
type Slave struct {
	// Position is the 0-based position on the segment, stable for the lifetime
	// of one enumeration.
	Position int
	// Station is the configured station address assigned during enumeration.
	Station uint16

	Name     string
	Vendor   uint32
	Product  uint32
	Revision uint32

	// State is the application-layer state as of the last read.
	State esc.State
	// ALStatusCode is the device's status code as of the last read; non-zero
	// after a failed transition. See esc.ALStatusCodeString.
	ALStatusCode uint16

	// Configured is cleared when identity reads fail or the device does not
	// match its config-table entry; an unconfigured device is skipped by the
	// mapper but keeps its position.
	Configured bool

	HasMailbox bool
	MbxRecvOff uint16
	MbxRecvLen uint16
	MbxSendOff uint16
	MbxSendLen uint16
	// MbxProto is the bit set of supported mailbox sub-protocols
	// (eeprom.ProtoCoE and friends).
	MbxProto uint16

	// Declared cyclic process data sizes in bytes.
	OutBytes int
	InBytes  int
	// Physical start addresses of the device's process data areas.
	OutputOff uint16
	InputOff  uint16

	// DCCapable marks clock-synchronization support.
	DCCapable bool
	// PropDelayNS is the propagation delay relative to the reference clock,
	// measured by ConfigDC.
	PropDelayNS uint32

	// Outputs and Inputs are the device's views into the process image,
	// valid after ConfigMap.
	Outputs []byte
	Inputs  []byte

	logOutStart uint32
	logInStart  uint32

	mbxCounter uint8
}

// Identity returns the device's identity triple.
func (s *Slave) Identity() Identity {
	return Identity{Vendor: s.Vendor, Product: s.Product, Revision: s.Revision}
}

// Master owns the device registry, the process image and the bus access for
// one segment.
type Master struct {
	cfg     *MasterConfig
	port    transport.Port
	logger  logger.Logger
	metrics MasterMetrics

	// busMu serializes frame round trips on the port.
	busMu sync.Mutex
	idx   uint8

	slaves []*Slave
	table  *ConfigTable

	// process image arena: outputs in [0, outLen), inputs in [outLen, outLen+inLen).
	// Overlapping mode uses the two split arenas instead.
	image    []byte
	outLen   int
	inLen    int
	overlap  bool
	outImage []byte
	inImage  []byte
	mapped   bool

	pending     []*pendingDatagram
	expectedWKC int

	refSlave int

	emergencies *xsync.MapOf[uint16, queue.Queue[*mailbox.Emergency]]
	configurers map[Identity]SlaveConfigurer
}

// Open creates a Master over an already opened transport port.
func Open(port transport.Port, opts ...MasterOption) (*Master, error) {
	cfg, err := newMasterConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Master{
		cfg:         cfg,
		port:        port,
		logger:      cfg.logger,
		refSlave:    -1,
		emergencies: xsync.NewMapOf[uint16, queue.Queue[*mailbox.Emergency]](),
		configurers: make(map[Identity]SlaveConfigurer),
	}, nil
}

// OpenInterface opens the named interface through the opener, optionally with
// a redundant secondary, and creates a Master over it.
func OpenInterface(opener transport.Opener, name string, redundant string, opts ...MasterOption) (*Master, error) {
	port, err := opener.Open(name, redundant)
	if err != nil {
		return nil, err
	}

	m, err := Open(port, opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	return m, nil
}

// Close releases the transport port. The master must not be used afterwards.
func (m *Master) Close() error {
	return m.port.Close()
}

// Slaves returns the enumerated device registry in position order.
func (m *Master) Slaves() []*Slave {
	return m.slaves
}

// Slave returns the device at the given registry index.
func (m *Master) Slave(idx int) (*Slave, error) {
	if idx < 0 || idx >= len(m.slaves) {
		return nil, ErrSlaveIndex
	}
	return m.slaves[idx], nil
}

// SlaveCount returns the number of enumerated devices.
func (m *Master) SlaveCount() int {
	return len(m.slaves)
}

// Metrics returns the master's metrics counters.
func (m *Master) Metrics() *MasterMetrics {
	return &m.metrics
}

// ExpectedWKC returns the working counter expected from a fully responding
// segment for the most recent cyclic send (or, before the first send, for a
// single combined datagram over the whole image).
func (m *Master) ExpectedWKC() int {
	return m.expectedWKC
}
