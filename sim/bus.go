package sim

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openec/go-ecat/frame"
	"github.com/openec/go-ecat/internal/pool"
	"github.com/openec/go-ecat/transport"
)

// defaultHopDelay is the simulated per-hop propagation delay in nanoseconds.
const defaultHopDelay = 100

// Bus is a simulated segment: an ordered chain of devices behind a
// transport.Port. Frames handed to Send pass every device in chain order and
// the processed frame is queued for Receive.
type Bus struct {
	mu       sync.Mutex
	slaves   []*Slave
	rx       chan []byte
	start    time.Time
	hopDelay uint64
	dropNext int
	closed   bool
}

var _ transport.Port = (*Bus)(nil)

// NewBus creates a bus over the given devices, in chain order.
func NewBus(slaves ...*Slave) *Bus {
	b := &Bus{
		slaves:   slaves,
		rx:       make(chan []byte, 64),
		start:    time.Now(),
		hopDelay: defaultHopDelay,
	}
	for i, s := range slaves {
		s.position = i
	}
	return b
}

// DropFrames makes the bus swallow the next n frames entirely, simulating
// loss on the wire.
func (b *Bus) DropFrames(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropNext += n
}

// Send runs one frame through the device chain and queues the result.
func (b *Bus) Send(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return transport.ErrPortClosed
	}

	if b.dropNext > 0 {
		b.dropNext--
		return nil
	}

	buf := append([]byte(nil), data...)
	f, err := frame.Decode(buf)
	if err != nil {
		return err
	}

	busTime := uint64(time.Since(b.start).Nanoseconds())
	for _, dg := range f.Datagrams {
		var wkc uint16
		for i, s := range b.slaves {
			localTime := busTime + b.hopDelay*uint64(i)
			wkc += s.process(dg, localTime)
		}
		dg.Wkc = wkc
	}

	out, err := f.Encode()
	if err != nil {
		return err
	}

	select {
	case b.rx <- out:
	default:
		// receive queue overflow, frame lost
	}

	return nil
}

// Receive returns the next processed frame, waiting up to timeout.
func (b *Bus) Receive(timeout time.Duration) ([]byte, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, transport.ErrPortClosed
	}

	timer := pool.GetTimer(timeout)
	defer pool.PutTimer(timer)

	select {
	case data := <-b.rx:
		return data, nil
	case <-timer.C:
		return nil, transport.ErrReceiveTimeout
	}
}

// Close shuts the bus down. Further Send and Receive calls fail with
// transport.ErrPortClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Opener exposes one or more simulated buses as named adapters.
type Opener struct {
	mu    sync.Mutex
	buses map[string]*Bus
}

var _ transport.Opener = (*Opener)(nil)

// NewOpener creates an empty Opener.
func NewOpener() *Opener {
	return &Opener{buses: make(map[string]*Bus)}
}

// Add registers a bus under an adapter name.
func (o *Opener) Add(name string, bus *Bus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buses[name] = bus
}

// Open returns the bus registered under name. A non-empty redundant name must
// also be registered.
func (o *Opener) Open(name string, redundant string) (transport.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	bus, ok := o.buses[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrConnection, name)
	}
	if redundant != "" {
		if _, ok := o.buses[redundant]; !ok {
			return nil, fmt.Errorf("%w: redundant %s", transport.ErrConnection, redundant)
		}
	}

	return bus, nil
}

// Adapters lists the registered buses.
func (o *Opener) Adapters() ([]transport.Adapter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	names := make([]string, 0, len(o.buses))
	for name := range o.buses {
		names = append(names, name)
	}
	sort.Strings(names)

	adapters := make([]transport.Adapter, 0, len(names))
	for _, name := range names {
		adapters = append(adapters, transport.Adapter{
			Name:        name,
			Description: fmt.Sprintf("simulated segment (%d devices)", len(o.buses[name].slaves)),
		})
	}
	return adapters, nil
}
