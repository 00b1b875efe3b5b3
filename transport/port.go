// Package transport defines the raw-frame port boundary the master core runs on.
//
// The core never opens network interfaces itself; it is handed an opened Port.
// Implementations wrap a raw socket on a physical interface, optionally backed
// by a redundant second port, or an in-process simulator for tests.
package transport

import (
	"errors"
	"time"
)

// Adapter describes a network adapter available for opening, for operator selection.
type Adapter struct {
	Name        string
	Description string
}

// Port sends and receives raw EtherCAT frames on an opened interface.
//
// Send hands one encoded frame to the medium and never blocks on the reply.
// Receive blocks until one frame arrives or the timeout elapses; it returns
// ErrReceiveTimeout on expiry. Frames may arrive in a different order than
// they were sent.
type Port interface {
	Send(data []byte) error
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

// Opener opens named interfaces as ports.
//
// redundant names an optional secondary interface for cable-redundant
// operation; the empty string disables redundancy. Open fails with an error
// wrapping ErrConnection if the interface cannot be opened or access is denied.
type Opener interface {
	Open(name string, redundant string) (Port, error)
	Adapters() ([]Adapter, error)
}

var (
	// ErrConnection indicates that the interface could not be opened or that
	// access to it was denied. Connection errors are fatal to the whole master.
	ErrConnection = errors.New("cannot open transport interface")

	// ErrPortClosed indicates an operation on a closed port.
	ErrPortClosed = errors.New("port is closed")

	// ErrReceiveTimeout indicates that no frame arrived within the receive timeout.
	ErrReceiveTimeout = errors.New("receive timeout")
)
