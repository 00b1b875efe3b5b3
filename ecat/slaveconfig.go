package ecat

// Identity is the vendor/product/revision triple identifying a device type.
type Identity struct {
	Vendor   uint32
	Product  uint32
	Revision uint32
}

// SlaveConfigurer is a device-specific configuration strategy, registered per
// identity and invoked during enumeration, mapping and recovery.
//
// ConfigureMailbox runs once the device reached PRE-OP, before any mailbox
// traffic; ConfigurePDO runs before the mapper programs the FMMUs and may
// adjust the device's declared process data sizes (typically via SDO writes).
type SlaveConfigurer interface {
	ConfigureMailbox(m *Master, slave int) error
	ConfigurePDO(m *Master, slave int) error
}

// RegisterConfigurer registers a configuration strategy for a device
// identity. A zero Revision in the key matches any revision of the same
// vendor/product pair.
func (m *Master) RegisterConfigurer(id Identity, c SlaveConfigurer) {
	m.configurers[id] = c
}

// configurerFor finds the registered strategy for a device: exact identity
// first, then the revision-wildcard entry.
func (m *Master) configurerFor(s *Slave) SlaveConfigurer {
	if c, ok := m.configurers[s.Identity()]; ok {
		return c
	}
	if c, ok := m.configurers[Identity{Vendor: s.Vendor, Product: s.Product}]; ok {
		return c
	}
	return nil
}
