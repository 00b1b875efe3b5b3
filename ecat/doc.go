// Package ecat implements the master side of an EtherCAT segment: device
// enumeration and addressing, the per-device application-layer state machine,
// process-data image mapping, the cyclic exchange engine, distributed-clock
// configuration and the mailbox channels (CoE object access, FoE file
// transfer).
//
// A Master is created over an opened transport.Port and drives the segment
// through the usual bring-up sequence:
//
//	m, _ := ecat.Open(port)
//	defer m.Close()
//
//	count, _ := m.ConfigInit(false)
//	size, _ := m.ConfigMap()
//	m.WriteState(ecat.AllSlaves, esc.StateOp)
//	m.StateCheck(ecat.AllSlaves, esc.StateOp, time.Second)
//
//	for {
//		m.SendProcessdata()
//		wkc, _ := m.ReceiveProcessdata(2 * time.Millisecond)
//		// inspect wkc against m.ExpectedWKC(), read inputs, write outputs
//	}
//
// The cyclic pair SendProcessdata/ReceiveProcessdata is not re-entrant; the
// caller runs it from a single loop. Mailbox operations block independently
// and are meant for a lower-priority maintenance path.
package ecat
