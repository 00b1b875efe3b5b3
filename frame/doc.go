// Package frame implements the EtherCAT frame and datagram codec.
//
// An EtherCAT frame consists of a 2-byte frame header followed by one or more
// datagrams. Each datagram carries a 10-byte header (command, index, 32-bit
// address, length word with circulating/more flags, IRQ), a data area, and a
// 2-byte working counter trailer. All multi-byte fields are little-endian.
//
// The package provides construction of outgoing frames with datagram splitting
// against the maximum frame payload, and parsing of received frames back into
// datagrams for correlation by index.
package frame
