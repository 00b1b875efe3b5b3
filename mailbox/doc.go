// Package mailbox implements the codec for the acknowledged, non-cyclic
// mailbox channel: the common mailbox header with its sequence counter, the
// CoE object-access sub-protocol (SDO upload/download, expedited and
// segmented, complete access, emergencies), and the FoE file-transfer
// sub-protocol.
//
// The package is wire-format only. Driving a transaction against a device
// (timeouts, retries, counter sequencing) is the master core's job; the
// simulator uses the same codec to answer requests, so both ends of a test
// speak through one implementation.
package mailbox
