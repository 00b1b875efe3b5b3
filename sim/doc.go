// Package sim provides an in-process bus simulator: a chain of simulated
// devices behind a transport.Port.
//
// Each simulated device models the slave controller surface the master core
// talks to: the register area with its AL state machine and EEPROM interface,
// position/station/broadcast/logical addressing with working-counter
// accounting, FMMU-mapped process memory, a mailbox with a CoE object
// dictionary and an FoE file store, and per-device receive-time latching for
// distributed clock measurement.
//
// Fault injection (dropped frames, muted devices, stuck states, swallowed
// file-transfer blocks, broken EEPROMs) exercises the degraded paths of the
// cyclic engine and the mailbox transactions.
package sim
