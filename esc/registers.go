// Package esc describes the register interface of an EtherCAT slave controller:
// the physical register map, the application-layer state codes, and the
// AL status code lookup table.
package esc

// Physical register addresses of the slave controller memory space.
// The first 4KiB of each device's physical address space is the register area;
// process and mailbox memory starts above it.
const (
	RegType          = 0x0000
	RegRevision      = 0x0001
	RegBuild         = 0x0002
	RegFMMUCount     = 0x0004
	RegSMCount       = 0x0005
	RegRAMSize       = 0x0006
	RegPortDescr     = 0x0007
	RegFeatures      = 0x0008
	RegStationAddr   = 0x0010
	RegStationAlias  = 0x0012
	RegDLControl     = 0x0100
	RegDLStatus      = 0x0110
	RegALControl     = 0x0120
	RegALStatus      = 0x0130
	RegALStatusCode  = 0x0134
	RegPDIControl    = 0x0140
	RegIRQMask       = 0x0200
	RegEEPROMConfig  = 0x0500
	RegEEPROMPDI     = 0x0501
	RegEEPROMControl = 0x0502
	RegEEPROMAddr    = 0x0504
	RegEEPROMData    = 0x0508
	RegFMMUBase      = 0x0600
	RegSMBase        = 0x0800
	RegDCRecvTimeA   = 0x0900
	RegDCRecvTimeB   = 0x0904
	RegDCSysTime     = 0x0910
	RegDCSysOffset   = 0x0920
	RegDCSysDelay    = 0x0928
	RegDCSyncAct     = 0x0981
	RegDCStartTime   = 0x0990
	RegDCCycle0      = 0x09A0
	RegDCCycle1      = 0x09A4
)

// Sync manager channel layout. Each channel occupies 8 bytes starting at
// RegSMBase + channel*SMChannelLen.
const (
	SMChannelLen     = 0x08
	SMStartAddrOff   = 0x00
	SMLengthOff      = 0x02
	SMControlOff     = 0x04
	SMStatusOff      = 0x05
	SMActivateOff    = 0x06
	SMPDIControlOff  = 0x07
	SMControlMailbox = 0x02
	SMControlBuffer  = 0x00
)

// FMMU entry layout. Each entry occupies 16 bytes starting at
// RegFMMUBase + entry*FMMUEntryLen.
const (
	FMMUEntryLen     = 0x10
	FMMULogStartOff  = 0x00
	FMMULogLenOff    = 0x04
	FMMULogStartBit  = 0x08
	FMMULogEndBit    = 0x09
	FMMUPhysStartOff = 0x0A
	FMMUPhysStartBit = 0x0C
	FMMUTypeOff      = 0x0D
	FMMUActivateOff  = 0x0E
)

// FMMU type flags.
const (
	FMMUTypeRead  = 0x01
	FMMUTypeWrite = 0x02
)

// RegSM returns the base register address of sync manager channel n.
func RegSM(n int) uint16 {
	return RegSMBase + uint16(n)*SMChannelLen
}

// RegFMMU returns the base register address of FMMU entry n.
func RegFMMU(n int) uint16 {
	return RegFMMUBase + uint16(n)*FMMUEntryLen
}

// EEPROM control/status register bits (RegEEPROMControl, 16-bit).
const (
	EEPROMCmdRead  = 0x0100
	EEPROMCmdWrite = 0x0200
	EEPROMBusy     = 0x8000
	EEPROMErrAck   = 0x2000
)
