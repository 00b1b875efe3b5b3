package mailbox

import (
	"encoding/binary"
)

// CoEHeaderLen is the length of the CoE sub-header in bytes.
const CoEHeaderLen = 2

// CoEService identifies the service carried after the CoE sub-header.
type CoEService uint8

// CoE services.
const (
	CoEEmergency   CoEService = 1
	CoESDORequest  CoEService = 2
	CoESDOResponse CoEService = 3
)

// SDO command specifier bits. Initiate frames carry index and subindex;
// segment frames carry only the command byte followed by data.
//
// Note that several values coincide across directions (a download segment
// response shares the specifier value of a download initiate request); the
// service field of the CoE header disambiguates.
const (
	SDOCmdMask = 0xE0

	SDODownloadInitiateReq = 0x20
	SDODownloadInitiateRsp = 0x60
	SDODownloadSegmentReq  = 0x00
	SDODownloadSegmentRsp  = 0x20
	SDOUploadInitiateReq   = 0x40
	SDOUploadInitiateRsp   = 0x40
	SDOUploadSegmentReq    = 0x60
	SDOUploadSegmentRsp    = 0x00
	SDOAbortCmd            = 0x80

	// Initiate frame flag bits.
	SDOExpedited      = 0x02
	SDOSizeIndicated  = 0x01
	SDOCompleteAccess = 0x10

	// Segment frame flag bits.
	SDOToggle      = 0x10
	SDOSegmentLast = 0x01
)

// EncodeCoE prepends the CoE sub-header to payload.
func EncodeCoE(service CoEService, payload []byte) []byte {
	buf := make([]byte, CoEHeaderLen+len(payload))
	binary.LittleEndian.PutUint16(buf, uint16(service)<<12)
	copy(buf[CoEHeaderLen:], payload)
	return buf
}

// DecodeCoE strips the CoE sub-header, returning the service and the payload.
func DecodeCoE(b []byte) (CoEService, []byte, error) {
	if len(b) < CoEHeaderLen {
		return 0, nil, ErrShortFrame
	}
	service := CoEService(binary.LittleEndian.Uint16(b) >> 12)
	return service, b[CoEHeaderLen:], nil
}

// SDOInitiate is a decoded initiate-type SDO PDU (download/upload request or
// response, or an abort). Data holds the 4-byte data area and any bytes
// following it.
type SDOInitiate struct {
	Command  uint8
	Index    uint16
	Subindex uint8
	Data     []byte
}

// EncodeSDOInitiate builds an initiate-type SDO PDU. The data area is padded
// to the minimum 4 bytes.
func EncodeSDOInitiate(cmd uint8, index uint16, subindex uint8, data []byte) []byte {
	dataLen := len(data)
	if dataLen < 4 {
		dataLen = 4
	}

	buf := make([]byte, 4+dataLen)
	buf[0] = cmd
	binary.LittleEndian.PutUint16(buf[1:], index)
	buf[3] = subindex
	copy(buf[4:], data)

	return buf
}

// DecodeSDOInitiate parses an initiate-type SDO PDU.
func DecodeSDOInitiate(b []byte) (*SDOInitiate, error) {
	if len(b) < 8 {
		return nil, ErrShortFrame
	}
	return &SDOInitiate{
		Command:  b[0],
		Index:    binary.LittleEndian.Uint16(b[1:]),
		Subindex: b[3],
		Data:     b[4:],
	}, nil
}

// AbortCode interprets an initiate PDU as an abort and returns its code.
func (s *SDOInitiate) AbortCode() uint32 {
	return binary.LittleEndian.Uint32(s.Data)
}

// IsAbort reports whether the PDU is a protocol abort.
func (s *SDOInitiate) IsAbort() bool {
	return s.Command&SDOCmdMask == SDOAbortCmd
}

// ExpeditedLen returns the number of valid data bytes of an expedited
// initiate PDU as encoded in its size bits.
func ExpeditedLen(cmd uint8) int {
	return 4 - int(cmd>>2&0x03)
}

// ExpeditedSizeBits returns the size bits encoding n valid bytes of an
// expedited transfer.
func ExpeditedSizeBits(n int) uint8 {
	return uint8(4-n) << 2
}

// EncodeSDOAbort builds an abort PDU for the given object and code.
func EncodeSDOAbort(index uint16, subindex uint8, code uint32) []byte {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, code)
	return EncodeSDOInitiate(SDOAbortCmd, index, subindex, data)
}

// EncodeSDOSegment builds a segment-type SDO PDU: one command byte followed
// by segment data. The segment data length is implied by the mailbox length.
func EncodeSDOSegment(cmd uint8, data []byte) []byte {
	buf := make([]byte, 1+len(data))
	buf[0] = cmd
	copy(buf[1:], data)
	return buf
}

// DecodeSDOSegment parses a segment-type SDO PDU.
func DecodeSDOSegment(b []byte) (cmd uint8, data []byte, err error) {
	if len(b) < 1 {
		return 0, nil, ErrShortFrame
	}
	return b[0], b[1:], nil
}

// EmergencyLen is the length of an emergency payload after the CoE sub-header.
const EmergencyLen = 8

// Emergency is an unsolicited CoE emergency notification.
type Emergency struct {
	ErrorCode uint16
	ErrorReg  uint8
	Data      [5]byte
}

// EncodeEmergency serializes an emergency payload.
func (e *Emergency) Encode() []byte {
	buf := make([]byte, EmergencyLen)
	binary.LittleEndian.PutUint16(buf, e.ErrorCode)
	buf[2] = e.ErrorReg
	copy(buf[3:], e.Data[:])
	return buf
}

// DecodeEmergency parses an emergency payload.
func DecodeEmergency(b []byte) (*Emergency, error) {
	if len(b) < EmergencyLen {
		return nil, ErrShortFrame
	}
	e := &Emergency{
		ErrorCode: binary.LittleEndian.Uint16(b),
		ErrorReg:  b[2],
	}
	copy(e.Data[:], b[3:8])
	return e, nil
}
