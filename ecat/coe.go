package ecat

import (
	"encoding/binary"
	"fmt"

	"github.com/openec/go-ecat/mailbox"
)

// SDORead reads the value of an object addressed by index and subindex via
// the device's CoE mailbox channel. Payloads beyond one mailbox frame are
// reassembled transparently across segment exchanges. With ca set the device
// returns all subindices of the object in one transaction (complete access);
// subindex must then be 0 or 1.
//
// A device actively rejecting the access yields a *mailbox.AbortError; a
// silent device yields ErrMbxTimeout.
func (m *Master) SDORead(slave int, index uint16, subindex uint8, ca bool) ([]byte, error) {
	s, err := m.mbxSlave(slave)
	if err != nil {
		return nil, err
	}

	cmd := uint8(mailbox.SDOUploadInitiateReq)
	if ca {
		cmd |= mailbox.SDOCompleteAccess
	}
	req := mailbox.EncodeCoE(mailbox.CoESDORequest,
		mailbox.EncodeSDOInitiate(cmd, index, subindex, nil))

	rsp, err := m.sdoExchange(s, req)
	if err != nil {
		return nil, err
	}

	if rsp.Command&mailbox.SDOCmdMask != mailbox.SDOUploadInitiateRsp {
		return nil, fmt.Errorf("%w: unexpected SDO response %#02x", mailbox.ErrWrongProtocol, rsp.Command)
	}

	// expedited: the value sits in the 4-byte data area
	if rsp.Command&mailbox.SDOExpedited != 0 {
		n := 4
		if rsp.Command&mailbox.SDOSizeIndicated != 0 {
			n = mailbox.ExpeditedLen(rsp.Command)
		}
		return append([]byte(nil), rsp.Data[:n]...), nil
	}

	// normal: the data area carries the total size, segments carry the value
	size := int(binary.LittleEndian.Uint32(rsp.Data[:4]))
	out := make([]byte, 0, size)

	toggle := uint8(0)
	for {
		segReq := mailbox.EncodeCoE(mailbox.CoESDORequest,
			mailbox.EncodeSDOSegment(mailbox.SDOUploadSegmentReq|toggle, nil))
		pdu, err := m.coeExchange(s, segReq)
		if err != nil {
			return nil, err
		}
		if pdu[0]&mailbox.SDOCmdMask == mailbox.SDOAbortCmd {
			return nil, sdoAbort(pdu)
		}

		segCmd, data, err := mailbox.DecodeSDOSegment(pdu)
		if err != nil {
			return nil, err
		}
		if segCmd&mailbox.SDOToggle != toggle {
			return nil, mailbox.ErrToggleMismatch
		}

		if rem := size - len(out); len(data) > rem {
			data = data[:rem]
		}
		out = append(out, data...)

		if segCmd&mailbox.SDOSegmentLast != 0 {
			return out, nil
		}
		toggle ^= mailbox.SDOToggle
	}
}

// SDOWrite writes a value to an object addressed by index and subindex via
// the device's CoE mailbox channel, segmenting payloads beyond one mailbox
// frame. With ca set all subindices are written in one transaction.
func (m *Master) SDOWrite(slave int, index uint16, subindex uint8, ca bool, data []byte) error {
	s, err := m.mbxSlave(slave)
	if err != nil {
		return err
	}

	if len(data) <= 4 && !ca {
		cmd := uint8(mailbox.SDODownloadInitiateReq) | mailbox.SDOExpedited |
			mailbox.SDOSizeIndicated | mailbox.ExpeditedSizeBits(len(data))
		req := mailbox.EncodeCoE(mailbox.CoESDORequest,
			mailbox.EncodeSDOInitiate(cmd, index, subindex, data))

		rsp, err := m.sdoExchange(s, req)
		if err != nil {
			return err
		}
		if rsp.Command&mailbox.SDOCmdMask != mailbox.SDODownloadInitiateRsp {
			return fmt.Errorf("%w: unexpected SDO response %#02x", mailbox.ErrWrongProtocol, rsp.Command)
		}
		return nil
	}

	// normal download: 4-byte size plus as much data as the initiate frame fits
	cmd := uint8(mailbox.SDODownloadInitiateReq) | mailbox.SDOSizeIndicated
	if ca {
		cmd |= mailbox.SDOCompleteAccess
	}

	initCap := int(s.MbxRecvLen) - mailbox.HeaderLen - mailbox.CoEHeaderLen - 8
	first := len(data)
	if first > initCap {
		first = initCap
	}

	payload := make([]byte, 4+first)
	binary.LittleEndian.PutUint32(payload, uint32(len(data)))
	copy(payload[4:], data[:first])

	req := mailbox.EncodeCoE(mailbox.CoESDORequest,
		mailbox.EncodeSDOInitiate(cmd, index, subindex, payload))
	rsp, err := m.sdoExchange(s, req)
	if err != nil {
		return err
	}
	if rsp.Command&mailbox.SDOCmdMask != mailbox.SDODownloadInitiateRsp {
		return fmt.Errorf("%w: unexpected SDO response %#02x", mailbox.ErrWrongProtocol, rsp.Command)
	}

	rest := data[first:]
	segCap := int(s.MbxRecvLen) - mailbox.HeaderLen - mailbox.CoEHeaderLen - 1
	toggle := uint8(0)

	for len(rest) > 0 {
		n := len(rest)
		if n > segCap {
			n = segCap
		}
		chunk := rest[:n]
		rest = rest[n:]

		segCmd := uint8(mailbox.SDODownloadSegmentReq) | toggle
		if len(rest) == 0 {
			segCmd |= mailbox.SDOSegmentLast
		}
		segReq := mailbox.EncodeCoE(mailbox.CoESDORequest,
			mailbox.EncodeSDOSegment(segCmd, chunk))

		pdu, err := m.coeExchange(s, segReq)
		if err != nil {
			return err
		}
		if pdu[0]&mailbox.SDOCmdMask == mailbox.SDOAbortCmd {
			return sdoAbort(pdu)
		}

		rspCmd, _, err := mailbox.DecodeSDOSegment(pdu)
		if err != nil {
			return err
		}
		if rspCmd&mailbox.SDOToggle != toggle {
			return mailbox.ErrToggleMismatch
		}

		toggle ^= mailbox.SDOToggle
	}

	return nil
}

// coeExchange runs one CoE mailbox exchange and returns the SDO PDU of the
// response.
func (m *Master) coeExchange(s *Slave, req []byte) ([]byte, error) {
	body, err := m.mbxExchange(s, mailbox.TypeCoE, req, m.cfg.sdoTimeout)
	if err != nil {
		return nil, err
	}

	service, pdu, err := mailbox.DecodeCoE(body)
	if err != nil {
		return nil, err
	}
	if service != mailbox.CoESDOResponse {
		return nil, fmt.Errorf("%w: CoE service %d", mailbox.ErrWrongProtocol, service)
	}
	if len(pdu) == 0 {
		return nil, mailbox.ErrShortFrame
	}

	return pdu, nil
}

// sdoExchange runs one CoE exchange expecting an initiate-type response,
// converting device aborts into *mailbox.AbortError.
func (m *Master) sdoExchange(s *Slave, req []byte) (*mailbox.SDOInitiate, error) {
	pdu, err := m.coeExchange(s, req)
	if err != nil {
		return nil, err
	}

	rsp, err := mailbox.DecodeSDOInitiate(pdu)
	if err != nil {
		return nil, err
	}
	if rsp.IsAbort() {
		return nil, &mailbox.AbortError{Index: rsp.Index, Subindex: rsp.Subindex, Code: rsp.AbortCode()}
	}

	return rsp, nil
}

func sdoAbort(pdu []byte) error {
	rsp, err := mailbox.DecodeSDOInitiate(pdu)
	if err != nil {
		return err
	}
	return &mailbox.AbortError{Index: rsp.Index, Subindex: rsp.Subindex, Code: rsp.AbortCode()}
}
