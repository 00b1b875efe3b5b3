package sim

import (
	"encoding/binary"

	"github.com/openec/go-ecat/mailbox"
)

// sdoDownload tracks a segmented download in progress.
type sdoDownload struct {
	index    uint16
	subindex uint8
	size     int
	buf      []byte
	toggle   uint8
}

// sdoUpload tracks a segmented upload in progress.
type sdoUpload struct {
	index    uint16
	subindex uint8
	data     []byte
	off      int
	toggle   uint8
}

// segCap is the SDO segment data capacity of one mailbox frame.
func (s *Slave) segCap() int {
	return int(s.cfg.MbxLen) - mailbox.HeaderLen - mailbox.CoEHeaderLen - 1
}

// handleCoE services one CoE request and returns the full mailbox response.
func (s *Slave) handleCoE(hdr *mailbox.Header, payload []byte) []byte {
	service, pdu, err := mailbox.DecodeCoE(payload)
	if err != nil || service != mailbox.CoESDORequest || len(pdu) == 0 {
		return nil
	}

	var resp []byte
	switch pdu[0] & mailbox.SDOCmdMask {
	case mailbox.SDODownloadInitiateReq:
		resp = s.sdoDownloadInitiate(pdu)
	case mailbox.SDODownloadSegmentReq:
		resp = s.sdoDownloadSegment(pdu)
	case mailbox.SDOUploadInitiateReq:
		resp = s.sdoUploadInitiate(pdu)
	case mailbox.SDOUploadSegmentReq:
		resp = s.sdoUploadSegment(pdu)
	case mailbox.SDOAbortCmd:
		s.dl, s.ul = nil, nil
		return nil
	default:
		return s.coeAbort(hdr, 0, 0, mailbox.AbortCommand)
	}

	if resp == nil {
		return nil
	}
	out := &mailbox.Header{Type: mailbox.TypeCoE, Counter: hdr.Counter}
	return out.Encode(resp)
}

func (s *Slave) coeAbort(hdr *mailbox.Header, index uint16, subindex uint8, code uint32) []byte {
	out := &mailbox.Header{Type: mailbox.TypeCoE, Counter: hdr.Counter}
	return out.Encode(mailbox.EncodeCoE(mailbox.CoESDOResponse, mailbox.EncodeSDOAbort(index, subindex, code)))
}

func (s *Slave) sdoDownloadInitiate(pdu []byte) []byte {
	req, err := mailbox.DecodeSDOInitiate(pdu)
	if err != nil {
		return nil
	}

	if s.objects.readOnly(req.Index) {
		return mailbox.EncodeCoE(mailbox.CoESDOResponse, mailbox.EncodeSDOAbort(req.Index, req.Subindex, mailbox.AbortReadOnly))
	}

	if req.Command&mailbox.SDOExpedited != 0 {
		n := mailbox.ExpeditedLen(req.Command)
		s.objects.Set(req.Index, req.Subindex, req.Data[:n])
		return mailbox.EncodeCoE(mailbox.CoESDOResponse,
			mailbox.EncodeSDOInitiate(mailbox.SDODownloadInitiateRsp, req.Index, req.Subindex, nil))
	}

	// normal download: 4-byte size then the first data chunk
	size := int(binary.LittleEndian.Uint32(req.Data[:4]))
	chunk := req.Data[4:]
	if len(chunk) >= size {
		s.objects.Set(req.Index, req.Subindex, chunk[:size])
	} else {
		s.dl = &sdoDownload{
			index:    req.Index,
			subindex: req.Subindex,
			size:     size,
			buf:      append([]byte(nil), chunk...),
		}
	}

	return mailbox.EncodeCoE(mailbox.CoESDOResponse,
		mailbox.EncodeSDOInitiate(mailbox.SDODownloadInitiateRsp, req.Index, req.Subindex, nil))
}

func (s *Slave) sdoDownloadSegment(pdu []byte) []byte {
	cmd, data, err := mailbox.DecodeSDOSegment(pdu)
	if err != nil || s.dl == nil {
		return mailbox.EncodeCoE(mailbox.CoESDOResponse, mailbox.EncodeSDOAbort(0, 0, mailbox.AbortCommand))
	}

	if cmd&mailbox.SDOToggle != s.dl.toggle {
		dl := s.dl
		s.dl = nil
		return mailbox.EncodeCoE(mailbox.CoESDOResponse,
			mailbox.EncodeSDOAbort(dl.index, dl.subindex, mailbox.AbortToggle))
	}

	remaining := s.dl.size - len(s.dl.buf)
	if len(data) > remaining {
		data = data[:remaining]
	}
	s.dl.buf = append(s.dl.buf, data...)

	resp := mailbox.EncodeCoE(mailbox.CoESDOResponse,
		mailbox.EncodeSDOSegment(mailbox.SDODownloadSegmentRsp|s.dl.toggle, nil))
	s.dl.toggle ^= mailbox.SDOToggle

	if cmd&mailbox.SDOSegmentLast != 0 {
		s.objects.Set(s.dl.index, s.dl.subindex, s.dl.buf)
		s.dl = nil
	}

	return resp
}

func (s *Slave) sdoUploadInitiate(pdu []byte) []byte {
	req, err := mailbox.DecodeSDOInitiate(pdu)
	if err != nil {
		return nil
	}

	var (
		value []byte
		ok    bool
	)
	if req.Command&mailbox.SDOCompleteAccess != 0 {
		value, ok = s.objects.completeValue(req.Index, req.Subindex)
	} else {
		if !s.objects.has(req.Index) {
			return mailbox.EncodeCoE(mailbox.CoESDOResponse,
				mailbox.EncodeSDOAbort(req.Index, req.Subindex, mailbox.AbortNotExist))
		}
		value, ok = s.objects.Get(req.Index, req.Subindex)
		if !ok {
			return mailbox.EncodeCoE(mailbox.CoESDOResponse,
				mailbox.EncodeSDOAbort(req.Index, req.Subindex, mailbox.AbortSubindexMissing))
		}
	}
	if !ok {
		return mailbox.EncodeCoE(mailbox.CoESDOResponse,
			mailbox.EncodeSDOAbort(req.Index, req.Subindex, mailbox.AbortNotExist))
	}

	if len(value) <= 4 {
		cmd := uint8(mailbox.SDOUploadInitiateRsp) | mailbox.SDOExpedited | mailbox.SDOSizeIndicated |
			mailbox.ExpeditedSizeBits(len(value))
		return mailbox.EncodeCoE(mailbox.CoESDOResponse,
			mailbox.EncodeSDOInitiate(cmd, req.Index, req.Subindex, value))
	}

	s.ul = &sdoUpload{index: req.Index, subindex: req.Subindex, data: value}
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(len(value)))
	return mailbox.EncodeCoE(mailbox.CoESDOResponse,
		mailbox.EncodeSDOInitiate(mailbox.SDOUploadInitiateRsp|mailbox.SDOSizeIndicated, req.Index, req.Subindex, size))
}

func (s *Slave) sdoUploadSegment(pdu []byte) []byte {
	cmd, _, err := mailbox.DecodeSDOSegment(pdu)
	if err != nil || s.ul == nil {
		return mailbox.EncodeCoE(mailbox.CoESDOResponse, mailbox.EncodeSDOAbort(0, 0, mailbox.AbortCommand))
	}

	if cmd&mailbox.SDOToggle != s.ul.toggle {
		ul := s.ul
		s.ul = nil
		return mailbox.EncodeCoE(mailbox.CoESDOResponse,
			mailbox.EncodeSDOAbort(ul.index, ul.subindex, mailbox.AbortToggle))
	}

	n := s.segCap()
	if rem := len(s.ul.data) - s.ul.off; n > rem {
		n = rem
	}
	chunk := s.ul.data[s.ul.off : s.ul.off+n]
	s.ul.off += n

	rsp := uint8(mailbox.SDOUploadSegmentRsp) | s.ul.toggle
	if s.ul.off >= len(s.ul.data) {
		rsp |= mailbox.SDOSegmentLast
		s.ul = nil
	} else {
		s.ul.toggle ^= mailbox.SDOToggle
	}

	return mailbox.EncodeCoE(mailbox.CoESDOResponse, mailbox.EncodeSDOSegment(rsp, chunk))
}
