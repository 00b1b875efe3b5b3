package frame

import (
	"encoding/binary"
	"fmt"
)

// Frame header type field values.
const (
	// TypePDU marks a frame carrying EtherCAT datagrams.
	TypePDU = 1

	frameLenMask  = (1 << 11) - 1
	frameTypeBits = 12
)

// Frame is an ordered collection of datagrams sharing one bus transaction.
type Frame struct {
	Datagrams []*Datagram
}

// Add appends a datagram to the frame.
func (f *Frame) Add(dg *Datagram) {
	f.Datagrams = append(f.Datagrams, dg)
}

// ByteLen returns the encoded frame length, header included.
func (f *Frame) ByteLen() int {
	n := HeaderLen
	for _, dg := range f.Datagrams {
		n += dg.ByteLen()
	}
	return n
}

// Fits reports whether a datagram with the given data length still fits into
// the frame without exceeding MaxFrameLen.
func (f *Frame) Fits(dataLen int) bool {
	return f.ByteLen()+DatagramOverheadLen+dataLen <= MaxFrameLen
}

// Encode serializes the frame into a freshly allocated buffer.
//
// The more-follows flag of every datagram except the last is set during
// encoding; callers only populate command, index, address and data.
func (f *Frame) Encode() ([]byte, error) {
	if len(f.Datagrams) == 0 {
		return nil, ErrNoDatagrams
	}

	total := f.ByteLen()
	if total > MaxFrameLen {
		return nil, fmt.Errorf("%w: frame length %d exceeds %d", ErrDataTooLong, total, MaxFrameLen)
	}

	for _, dg := range f.Datagrams {
		if len(dg.Data) > dataLenMask {
			return nil, fmt.Errorf("%w: datagram data length %d", ErrDataTooLong, len(dg.Data))
		}
	}

	buf := make([]byte, total)
	binary.LittleEndian.PutUint16(buf, uint16(total-HeaderLen)&frameLenMask|TypePDU<<frameTypeBits)

	off := HeaderLen
	for i, dg := range f.Datagrams {
		more := i < len(f.Datagrams)-1
		off += dg.encode(buf[off:], more)
	}

	return buf, nil
}

// Decode parses an encoded frame.
//
// The returned datagrams alias the input buffer; the caller must not reuse the
// buffer while the datagrams are live.
func Decode(b []byte) (*Frame, error) {
	if len(b) < HeaderLen {
		return nil, ErrFrameTooShort
	}

	word := binary.LittleEndian.Uint16(b)
	if word>>frameTypeBits != TypePDU {
		return nil, fmt.Errorf("%w: type %d", ErrFrameType, word>>frameTypeBits)
	}

	dgramLen := int(word & frameLenMask)
	b = b[HeaderLen:]
	if len(b) < dgramLen {
		return nil, ErrFrameTooShort
	}

	f := &Frame{}
	for {
		dg, rest, more, err := decodeDatagram(b)
		if err != nil {
			return nil, err
		}
		f.Add(dg)
		b = rest

		if !more {
			break
		}
	}

	return f, nil
}
