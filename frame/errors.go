package frame

import "errors"

var (
	// ErrFrameTooShort indicates that a received buffer is too short to hold the
	// structure being decoded (frame header, datagram header, data, or working counter).
	ErrFrameTooShort = errors.New("buffer too short for frame contents")

	// ErrFrameType indicates that the frame header type field is not the
	// protocol-data type understood by this codec.
	ErrFrameType = errors.New("unexpected frame type")

	// ErrNoDatagrams indicates an attempt to encode a frame without any datagrams.
	ErrNoDatagrams = errors.New("frame needs at least one datagram")

	// ErrDataTooLong indicates that a datagram payload exceeds the maximum
	// encodable data length or the remaining frame capacity.
	ErrDataTooLong = errors.New("datagram data too long")
)
