package mailbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderEncodeDecode(t *testing.T) {
	h := &Header{
		Address:  0x1002,
		Priority: 1,
		Type:     TypeCoE,
		Counter:  5,
	}

	payload := []byte{0x01, 0x02, 0x03}
	buf := h.Encode(payload)
	require.Len(t, buf, HeaderLen+3)

	decoded, data, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), decoded.Length)
	assert.Equal(t, uint16(0x1002), decoded.Address)
	assert.Equal(t, uint8(1), decoded.Priority)
	assert.Equal(t, TypeCoE, decoded.Type)
	assert.Equal(t, uint8(5), decoded.Counter)
	assert.Equal(t, payload, data)
}

func TestDecodeHeaderShort(t *testing.T) {
	_, _, err := DecodeHeader([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortFrame)

	// Header claims more payload than the buffer holds.
	h := &Header{Type: TypeCoE}
	buf := h.Encode(make([]byte, 10))
	_, _, err = DecodeHeader(buf[:HeaderLen+4])
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestNextCounter(t *testing.T) {
	c := uint8(0)
	seen := make([]uint8, 0, 8)
	for i := 0; i < 8; i++ {
		c = NextCounter(c)
		seen = append(seen, c)
	}
	// 1..7 then wraps to 1, never 0.
	assert.Equal(t, []uint8{1, 2, 3, 4, 5, 6, 7, 1}, seen)
}

func TestCoERoundTrip(t *testing.T) {
	pdu := EncodeSDOInitiate(SDOUploadInitiateReq, 0x6000, 2, nil)
	buf := EncodeCoE(CoESDORequest, pdu)

	service, payload, err := DecodeCoE(buf)
	require.NoError(t, err)
	assert.Equal(t, CoESDORequest, service)

	initiate, err := DecodeSDOInitiate(payload)
	require.NoError(t, err)
	assert.Equal(t, uint8(SDOUploadInitiateReq), initiate.Command)
	assert.Equal(t, uint16(0x6000), initiate.Index)
	assert.Equal(t, uint8(2), initiate.Subindex)
	assert.Len(t, initiate.Data, 4)
}

func TestSDOAbort(t *testing.T) {
	pdu := EncodeSDOAbort(0x1018, 4, AbortNotExist)

	initiate, err := DecodeSDOInitiate(pdu)
	require.NoError(t, err)
	assert.True(t, initiate.IsAbort())
	assert.Equal(t, AbortNotExist, initiate.AbortCode())

	abortErr := &AbortError{Index: 0x1018, Subindex: 4, Code: initiate.AbortCode()}
	assert.Contains(t, abortErr.Error(), "object does not exist")
	assert.Contains(t, abortErr.Error(), "0x1018")
}

func TestExpeditedSizeBits(t *testing.T) {
	for n := 1; n <= 4; n++ {
		cmd := uint8(SDODownloadInitiateReq) | SDOExpedited | SDOSizeIndicated | ExpeditedSizeBits(n)
		assert.Equal(t, n, ExpeditedLen(cmd))
	}
}

func TestSDOSegment(t *testing.T) {
	data := []byte{9, 8, 7, 6, 5}
	pdu := EncodeSDOSegment(SDODownloadSegmentReq|SDOToggle|SDOSegmentLast, data)

	cmd, got, err := DecodeSDOSegment(pdu)
	require.NoError(t, err)
	assert.NotZero(t, cmd&SDOToggle)
	assert.NotZero(t, cmd&SDOSegmentLast)
	assert.Equal(t, data, got)
}

func TestFoEFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame FoEFrame
	}{
		{name: "read request", frame: FoEFrame{Op: FoERead, Num: 0xCAFE, Data: []byte("firmware.bin")}},
		{name: "data block", frame: FoEFrame{Op: FoEData, Num: 3, Data: []byte{1, 2, 3, 4}}},
		{name: "ack", frame: FoEFrame{Op: FoEAck, Num: 3}},
		{name: "error", frame: FoEFrame{Op: FoEErr, Num: uint32(FoEErrNotFound), Data: []byte("no such file")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.frame.Encode()
			decoded, err := DecodeFoE(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.frame.Op, decoded.Op)
			assert.Equal(t, tt.frame.Num, decoded.Num)
			if len(tt.frame.Data) > 0 {
				assert.Equal(t, tt.frame.Data, decoded.Data)
			} else {
				assert.Empty(t, decoded.Data)
			}
		})
	}
}

func TestEmergencyRoundTrip(t *testing.T) {
	em := &Emergency{ErrorCode: 0x4210, ErrorReg: 0x01, Data: [5]byte{1, 2, 3, 4, 5}}
	decoded, err := DecodeEmergency(em.Encode())
	require.NoError(t, err)
	assert.Equal(t, em, decoded)
}
