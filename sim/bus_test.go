package sim_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openec/go-ecat/esc"
	"github.com/openec/go-ecat/frame"
	"github.com/openec/go-ecat/sim"
	"github.com/openec/go-ecat/transport"
)

func testSlave() *sim.Slave {
	return sim.NewSlave(sim.SlaveConfig{Vendor: 0xE0CA7, Product: 1, Revision: 1})
}

func brdFrame(t *testing.T) []byte {
	t.Helper()

	f := &frame.Frame{}
	f.Add(&frame.Datagram{
		Command: frame.BRD,
		Index:   1,
		Addr:    frame.PhysAddr(0, esc.RegType),
		Data:    make([]byte, 2),
	})
	raw, err := f.Encode()
	require.NoError(t, err)
	return raw
}

func TestBus_BroadcastWkc(t *testing.T) {
	bus := sim.NewBus(testSlave(), testSlave(), testSlave())

	require.NoError(t, bus.Send(brdFrame(t)))

	raw, err := bus.Receive(50 * time.Millisecond)
	require.NoError(t, err)

	f, err := frame.Decode(raw)
	require.NoError(t, err)
	require.Len(t, f.Datagrams, 1)
	require.Equal(t, uint8(1), f.Datagrams[0].Index)
	require.Equal(t, uint16(3), f.Datagrams[0].Wkc)
}

func TestBus_DropFrames(t *testing.T) {
	bus := sim.NewBus(testSlave())
	bus.DropFrames(1)

	require.NoError(t, bus.Send(brdFrame(t)))
	_, err := bus.Receive(10 * time.Millisecond)
	require.ErrorIs(t, err, transport.ErrReceiveTimeout)

	// only the one frame is swallowed
	require.NoError(t, bus.Send(brdFrame(t)))
	_, err = bus.Receive(50 * time.Millisecond)
	require.NoError(t, err)
}

func TestBus_ReceiveTimeout(t *testing.T) {
	bus := sim.NewBus(testSlave())

	start := time.Now()
	_, err := bus.Receive(20 * time.Millisecond)
	require.ErrorIs(t, err, transport.ErrReceiveTimeout)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestBus_Closed(t *testing.T) {
	bus := sim.NewBus(testSlave())
	require.NoError(t, bus.Close())

	err := bus.Send(brdFrame(t))
	require.ErrorIs(t, err, transport.ErrPortClosed)
}

func TestOpener(t *testing.T) {
	opener := sim.NewOpener()
	opener.Add("sim0", sim.NewBus(testSlave()))
	opener.Add("sim1", sim.NewBus(testSlave(), testSlave()))

	t.Run("open registered", func(t *testing.T) {
		port, err := opener.Open("sim0", "")
		require.NoError(t, err)
		require.NotNil(t, port)
	})

	t.Run("open with redundant", func(t *testing.T) {
		_, err := opener.Open("sim0", "sim1")
		require.NoError(t, err)
	})

	t.Run("missing adapter", func(t *testing.T) {
		_, err := opener.Open("eth9", "")
		require.ErrorIs(t, err, transport.ErrConnection)
	})

	t.Run("missing redundant adapter", func(t *testing.T) {
		_, err := opener.Open("sim0", "eth9")
		require.ErrorIs(t, err, transport.ErrConnection)
	})

	t.Run("adapters sorted", func(t *testing.T) {
		adapters, err := opener.Adapters()
		require.NoError(t, err)
		require.Len(t, adapters, 2)
		require.Equal(t, "sim0", adapters[0].Name)
		require.Equal(t, "sim1", adapters[1].Name)
	})
}
