package ecat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openec/go-ecat/ecat"
	"github.com/openec/go-ecat/sim"
)

func TestConfigDC(t *testing.T) {
	cfgs := []sim.SlaveConfig{ioSlave(1), ioSlave(2), ioSlave(3)}
	m, _, _ := newSegment(t, cfgs)

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	found, err := m.ConfigDC()
	require.NoError(t, err)
	require.True(t, found)

	// the first capable device is the reference; delays accumulate per hop
	require.Equal(t, uint32(0), m.Slaves()[0].PropDelayNS)
	require.Greater(t, m.Slaves()[1].PropDelayNS, uint32(0))
	require.Greater(t, m.Slaves()[2].PropDelayNS, m.Slaves()[1].PropDelayNS)

	now, err := m.DCTime()
	require.NoError(t, err)
	require.Greater(t, now, uint64(0))

	later, err := m.DCTime()
	require.NoError(t, err)
	require.GreaterOrEqual(t, later, now)
}

func TestConfigDC_MixedCapability(t *testing.T) {
	plain := ioSlave(1)
	plain.DC = false
	m, _, _ := newSegment(t, []sim.SlaveConfig{plain, ioSlave(2)})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	found, err := m.ConfigDC()
	require.NoError(t, err)
	require.True(t, found)

	// the reference is the first capable device, not position 0
	require.Equal(t, uint32(0), m.Slaves()[1].PropDelayNS)
}

func TestConfigDC_NoneCapable(t *testing.T) {
	plain := ioSlave(1)
	plain.DC = false
	m, _, _ := newSegment(t, []sim.SlaveConfig{plain})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	found, err := m.ConfigDC()
	require.NoError(t, err)
	require.False(t, found)

	_, err = m.DCTime()
	require.ErrorIs(t, err, ecat.ErrNoDCReference)
}

func TestDCSync(t *testing.T) {
	plain := ioSlave(2)
	plain.DC = false
	m, _, _ := newSegment(t, []sim.SlaveConfig{ioSlave(1), plain})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	// before ConfigDC there is no reference time base
	err = m.DCSync(0, true, time.Millisecond, 0)
	require.ErrorIs(t, err, ecat.ErrNoDCReference)

	_, err = m.ConfigDC()
	require.NoError(t, err)

	require.NoError(t, m.DCSync(0, true, time.Millisecond, 100*time.Microsecond))
	require.NoError(t, m.DCSync2(0, true, time.Millisecond, 2*time.Millisecond, 0))
	require.NoError(t, m.DCSync(0, false, 0, 0))

	err = m.DCSync(1, true, time.Millisecond, 0)
	require.ErrorIs(t, err, ecat.ErrNotDCCapable)

	err = m.DCSync(5, true, time.Millisecond, 0)
	require.ErrorIs(t, err, ecat.ErrSlaveIndex)

	// the cycle registers hold 32-bit nanoseconds; longer cycles are rejected
	// instead of silently truncated
	err = m.DCSync(0, true, 5*time.Second, 0)
	require.ErrorIs(t, err, ecat.ErrSyncCycle)
	err = m.DCSync(0, true, -time.Millisecond, 0)
	require.ErrorIs(t, err, ecat.ErrSyncCycle)
	err = m.DCSync2(0, true, time.Millisecond, 5*time.Second, 0)
	require.ErrorIs(t, err, ecat.ErrSyncCycle)
}
