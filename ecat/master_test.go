package ecat_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openec/go-ecat/ecat"
	"github.com/openec/go-ecat/esc"
	"github.com/openec/go-ecat/logger"
	"github.com/openec/go-ecat/sim"
)

const testVendor = 0xE0CA7

func TestMain(m *testing.M) {
	logLevel := os.Getenv("LOG_LEVEL")

	var level logger.LogLevel
	switch logLevel {
	case "debug":
		level = logger.DebugLevel
	case "warn":
		level = logger.WarnLevel
	case "error":
		level = logger.ErrorLevel
	default:
		level = logger.InfoLevel
	}

	logger.SetLevel(level)

	os.Exit(m.Run())
}

// ioSlave is a plain cyclic device: 2 bytes out, 2 bytes in, mailbox, DC.
func ioSlave(product uint32) sim.SlaveConfig {
	return sim.SlaveConfig{
		Vendor:   testVendor,
		Product:  product,
		Revision: 1,
		OutBytes: 2,
		InBytes:  2,
		Mailbox:  true,
		DC:       true,
	}
}

// newSegment builds a simulated segment and a master over it, with timeouts
// tightened for tests.
func newSegment(t *testing.T, cfgs []sim.SlaveConfig, opts ...ecat.MasterOption) (*ecat.Master, *sim.Bus, []*sim.Slave) {
	t.Helper()

	slaves := make([]*sim.Slave, len(cfgs))
	for i, cfg := range cfgs {
		slaves[i] = sim.NewSlave(cfg)
	}
	bus := sim.NewBus(slaves...)

	opts = append([]ecat.MasterOption{
		ecat.WithReceiveTimeout(50 * time.Millisecond),
		ecat.WithStateTimeout(300 * time.Millisecond),
		ecat.WithStatePollInterval(time.Millisecond),
		ecat.WithEEPROMTimeout(20 * time.Millisecond),
		ecat.WithSDOTimeout(200 * time.Millisecond),
		ecat.WithFoETimeout(100 * time.Millisecond),
	}, opts...)

	m, err := ecat.Open(bus, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m, bus, slaves
}

func TestConfigInit_Discovery(t *testing.T) {
	m, _, _ := newSegment(t, []sim.SlaveConfig{ioSlave(1), ioSlave(2), ioSlave(3)})

	count, err := m.ConfigInit(false)
	require.NoError(t, err)
	require.Equal(t, 3, count)
	require.Equal(t, 3, m.SlaveCount())

	for i, s := range m.Slaves() {
		require.Equal(t, i, s.Position)
		require.Equal(t, uint16(0x1001+i), s.Station)
		require.Equal(t, uint32(testVendor), s.Vendor)
		require.Equal(t, uint32(i+1), s.Product)
		require.Equal(t, uint32(1), s.Revision)
		require.True(t, s.Configured)
		require.True(t, s.HasMailbox)
		require.True(t, s.DCCapable)
		require.Equal(t, 2, s.OutBytes)
		require.Equal(t, 2, s.InBytes)
	}

	state, err := m.ReadState()
	require.NoError(t, err)
	require.Equal(t, esc.StatePreOp, state)
}

func TestConfigInit_NoSlaves(t *testing.T) {
	m, _, _ := newSegment(t, nil)

	count, err := m.ConfigInit(false)
	require.ErrorIs(t, err, ecat.ErrNoSlaves)
	require.Equal(t, 0, count)
}

func TestConfigInit_BrokenEEPROM(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{ioSlave(1), ioSlave(2)})
	slaves[1].BreakEEPROM()

	count, err := m.ConfigInit(false)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	// the scan tolerates the broken device instead of aborting
	require.True(t, m.Slaves()[0].Configured)
	require.False(t, m.Slaves()[1].Configured)
}

func TestConfigInit_EEPROMDiesMidScan(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{ioSlave(1), ioSlave(2)})
	// identity answers, every later descriptor read runs into the timeout
	slaves[1].BreakEEPROMAfter(1)

	count, err := m.ConfigInit(false)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.True(t, m.Slaves()[0].Configured)
	require.False(t, m.Slaves()[1].Configured)
	require.False(t, m.Slaves()[1].HasMailbox)
}

func TestConfigInit_WarnsOnUnansweredDescriptors(t *testing.T) {
	log := logger.NewMockLogger()
	log.On("Debug", mock.Anything, mock.Anything).Maybe()
	log.On("Info", mock.Anything, mock.Anything).Maybe()
	log.On("Warn", mock.Anything, mock.Anything).Maybe()

	m, _, slaves := newSegment(t, []sim.SlaveConfig{ioSlave(1), ioSlave(2)},
		ecat.WithLogger(log))
	slaves[1].BreakEEPROM()

	count, err := m.ConfigInit(false)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	log.AssertCalled(t, "Warn", "descriptor read failed, leaving slave unconfigured", mock.Anything)
}

func TestConfigInit_Table(t *testing.T) {
	table, err := ecat.ParseConfigTable([]byte(`
slaves:
  - name: drive
    vendor: 0xE0CA7
    product: 1
    out_bytes: 2
    in_bytes: 2
  - name: encoder
    vendor: 0xE0CA7
    product: 99
    out_bytes: 0
    in_bytes: 4
`))
	require.NoError(t, err)

	m, _, _ := newSegment(t, []sim.SlaveConfig{ioSlave(1), ioSlave(2)})
	m.SetConfigTable(table)

	count, err := m.ConfigInit(true)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.True(t, m.Slaves()[0].Configured)
	require.Equal(t, "drive", m.Slaves()[0].Name)

	// product 2 does not match the expected 99: left unconfigured, scan continues
	require.False(t, m.Slaves()[1].Configured)
}

func TestConfigInit_TableMissing(t *testing.T) {
	m, _, _ := newSegment(t, []sim.SlaveConfig{ioSlave(1)})

	_, err := m.ConfigInit(true)
	require.ErrorIs(t, err, ecat.ErrNoConfigTable)
}

func TestReadState_Idempotent(t *testing.T) {
	m, _, _ := newSegment(t, []sim.SlaveConfig{ioSlave(1), ioSlave(2)})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	first, err := m.ReadState()
	require.NoError(t, err)
	second, err := m.ReadState()
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestReadState_LaggingSlaveCapsAggregate(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{ioSlave(1), ioSlave(2)})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	// freeze slave 1 in PRE-OP, advance the rest
	slaves[1].StickState(true)
	_, err = m.WriteState(ecat.AllSlaves, esc.StateSafeOp)
	require.NoError(t, err)

	state, err := m.StateCheck(ecat.AllSlaves, esc.StateSafeOp, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, esc.StatePreOp, state)
	require.Equal(t, esc.StateSafeOp, m.Slaves()[0].State)
}

func TestStateCheck_Timing(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{ioSlave(1)})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)
	_, err = m.ConfigMap()
	require.NoError(t, err)
	_, err = m.WriteState(ecat.AllSlaves, esc.StateOp)
	require.NoError(t, err)

	const timeout = 150 * time.Millisecond

	// already in OP: returns well under the timeout
	start := time.Now()
	state, err := m.StateCheck(ecat.AllSlaves, esc.StateOp, timeout)
	require.NoError(t, err)
	require.Equal(t, esc.StateOp, state)
	require.Less(t, time.Since(start), timeout/2)

	// stuck below the requested state: returns the observed state only after
	// ~timeout, never overshooting by more than a poll interval or two
	slaves[0].StickState(true)
	_, err = m.WriteState(ecat.AllSlaves, esc.StateInit)
	require.NoError(t, err)
	_, err = m.StateCheck(ecat.AllSlaves, esc.StateInit, 50*time.Millisecond)
	require.NoError(t, err)

	start = time.Now()
	state, err = m.StateCheck(ecat.AllSlaves, esc.StateInit, timeout)
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Equal(t, esc.StateOp, state)
	require.GreaterOrEqual(t, elapsed, timeout)
	require.Less(t, elapsed, timeout+100*time.Millisecond)
}

func TestWriteState_InvalidTransitionSetsErrorFlag(t *testing.T) {
	m, _, slaves := newSegment(t, []sim.SlaveConfig{ioSlave(1)})

	_, err := m.ConfigInit(false)
	require.NoError(t, err)

	// PRE-OP straight to OP is not in the transition graph
	_, err = m.WriteState(0, esc.StateOp)
	require.NoError(t, err)

	state, err := m.StateCheck(0, esc.StateOp, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, state.HasError())
	require.Equal(t, esc.StatePreOp, state.Base())
	require.Equal(t, uint16(0x0011), m.Slaves()[0].ALStatusCode)
	require.True(t, slaves[0].ALState().HasError())
}
