package ecat

import (
	"sync/atomic"
)

// MasterMetrics contains atomic metrics for a master.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type MasterMetrics struct {
	// FrameSendCount indicates the number of frames sent.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of frames received and matched.
	FrameRecvCount atomic.Uint64
	// FrameLostCount indicates the number of frames that got no response.
	FrameLostCount atomic.Uint64

	// CycleCount indicates the number of cyclic exchanges sent.
	CycleCount atomic.Uint64
	// WkcErrCount indicates the number of cycles whose working counter fell
	// below the expected value.
	WkcErrCount atomic.Uint64

	// MbxSendCount indicates the number of mailbox requests written.
	MbxSendCount atomic.Uint64
	// MbxRecvCount indicates the number of mailbox responses read.
	MbxRecvCount atomic.Uint64
	// MbxStaleCount indicates the number of stale mailbox responses discarded
	// by counter mismatch.
	MbxStaleCount atomic.Uint64

	// EmergencyCount indicates the number of emergency notifications drained.
	EmergencyCount atomic.Uint64
}

func (m *MasterMetrics) incFrameSendCount() {
	m.FrameSendCount.Add(1)
}

func (m *MasterMetrics) incFrameRecvCount() {
	m.FrameRecvCount.Add(1)
}

func (m *MasterMetrics) incFrameLostCount() {
	m.FrameLostCount.Add(1)
}

func (m *MasterMetrics) incCycleCount() {
	m.CycleCount.Add(1)
}

func (m *MasterMetrics) incWkcErrCount() {
	m.WkcErrCount.Add(1)
}

func (m *MasterMetrics) incMbxSendCount() {
	m.MbxSendCount.Add(1)
}

func (m *MasterMetrics) incMbxRecvCount() {
	m.MbxRecvCount.Add(1)
}

func (m *MasterMetrics) incMbxStaleCount() {
	m.MbxStaleCount.Add(1)
}

func (m *MasterMetrics) incEmergencyCount() {
	m.EmergencyCount.Add(1)
}
