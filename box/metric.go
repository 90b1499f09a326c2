package box

import "sync/atomic"

// SessionMetrics contains atomic metrics for a session worker.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// CycleCount indicates the number of poll cycles run while connected.
	CycleCount atomic.Uint64
	// ConnectCount indicates the number of successful connects.
	ConnectCount atomic.Uint64
	// ReconnectCount indicates the number of forced reconnects after repeated errors.
	ReconnectCount atomic.Uint64
	// DrainedWriteCount indicates the number of queued writes applied to the device.
	DrainedWriteCount atomic.Uint64
	// EventDropCount indicates the number of events dropped because the event channel was full.
	EventDropCount atomic.Uint64

	// ErrorGauge indicates the current number of consecutive errors.
	ErrorGauge atomic.Int64
}

func (m *SessionMetrics) incCycleCount()        { m.CycleCount.Add(1) }
func (m *SessionMetrics) incConnectCount()      { m.ConnectCount.Add(1) }
func (m *SessionMetrics) incReconnectCount()    { m.ReconnectCount.Add(1) }
func (m *SessionMetrics) incDrainedWriteCount() { m.DrainedWriteCount.Add(1) }
func (m *SessionMetrics) incEventDropCount()    { m.EventDropCount.Add(1) }
