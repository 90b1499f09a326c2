package mk312

import "sync/atomic"

// EngineMetrics contains atomic counters for a protocol engine.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type EngineMetrics struct {
	// FrameSendCount indicates the number of frames written to the link.
	FrameSendCount atomic.Uint64
	// FrameRecvCount indicates the number of replies that passed validation.
	FrameRecvCount atomic.Uint64
	// ChecksumErrCount indicates the number of replies rejected by checksum.
	ChecksumErrCount atomic.Uint64

	// PeekCount and PokeCount count completed register operations.
	PeekCount atomic.Uint64
	PokeCount atomic.Uint64

	// HandshakeAttemptCount counts sync bytes sent across all connects.
	HandshakeAttemptCount atomic.Uint64
	// ConnectCount counts successful connects.
	ConnectCount atomic.Uint64
}

func (m *EngineMetrics) incFrameSendCount()        { m.FrameSendCount.Add(1) }
func (m *EngineMetrics) incFrameRecvCount()        { m.FrameRecvCount.Add(1) }
func (m *EngineMetrics) incChecksumErrCount()      { m.ChecksumErrCount.Add(1) }
func (m *EngineMetrics) incPeekCount()             { m.PeekCount.Add(1) }
func (m *EngineMetrics) incPokeCount()             { m.PokeCount.Add(1) }
func (m *EngineMetrics) incHandshakeAttemptCount() { m.HandshakeAttemptCount.Add(1) }
func (m *EngineMetrics) incConnectCount()          { m.ConnectCount.Add(1) }
