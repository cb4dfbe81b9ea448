package mbtcp

import (
	"sync/atomic"
)

// ServerMetrics contains atomic metrics for a server.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ServerMetrics struct {
	// ConnAcceptCount indicates the number of accepted connections.
	ConnAcceptCount atomic.Uint64
	// ConnRejectCount indicates the number of connections rejected by the
	// connection limit.
	ConnRejectCount atomic.Uint64
	// ConnActiveGauge indicates the number of currently served connections.
	ConnActiveGauge atomic.Int64

	// RequestRecvCount indicates the number of request PDUs received.
	RequestRecvCount atomic.Uint64
	// ResponseSendCount indicates the number of normal responses sent.
	ResponseSendCount atomic.Uint64
	// ExceptionSendCount indicates the number of exception responses sent.
	ExceptionSendCount atomic.Uint64
	// FrameErrCount indicates the number of malformed or failed frames.
	FrameErrCount atomic.Uint64
}

func (m *ServerMetrics) incConnAcceptCount() {
	m.ConnAcceptCount.Add(1)
}

func (m *ServerMetrics) incConnRejectCount() {
	m.ConnRejectCount.Add(1)
}

func (m *ServerMetrics) incConnActiveGauge() {
	m.ConnActiveGauge.Add(1)
}

func (m *ServerMetrics) decConnActiveGauge() {
	m.ConnActiveGauge.Add(-1)
}

func (m *ServerMetrics) incRequestRecvCount() {
	m.RequestRecvCount.Add(1)
}

func (m *ServerMetrics) incResponseSendCount() {
	m.ResponseSendCount.Add(1)
}

func (m *ServerMetrics) incExceptionSendCount() {
	m.ExceptionSendCount.Add(1)
}

func (m *ServerMetrics) incFrameErrCount() {
	m.FrameErrCount.Add(1)
}
