package metrics

import "time"

// RPCMetrics instruments the protocol service.
type RPCMetrics interface {
	ConnectionMetrics

	// RecordRequest counts a completed call; status is the name of the
	// reply's status code.
	RecordRequest(procedure string, duration time.Duration, status string)

	RecordRequestStart(procedure string)
	RecordRequestEnd(procedure string)
}

// NewNoopRPCMetrics returns an RPCMetrics that records nothing.
func NewNoopRPCMetrics() RPCMetrics {
	return noopRPCMetrics{}
}

type noopRPCMetrics struct {
	noopConnectionMetrics
}

func (noopRPCMetrics) RecordRequest(procedure string, duration time.Duration, status string) {}
func (noopRPCMetrics) RecordRequestStart(procedure string)                                   {}
func (noopRPCMetrics) RecordRequestEnd(procedure string)                                     {}
