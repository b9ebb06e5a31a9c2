package metrics

import "time"

// ConnectionMetrics is the connection accounting shared by every ONC RPC
// server of the daemon.
type ConnectionMetrics interface {
	SetActiveConnections(count int32)
	RecordConnectionAccepted()
	RecordConnectionClosed()
	RecordConnectionForceClosed()
}

// NFSMetrics instruments the per-workspace NFS servers. Procedures are
// labelled with their RFC name, MOUNT procedures with a "MOUNT_" prefix.
type NFSMetrics interface {
	ConnectionMetrics

	// RecordRequest counts a completed call. status is the nfsstat3 name
	// of the reply, or the RPC accept status when the call failed.
	RecordRequest(procedure, workspace string, duration time.Duration, status string)

	RecordRequestStart(procedure, workspace string)
	RecordRequestEnd(procedure, workspace string)

	// RecordBytesTransferred counts argument ("in") and reply ("out")
	// bytes of READ and WRITE.
	RecordBytesTransferred(procedure, workspace, direction string, bytes uint64)
}

// NewNoopNFSMetrics returns an NFSMetrics that records nothing.
func NewNoopNFSMetrics() NFSMetrics {
	return noopNFSMetrics{}
}

type noopConnectionMetrics struct{}

func (noopConnectionMetrics) SetActiveConnections(count int32) {}
func (noopConnectionMetrics) RecordConnectionAccepted()        {}
func (noopConnectionMetrics) RecordConnectionClosed()          {}
func (noopConnectionMetrics) RecordConnectionForceClosed()     {}

type noopNFSMetrics struct {
	noopConnectionMetrics
}

func (noopNFSMetrics) RecordRequest(procedure, workspace string, duration time.Duration, status string) {
}
func (noopNFSMetrics) RecordRequestStart(procedure, workspace string) {}
func (noopNFSMetrics) RecordRequestEnd(procedure, workspace string)   {}
func (noopNFSMetrics) RecordBytesTransferred(procedure, workspace, direction string, bytes uint64) {
}
