package metrics

// MountMetrics instruments the mount actor.
type MountMetrics interface {
	// RecordBindAttempt counts one listen attempt on a candidate port.
	RecordBindAttempt()

	// RecordBindResult counts a finished Bind; result is "served",
	// "existing" or "failed".
	RecordBindResult(result string)

	// SetServedMounts reports how many workspaces have a running server.
	SetServedMounts(count int)
}

// NewNoopMountMetrics returns a MountMetrics that records nothing.
func NewNoopMountMetrics() MountMetrics {
	return noopMountMetrics{}
}

type noopMountMetrics struct{}

func (noopMountMetrics) RecordBindAttempt()             {}
func (noopMountMetrics) RecordBindResult(result string) {}
func (noopMountMetrics) SetServedMounts(count int)      {}
