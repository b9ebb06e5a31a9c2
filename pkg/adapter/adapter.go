// Package adapter holds the network server plumbing shared by the daemon's
// two ONC RPC surfaces: the protocol service (pkg/adapter/rpc) and the
// per-workspace NFS servers (pkg/adapter/nfs).
package adapter

import "context"

// Adapter is a protocol server with a managed lifecycle.
//
// Stop may be called concurrently with Serve and more than once.
type Adapter interface {
	// Serve runs the server until ctx is cancelled or Stop is called. It
	// returns nil after a graceful shutdown.
	Serve(ctx context.Context) error

	// Stop initiates shutdown and waits for active connections until ctx
	// is done.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name for logs and metrics.
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	Port() int
}
