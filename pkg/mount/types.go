package mount

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/yak/pkg/vfs"
)

// State is the lifecycle position of a workspace's mount.
type State int

const (
	StateUnbound State = iota
	StateBinding
	StateServed
	StateBindFailed
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBinding:
		return "binding"
	case StateServed:
		return "served"
	case StateBindFailed:
		return "bind_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON status output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mount describes one workspace's NFS server.
type Mount struct {
	ID        uuid.UUID `json:"id"`
	Workspace string    `json:"workspace"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	State     State     `json:"state"`
	BoundAt   time.Time `json:"bound_at,omitzero"`

	// Attempts is the number of ports tried by the last Bind.
	Attempts int `json:"attempts"`

	// LastError is set when State is StateBindFailed.
	LastError string `json:"last_error,omitempty"`
}

// Endpoint returns "host:port".
func (m Mount) Endpoint() string {
	return net.JoinHostPort(m.Host, fmt.Sprint(m.Port))
}

// Server is a running NFS server for one workspace.
type Server interface {
	// Serve blocks until ctx is cancelled or the server fails.
	Serve(ctx context.Context) error

	// Stop shuts the server down, force-closing connections when ctx ends.
	Stop(ctx context.Context) error
}

// ServerFactory builds the server of workspace on an open listener. The
// server owns listener from then on.
type ServerFactory func(listener net.Listener, workspace string, fs vfs.FileSystem) (Server, error)

// Config bounds port selection and server lifetime.
type Config struct {
	// Host is the address servers listen on and the host reported to
	// clients.
	Host string

	// MinPort and MaxPort delimit the inclusive port range.
	MinPort int
	MaxPort int

	// MaxBindAttempts caps the ports tried by one Bind.
	MaxBindAttempts int

	// BindTimeout caps the duration of one Bind.
	BindTimeout time.Duration

	// ShutdownTimeout caps how long Unbind waits for a server to stop.
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.MaxBindAttempts == 0 {
		c.MaxBindAttempts = 16
	}
	if c.BindTimeout == 0 {
		c.BindTimeout = 5 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	switch {
	case c.MinPort < 1 || c.MaxPort > 65535:
		return fmt.Errorf("port range %d-%d outside 1-65535", c.MinPort, c.MaxPort)
	case c.MinPort > c.MaxPort:
		return fmt.Errorf("min port %d above max port %d", c.MinPort, c.MaxPort)
	case c.MaxBindAttempts < 1:
		return fmt.Errorf("max bind attempts %d: must be >= 1", c.MaxBindAttempts)
	case c.BindTimeout < 0 || c.ShutdownTimeout < 0:
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}
