// Package client is a Go client of the daemon's protocol service.
//
// A Client owns one TCP connection and runs one call at a time on it.
// Callers that want calls in flight concurrently open several clients, up
// to the limit reported by Concurrency.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/yak/internal/protocol/rpc"
	"github.com/marmos91/yak/internal/protocol/yak"
)

// DefaultTimeout bounds a call whose context has no deadline.
const DefaultTimeout = 30 * time.Second

// StatusError is a non-OK reply from the daemon.
type StatusError = yak.StatusError

// IsStatus reports whether err is a reply carrying status.
func IsStatus(err error, status yak.Status) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}

type Client struct {
	mu   sync.Mutex
	conn net.Conn
	xid  uint32
}

// Dial connects to the protocol service at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient returns a client talking over conn.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, xid: uint32(time.Now().UnixNano())}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// call runs proc with args, which may be nil, and decodes the reply into
// result, which may be nil.
func (c *Client) call(ctx context.Context, proc uint32, args, result any) error {
	var body []byte
	if args != nil {
		var err error
		if body, err = yak.Encode(args); err != nil {
			return err
		}
	}
	results, err := c.roundTrip(ctx, proc, body)
	if err != nil {
		return err
	}
	if proc == yak.ProcNull {
		return nil
	}
	if err := yak.DecodeReply(results, result); err != nil {
		return fmt.Errorf("%s: %w", yak.ProcName(proc), err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, proc uint32, body []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.xid++
	xid := c.xid
	msg, err := rpc.MakeCall(xid, yak.Program, yak.Version, proc, rpc.OpaqueAuth{Flavor: rpc.AuthNull}, body)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := rpc.WriteRecord(c.conn, msg); err != nil {
		return nil, c.failed(ctx, proc, err)
	}
	record, err := rpc.ReadRecord(c.conn, rpc.MaxRecordSize)
	if err != nil {
		return nil, c.failed(ctx, proc, err)
	}

	replyXID, results, err := rpc.ReadReply(record)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", yak.ProcName(proc), err)
	}
	if replyXID != xid {
		return nil, fmt.Errorf("%s: reply xid 0x%x does not match call 0x%x", yak.ProcName(proc), replyXID, xid)
	}
	return results, nil
}

// failed reports a transport error, preferring the context's error when
// the call was cancelled.
func (c *Client) failed(ctx context.Context, proc uint32, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return fmt.Errorf("%s: %w", yak.ProcName(proc), err)
}
