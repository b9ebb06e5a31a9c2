package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/rpc"
)

// conn serves the RPC calls of one client connection, one at a time.
type conn struct {
	server *RPCServer
	conn   net.Conn
	addr   string
}

func newConn(server *RPCServer, c net.Conn) *conn {
	return &conn{server: server, conn: c, addr: c.RemoteAddr().String()}
}

// serve runs until the client disconnects, a timeout fires, an
// unrecoverable error occurs or ctx is cancelled. A panic in a handler only
// takes this connection down.
func (c *conn) serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in connection handler", "server", c.server.name, "client", c.addr, "panic", r)
		}
		_ = c.conn.Close()
	}()

	// Unblock a pending read as soon as shutdown cancels requests.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	c.resetIdle()

	for {
		select {
		case <-ctx.Done():
			c.server.log.debugf("connection from %s closed by shutdown", c.addr)
			return
		default:
		}

		if err := c.handleRequest(ctx); err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF):
				c.server.log.debugf("connection from %s closed by client", c.addr)
			case errors.As(err, &netErr) && netErr.Timeout():
				c.server.log.debugf("connection from %s timed out: %v", c.addr, err)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				c.server.log.debugf("connection from %s cancelled: %v", c.addr, err)
			default:
				c.server.log.debugf("error handling request from %s: %v", c.addr, err)
			}
			return
		}

		c.resetIdle()
	}
}

func (c *conn) resetIdle() {
	if c.server.config.IdleTimeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.server.config.IdleTimeout)); err != nil {
			c.server.log.debugf("failed to set deadline for %s: %v", c.addr, err)
		}
	}
}

// handleRequest reads one record, dispatches it and writes the reply.
func (c *conn) handleRequest(ctx context.Context) error {
	if c.server.config.ReadTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	}

	record, err := rpc.ReadRecord(c.conn, rpc.MaxRecordSize)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	reply, err := c.dispatch(ctx, record)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	return c.send(reply)
}

// dispatch turns a record into a reply. Undecodable calls whose xid can be
// salvaged get GARBAGE_ARGS; records that are not calls are dropped.
func (c *conn) dispatch(ctx context.Context, record []byte) ([]byte, error) {
	call, args, err := rpc.ReadCall(record)
	if err != nil {
		if errors.Is(err, rpc.ErrNotCall) {
			c.server.log.debugf("dropping non-call record from %s: %v", c.addr, err)
			return nil, nil
		}
		xid, ok := rpc.ReadXID(record)
		if !ok {
			return nil, fmt.Errorf("malformed RPC header: %w", err)
		}
		c.server.log.debugf("garbage call header from %s xid=0x%x: %v", c.addr, xid, err)
		return rpc.MakeErrorReply(xid, rpc.RPCGarbageArgs)
	}

	if call.RPCVersion != rpc.RPCVersion {
		c.server.log.debugf("rpc version %d from %s xid=0x%x", call.RPCVersion, c.addr, call.XID)
		return rpc.MakeRPCMismatchReply(call.XID)
	}

	logger.Debug("rpc call", "server", c.server.name, "xid", fmt.Sprintf("0x%x", call.XID),
		"program", call.Program, "version", call.Version, "procedure", call.Procedure, "client", c.addr)

	return c.server.handler.HandleCall(ctx, call, args, c.addr)
}

func (c *conn) send(reply []byte) error {
	if c.server.config.WriteTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := c.conn.Write(reply); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	return nil
}
