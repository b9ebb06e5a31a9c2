// Package rpc serves the protocol service over ONC RPC.
//
// Calls are decoded into the XDR messages of internal/protocol/yak and run
// against a service.Service. Every reply carries a status header; service
// errors become statuses, never RPC-level errors.
package rpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/rpc"
	"github.com/marmos91/yak/internal/protocol/yak"
	"github.com/marmos91/yak/internal/ratelimiter"
	"github.com/marmos91/yak/pkg/adapter"
	"github.com/marmos91/yak/pkg/metrics"
	"github.com/marmos91/yak/pkg/service"
)

// RPCAdapter is the protocol service endpoint.
type RPCAdapter struct {
	server  *adapter.RPCServer
	service *service.Service
	limiter *ratelimiter.Limiter
	metrics metrics.RPCMetrics
}

var _ adapter.Adapter = (*RPCAdapter)(nil)

// New returns an adapter serving svc on listener. limiter may be nil to
// admit every call; nil metrics records nothing.
func New(config adapter.ConnConfig, listener net.Listener, svc *service.Service, limiter *ratelimiter.Limiter, m metrics.RPCMetrics) (*RPCAdapter, error) {
	if m == nil {
		m = metrics.NewNoopRPCMetrics()
	}
	a := &RPCAdapter{
		service: svc,
		limiter: limiter,
		metrics: m,
	}
	server, err := adapter.NewRPCServer("rpc", config, listener, a, m)
	if err != nil {
		return nil, err
	}
	a.server = server
	return a, nil
}

func (a *RPCAdapter) Serve(ctx context.Context) error {
	return a.server.Serve(ctx)
}

func (a *RPCAdapter) Stop(ctx context.Context) error {
	return a.server.Stop(ctx)
}

func (a *RPCAdapter) Protocol() string {
	return "YAK"
}

func (a *RPCAdapter) Port() int {
	return a.server.Port()
}

// Addr returns the listening address.
func (a *RPCAdapter) Addr() net.Addr {
	return a.server.Addr()
}

func (a *RPCAdapter) HandleCall(ctx context.Context, call *rpc.RPCCallMessage, args []byte, clientAddr string) ([]byte, error) {
	if call.Program != yak.Program {
		logger.Debugf("Unknown program %d (xid=0x%x)", call.Program, call.XID)
		return rpc.MakeErrorReply(call.XID, rpc.RPCProgUnavail)
	}
	if call.Version != yak.Version {
		logger.Debugf("Protocol version %d not supported (xid=0x%x)", call.Version, call.XID)
		return rpc.MakeProgMismatchReply(call.XID, yak.Version, yak.Version)
	}

	procInfo, ok := dispatchTable[call.Procedure]
	if !ok {
		logger.Debugf("Unknown procedure %d (xid=0x%x)", call.Procedure, call.XID)
		return rpc.MakeErrorReply(call.XID, rpc.RPCProcUnavail)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	a.metrics.RecordRequestStart(procInfo.Name)
	defer a.metrics.RecordRequestEnd(procInfo.Name)

	start := time.Now()
	result, err := procInfo.Handler(ctx, a.service, args)
	duration := time.Since(start)

	if errors.Is(err, errGarbageArgs) {
		logger.Debugf("%s from %s: %v", procInfo.Name, clientAddr, err)
		a.metrics.RecordRequest(procInfo.Name, duration, "GARBAGE_ARGS")
		return rpc.MakeErrorReply(call.XID, rpc.RPCGarbageArgs)
	}
	if err != nil && ctx.Err() != nil {
		logger.Debugf("%s cancelled: xid=0x%x: %v", procInfo.Name, call.XID, err)
		a.metrics.RecordRequest(procInfo.Name, duration, "CANCELLED")
		return nil, ctx.Err()
	}

	status, message := service.StatusOf(err)
	a.metrics.RecordRequest(procInfo.Name, duration, status.String())
	switch {
	case status == yak.StatusInternal:
		logger.Error("Request failed", "procedure", procInfo.Name, "client", clientAddr, "xid", call.XID, "error", err)
	case err != nil:
		logger.Debug("Request rejected", "procedure", procInfo.Name, "status", status.String(), "error", err)
	}

	if procInfo.Void {
		return rpc.MakeSuccessReply(call.XID, nil)
	}
	body, err := yak.EncodeReply(status, message, result)
	if err != nil {
		logger.Error("Encoding reply failed", "procedure", procInfo.Name, "error", err)
		return rpc.MakeErrorReply(call.XID, rpc.RPCSystemErr)
	}
	return rpc.MakeSuccessReply(call.XID, body)
}
