package rpc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// ErrNotCall is returned by ReadCall for records that are not calls.
var ErrNotCall = errors.New("rpc: not a call message")

// ReadCall decodes the call header of a record and returns it together with
// the procedure arguments that follow. Records that are not calls fail with
// ErrNotCall before the rest of the header is read.
func ReadCall(record []byte) (*RPCCallMessage, []byte, error) {
	if len(record) < 8 {
		return nil, nil, fmt.Errorf("unmarshal RPC call: record of %d bytes", len(record))
	}
	call := &RPCCallMessage{
		XID:     binary.BigEndian.Uint32(record),
		MsgType: binary.BigEndian.Uint32(record[4:]),
	}
	if call.MsgType != RPCCall {
		return nil, nil, fmt.Errorf("%w: msg_type %d", ErrNotCall, call.MsgType)
	}

	var body struct {
		RPCVersion uint32
		Program    uint32
		Version    uint32
		Procedure  uint32
		Cred       OpaqueAuth
		Verf       OpaqueAuth
	}
	// Opaques in the header are auth bodies, so the limit caps the
	// allocation a forged length may ask for.
	n, err := xdr.UnmarshalLimited(bytes.NewReader(record[8:]), &body, maxAuthBody)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshal RPC call: %w", err)
	}
	call.RPCVersion = body.RPCVersion
	call.Program = body.Program
	call.Version = body.Version
	call.Procedure = body.Procedure
	call.Cred = body.Cred
	call.Verf = body.Verf
	return call, record[8+n:], nil
}

// ReadXID salvages the transaction id of a record whose header failed to
// decode, so a GARBAGE_ARGS reply can still be matched by the client.
func ReadXID(record []byte) (uint32, bool) {
	if len(record) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(record), true
}

func nullVerifier() OpaqueAuth {
	return OpaqueAuth{Flavor: AuthNull, Body: []byte{}}
}

func acceptedReply(xid, stat uint32, results []byte, extra any) ([]byte, error) {
	reply := RPCReplyMessage{
		XID:        xid,
		MsgType:    RPCReply,
		ReplyState: RPCMsgAccepted,
		Verf:       nullVerifier(),
		AcceptStat: stat,
	}

	buf := bytes.NewBuffer(make([]byte, 4, 4+28+len(results)))
	if _, err := xdr.Marshal(buf, &reply); err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	if extra != nil {
		if _, err := xdr.Marshal(buf, extra); err != nil {
			return nil, fmt.Errorf("marshal reply body: %w", err)
		}
	}
	buf.Write(results)
	return frame(buf.Bytes()), nil
}

// frame fills in the record-marking header reserved in the first four bytes
// of b.
func frame(b []byte) []byte {
	binary.BigEndian.PutUint32(b[:4], lastFragment|uint32(len(b)-4))
	return b
}

// MakeSuccessReply builds a complete record-marked SUCCESS reply carrying
// the encoded procedure results.
func MakeSuccessReply(xid uint32, results []byte) ([]byte, error) {
	return acceptedReply(xid, RPCSuccess, results, nil)
}

// MakeErrorReply builds an accepted reply with a non-success status and no
// body (PROG_UNAVAIL, PROC_UNAVAIL, GARBAGE_ARGS, SYSTEM_ERR).
func MakeErrorReply(xid uint32, acceptStat uint32) ([]byte, error) {
	return acceptedReply(xid, acceptStat, nil, nil)
}

// MakeProgMismatchReply reports the supported version range of a program.
func MakeProgMismatchReply(xid, low, high uint32) ([]byte, error) {
	return acceptedReply(xid, RPCProgMismatch, nil, &mismatchInfo{Low: low, High: high})
}

// MakeRPCMismatchReply denies a call that is not ONC RPC version 2.
func MakeRPCMismatchReply(xid uint32) ([]byte, error) {
	header := struct {
		XID        uint32
		MsgType    uint32
		ReplyState uint32
		RejectStat uint32
		Mismatch   mismatchInfo
	}{
		XID:        xid,
		MsgType:    RPCReply,
		ReplyState: RPCMsgDenied,
		RejectStat: RPCMismatch,
		Mismatch:   mismatchInfo{Low: RPCVersion, High: RPCVersion},
	}

	buf := bytes.NewBuffer(make([]byte, 4, 4+24))
	if _, err := xdr.Marshal(buf, &header); err != nil {
		return nil, fmt.Errorf("marshal denied reply: %w", err)
	}
	return frame(buf.Bytes()), nil
}

// XdrPadding returns the number of zero bytes that follow an opaque of the
// given length.
func XdrPadding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}
