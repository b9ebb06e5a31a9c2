package rpc

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// AcceptError is returned by ReadReply when the server accepted the call but
// did not run it successfully.
type AcceptError struct {
	Stat uint32
}

func (e *AcceptError) Error() string {
	switch e.Stat {
	case RPCProgUnavail:
		return "rpc: program unavailable"
	case RPCProgMismatch:
		return "rpc: program version mismatch"
	case RPCProcUnavail:
		return "rpc: procedure unavailable"
	case RPCGarbageArgs:
		return "rpc: server could not decode arguments"
	case RPCSystemErr:
		return "rpc: system error"
	default:
		return fmt.Sprintf("rpc: accept status %d", e.Stat)
	}
}

// MakeCall encodes a call header followed by args, without record marking.
func MakeCall(xid, program, version, procedure uint32, cred OpaqueAuth, args []byte) ([]byte, error) {
	if cred.Body == nil {
		cred.Body = []byte{}
	}
	call := RPCCallMessage{
		XID:        xid,
		MsgType:    RPCCall,
		RPCVersion: RPCVersion,
		Program:    program,
		Version:    version,
		Procedure:  procedure,
		Cred:       cred,
		Verf:       nullVerifier(),
	}

	buf := bytes.NewBuffer(make([]byte, 0, 40+len(args)))
	if _, err := xdr.Marshal(buf, &call); err != nil {
		return nil, fmt.Errorf("marshal call: %w", err)
	}
	buf.Write(args)
	return buf.Bytes(), nil
}

// ReadReply decodes a reply record and returns its xid and results.
func ReadReply(record []byte) (uint32, []byte, error) {
	r := bytes.NewReader(record)

	var head struct {
		XID        uint32
		MsgType    uint32
		ReplyState uint32
	}
	if _, err := xdr.UnmarshalLimited(r, &head, uint(len(record))); err != nil {
		return 0, nil, fmt.Errorf("unmarshal reply: %w", err)
	}
	if head.MsgType != RPCReply {
		return head.XID, nil, fmt.Errorf("rpc: expected reply, got msg_type %d", head.MsgType)
	}
	if head.ReplyState == RPCMsgDenied {
		return head.XID, nil, fmt.Errorf("rpc: call denied")
	}

	var accepted struct {
		Verf       OpaqueAuth
		AcceptStat uint32
	}
	if _, err := xdr.UnmarshalLimited(r, &accepted, maxAuthBody); err != nil {
		return head.XID, nil, fmt.Errorf("unmarshal accepted reply: %w", err)
	}
	if accepted.AcceptStat != RPCSuccess {
		return head.XID, nil, &AcceptError{Stat: accepted.AcceptStat}
	}

	return head.XID, record[len(record)-r.Len():], nil
}
