package rpc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// RPCCallMessage is the header of every RPC call. Procedure arguments follow
// it in the same record.
//
// Wire Format (XDR):
//
//	xid, msg_type(0), rpcvers(2), prog, vers, proc, cred, verf, args...
type RPCCallMessage struct {
	XID        uint32
	MsgType    uint32
	RPCVersion uint32
	Program    uint32
	Version    uint32
	Procedure  uint32

	// Cred carries the client's credentials. AUTH_UNIX bodies are parsed
	// with ParseUnixAuth; they are logged, never enforced.
	Cred OpaqueAuth
	Verf OpaqueAuth
}

// RPCReplyMessage is the header of an accepted reply. Results follow it
// only when AcceptStat is RPCSuccess.
type RPCReplyMessage struct {
	XID        uint32
	MsgType    uint32
	ReplyState uint32
	Verf       OpaqueAuth
	AcceptStat uint32
}

// OpaqueAuth is an authentication credential or verifier.
type OpaqueAuth struct {
	Flavor uint32
	Body   []byte
}

// mismatchInfo follows PROG_MISMATCH and RPC_MISMATCH replies.
type mismatchInfo struct {
	Low  uint32
	High uint32
}

func (c *RPCCallMessage) GetAuthFlavor() uint32 {
	return c.Cred.Flavor
}

func (c *RPCCallMessage) GetAuthBody() []byte {
	return c.Cred.Body
}

// UnixAuth is the AUTH_UNIX credential body (RFC 5531 Appendix A).
type UnixAuth struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

func (a *UnixAuth) String() string {
	return fmt.Sprintf("UnixAuth{machine=%s uid=%d gid=%d gids=%v}", a.MachineName, a.UID, a.GID, a.GIDs)
}

// ParseUnixAuth decodes an AUTH_UNIX credential body.
func ParseUnixAuth(body []byte) (*UnixAuth, error) {
	if len(body) == 0 {
		return nil, errors.New("empty auth body")
	}

	r := bytes.NewReader(body)
	auth := &UnixAuth{}

	if err := binary.Read(r, binary.BigEndian, &auth.Stamp); err != nil {
		return nil, fmt.Errorf("read stamp: %w", err)
	}

	var nameLen uint32
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("read machine name length: %w", err)
	}
	if nameLen > maxMachineName {
		return nil, fmt.Errorf("machine name too long: %d bytes", nameLen)
	}
	name := make([]byte, nameLen+XdrPadding(nameLen))
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("read machine name: %w", err)
	}
	auth.MachineName = string(name[:nameLen])

	if err := binary.Read(r, binary.BigEndian, &auth.UID); err != nil {
		return nil, fmt.Errorf("read uid: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &auth.GID); err != nil {
		return nil, fmt.Errorf("read gid: %w", err)
	}

	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("read gid count: %w", err)
	}
	if count > maxGIDs {
		return nil, fmt.Errorf("too many gids: %d (max %d)", count, maxGIDs)
	}
	auth.GIDs = make([]uint32, count)
	if err := binary.Read(r, binary.BigEndian, auth.GIDs); err != nil {
		return nil, fmt.Errorf("read gids: %w", err)
	}

	return auth, nil
}

// EncodeUnixAuth is the inverse of ParseUnixAuth, used by the client.
func EncodeUnixAuth(a *UnixAuth) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, a.Stamp)
	nameLen := uint32(len(a.MachineName))
	_ = binary.Write(&buf, binary.BigEndian, nameLen)
	buf.WriteString(a.MachineName)
	buf.Write(make([]byte, XdrPadding(nameLen)))
	_ = binary.Write(&buf, binary.BigEndian, a.UID)
	_ = binary.Write(&buf, binary.BigEndian, a.GID)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(a.GIDs)))
	_ = binary.Write(&buf, binary.BigEndian, a.GIDs)
	return buf.Bytes()
}
