package rpc

// RPC Program Numbers
//
// Reference: RFC 5531 Section 9, RFC 1813
const (
	// ProgramNFS is the NFS version 3 program number (RFC 1813)
	ProgramNFS = 100003

	// ProgramMount is the Mount protocol program number (RFC 1813 Appendix I)
	ProgramMount = 100005

	// ProgramYak is the daemon's own protocol service, from the
	// user-defined range 0x20000000-0x3fffffff.
	ProgramYak = 0x20005941
)

// RPCVersion is the only ONC RPC version spoken (RFC 5531).
const RPCVersion = 2

// RPC Message Types
const (
	RPCCall  = 0
	RPCReply = 1
)

// RPC Reply States
const (
	// RPCMsgAccepted: the server recognized the call and attempted it
	RPCMsgAccepted = 0

	// RPCMsgDenied: RPC version mismatch or authentication failure
	RPCMsgDenied = 1
)

// RPC Accept Status
//
// Carried in accepted replies. Reference: RFC 5531 Section 9
const (
	RPCSuccess      = 0
	RPCProgUnavail  = 1
	RPCProgMismatch = 2
	RPCProcUnavail  = 3
	RPCGarbageArgs  = 4
	RPCSystemErr    = 5
)

// RPC Reject Status
//
// Carried in denied replies.
const (
	RPCMismatch  = 0
	RPCAuthError = 1
)

// Authentication Flavors
//
// Reference: RFC 5531 Section 8
const (
	AuthNull  uint32 = 0
	AuthUnix  uint32 = 1
	AuthShort uint32 = 2
	AuthDES   uint32 = 3
)

// Limits applied while parsing untrusted input.
const (
	// MaxRecordSize caps one record (all fragments together).
	MaxRecordSize = 2 << 20

	// maxAuthBody is the RFC 5531 limit for an opaque_auth body.
	maxAuthBody = 400

	maxMachineName = 255
	maxGIDs        = 16

	lastFragment = 0x80000000
)
