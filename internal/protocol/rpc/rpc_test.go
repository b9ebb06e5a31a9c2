package rpc

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func testCredentials() *UnixAuth {
	return &UnixAuth{
		Stamp:       12345,
		MachineName: "testhost",
		UID:         1000,
		GID:         1000,
		GIDs:        []uint32{4, 24, 27, 30},
	}
}

// stripRecordMark drops the 4-byte record header of a reply built by the
// Make*Reply helpers and checks that it is a well-formed last fragment.
func stripRecordMark(t *testing.T, b []byte) []byte {
	t.Helper()
	require.GreaterOrEqual(t, len(b), 4)
	mark := binary.BigEndian.Uint32(b)
	assert.NotZero(t, mark&lastFragment, "last fragment bit")
	assert.Equal(t, uint32(len(b)-4), mark&^lastFragment)
	return b[4:]
}

// ============================================================================
// ParseUnixAuth Tests
// ============================================================================

func TestParseUnixAuth(t *testing.T) {
	t.Run("ParsesValidCredentials", func(t *testing.T) {
		original := testCredentials()

		parsed, err := ParseUnixAuth(EncodeUnixAuth(original))
		require.NoError(t, err)
		assert.Equal(t, original, parsed)
	})

	t.Run("ParsesPaddedMachineName", func(t *testing.T) {
		auth := testCredentials()
		auth.MachineName = "host5"

		parsed, err := ParseUnixAuth(EncodeUnixAuth(auth))
		require.NoError(t, err)
		assert.Equal(t, "host5", parsed.MachineName)
		assert.Equal(t, auth.GIDs, parsed.GIDs)
	})

	t.Run("ParsesWithMaximumGroups", func(t *testing.T) {
		auth := testCredentials()
		auth.GIDs = make([]uint32, 16)
		for i := range auth.GIDs {
			auth.GIDs[i] = uint32(i + 1000)
		}

		parsed, err := ParseUnixAuth(EncodeUnixAuth(auth))
		require.NoError(t, err)
		assert.Len(t, parsed.GIDs, 16)
	})

	t.Run("RejectsExcessiveGroups", func(t *testing.T) {
		buf := new(bytes.Buffer)
		_ = binary.Write(buf, binary.BigEndian, uint32(12345))
		_ = binary.Write(buf, binary.BigEndian, uint32(8))
		_, _ = buf.WriteString("testhost")
		_ = binary.Write(buf, binary.BigEndian, uint32(1000))
		_ = binary.Write(buf, binary.BigEndian, uint32(1000))
		_ = binary.Write(buf, binary.BigEndian, uint32(17))

		_, err := ParseUnixAuth(buf.Bytes())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too many gids")
	})

	t.Run("RejectsLongMachineName", func(t *testing.T) {
		buf := new(bytes.Buffer)
		_ = binary.Write(buf, binary.BigEndian, uint32(12345))
		_ = binary.Write(buf, binary.BigEndian, uint32(256))

		_, err := ParseUnixAuth(buf.Bytes())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "machine name too long")
	})

	t.Run("RejectsTruncatedBody", func(t *testing.T) {
		body := EncodeUnixAuth(testCredentials())
		_, err := ParseUnixAuth(body[:len(body)-2])
		assert.Error(t, err)
	})

	t.Run("RejectsEmptyBody", func(t *testing.T) {
		_, err := ParseUnixAuth([]byte{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})
}

func TestUnixAuthString(t *testing.T) {
	str := testCredentials().String()
	assert.Contains(t, str, "testhost")
	assert.Contains(t, str, "1000")
	assert.Contains(t, str, "[4 24 27 30]")
}

func TestAuthFlavors(t *testing.T) {
	assert.Equal(t, uint32(0), AuthNull)
	assert.Equal(t, uint32(1), AuthUnix)
	assert.Equal(t, uint32(2), AuthShort)
	assert.Equal(t, uint32(3), AuthDES)
}

// ============================================================================
// Call / Reply Tests
// ============================================================================

func TestReadCall(t *testing.T) {
	t.Run("SplitsHeaderAndArgs", func(t *testing.T) {
		cred := OpaqueAuth{Flavor: AuthUnix, Body: EncodeUnixAuth(testCredentials())}
		args := []byte{0, 0, 0, 7, 1, 2, 3, 4}

		raw, err := MakeCall(42, ProgramNFS, 3, 1, cred, args)
		require.NoError(t, err)

		call, gotArgs, err := ReadCall(raw)
		require.NoError(t, err)
		assert.Equal(t, uint32(42), call.XID)
		assert.Equal(t, uint32(RPCVersion), call.RPCVersion)
		assert.Equal(t, uint32(ProgramNFS), call.Program)
		assert.Equal(t, uint32(3), call.Version)
		assert.Equal(t, uint32(1), call.Procedure)
		assert.Equal(t, AuthUnix, call.GetAuthFlavor())
		assert.Equal(t, args, gotArgs)

		auth, err := ParseUnixAuth(call.GetAuthBody())
		require.NoError(t, err)
		assert.Equal(t, "testhost", auth.MachineName)
	})

	t.Run("RejectsReplies", func(t *testing.T) {
		reply, err := MakeSuccessReply(1, nil)
		require.NoError(t, err)

		_, _, err = ReadCall(stripRecordMark(t, reply))
		assert.ErrorIs(t, err, ErrNotCall)
	})

	t.Run("RejectsRepliesWithoutReadingBody", func(t *testing.T) {
		record := []byte{0, 0, 0, 9, 0, 0, 0, 1}
		_, _, err := ReadCall(record)
		assert.ErrorIs(t, err, ErrNotCall)
	})

	t.Run("RejectsHugeCredentialLength", func(t *testing.T) {
		record := make([]byte, 32)
		binary.BigEndian.PutUint32(record[0:], 5)
		binary.BigEndian.PutUint32(record[8:], RPCVersion)
		binary.BigEndian.PutUint32(record[12:], ProgramYak)
		binary.BigEndian.PutUint32(record[16:], 1)
		binary.BigEndian.PutUint32(record[24:], AuthUnix)
		binary.BigEndian.PutUint32(record[28:], 0x7fffffff)

		_, _, err := ReadCall(record)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotCall)
	})

	t.Run("RejectsCredentialOverAuthLimit", func(t *testing.T) {
		cred := OpaqueAuth{Flavor: AuthUnix, Body: make([]byte, maxAuthBody+4)}
		raw, err := MakeCall(3, ProgramYak, 1, 0, cred, nil)
		require.NoError(t, err)

		_, _, err = ReadCall(raw)
		assert.Error(t, err)
	})

	t.Run("RejectsTruncatedHeader", func(t *testing.T) {
		raw, err := MakeCall(1, ProgramYak, 1, 0, OpaqueAuth{}, nil)
		require.NoError(t, err)

		_, _, err = ReadCall(raw[:10])
		assert.Error(t, err)

		xid, ok := ReadXID(raw[:10])
		assert.True(t, ok)
		assert.Equal(t, uint32(1), xid)
	})
}

func TestReplies(t *testing.T) {
	t.Run("SuccessCarriesResults", func(t *testing.T) {
		results := []byte{0, 0, 0, 0, 0xca, 0xfe, 0xba, 0xbe}
		reply, err := MakeSuccessReply(7, results)
		require.NoError(t, err)

		xid, body, err := ReadReply(stripRecordMark(t, reply))
		require.NoError(t, err)
		assert.Equal(t, uint32(7), xid)
		assert.Equal(t, results, body)
	})

	t.Run("ErrorStatuses", func(t *testing.T) {
		for _, stat := range []uint32{RPCProgUnavail, RPCProcUnavail, RPCGarbageArgs, RPCSystemErr} {
			reply, err := MakeErrorReply(9, stat)
			require.NoError(t, err)

			xid, _, err := ReadReply(stripRecordMark(t, reply))
			assert.Equal(t, uint32(9), xid)

			var acceptErr *AcceptError
			require.ErrorAs(t, err, &acceptErr)
			assert.Equal(t, stat, acceptErr.Stat)
		}
	})

	t.Run("ProgMismatchCarriesRange", func(t *testing.T) {
		reply, err := MakeProgMismatchReply(3, 3, 3)
		require.NoError(t, err)

		body := stripRecordMark(t, reply)
		// xid, msg_type, reply_stat, verf flavor, verf len, accept_stat, low, high
		require.Len(t, body, 32)
		assert.Equal(t, uint32(RPCProgMismatch), binary.BigEndian.Uint32(body[20:]))
		assert.Equal(t, uint32(3), binary.BigEndian.Uint32(body[24:]))
		assert.Equal(t, uint32(3), binary.BigEndian.Uint32(body[28:]))
	})

	t.Run("RPCMismatchIsDenied", func(t *testing.T) {
		reply, err := MakeRPCMismatchReply(5)
		require.NoError(t, err)

		body := stripRecordMark(t, reply)
		assert.Equal(t, uint32(RPCMsgDenied), binary.BigEndian.Uint32(body[8:]))

		_, _, err = ReadReply(body)
		assert.Error(t, err)
	})
}

// ============================================================================
// Record Marking Tests
// ============================================================================

func TestRecords(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteRecord(&buf, []byte("hello")))
		require.NoError(t, WriteRecord(&buf, []byte{}))

		got, err := ReadRecord(&buf, MaxRecordSize)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), got)

		got, err = ReadRecord(&buf, MaxRecordSize)
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = ReadRecord(&buf, MaxRecordSize)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("JoinsFragments", func(t *testing.T) {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.BigEndian, uint32(3))
		buf.WriteString("abc")
		_ = binary.Write(&buf, binary.BigEndian, uint32(lastFragment|2))
		buf.WriteString("de")

		got, err := ReadRecord(&buf, MaxRecordSize)
		require.NoError(t, err)
		assert.Equal(t, []byte("abcde"), got)
	})

	t.Run("RejectsOversizedRecord", func(t *testing.T) {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.BigEndian, uint32(lastFragment|1024))

		_, err := ReadRecord(&buf, 512)
		assert.Error(t, err)
	})

	t.Run("RejectsShortFragment", func(t *testing.T) {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.BigEndian, uint32(lastFragment|8))
		buf.WriteString("abc")

		_, err := ReadRecord(&buf, MaxRecordSize)
		assert.Error(t, err)
	})
}

func TestXdrPadding(t *testing.T) {
	for length, want := range map[uint32]uint32{0: 0, 1: 3, 2: 2, 3: 1, 4: 0, 5: 3} {
		assert.Equal(t, want, XdrPadding(length), "length %d", length)
	}
}
