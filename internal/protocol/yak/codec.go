package yak

import (
	"bytes"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// StatusError is a non-OK reply seen by a client.
type StatusError struct {
	Status  Status
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return e.Status.String()
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// Encode marshals v as XDR.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// decodeLimited unmarshals from r. No count or length in the message may
// exceed the bytes received, which bounds what a forged count allocates.
func decodeLimited(r *bytes.Reader, v any) (int, error) {
	return xdr.UnmarshalLimited(r, v, uint(r.Len()))
}

// Decode unmarshals data into v. Trailing bytes are an error.
func Decode(data []byte, v any) error {
	n, err := decodeLimited(bytes.NewReader(data), v)
	if err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	if n != len(data) {
		return fmt.Errorf("unmarshal %T: %d trailing bytes", v, len(data)-n)
	}
	return nil
}

// EncodeReply builds a reply body. result is only encoded for StatusOK and
// may be nil for procedures without a result.
func EncodeReply(status Status, message string, result any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &ReplyHeader{Status: status, Message: message}); err != nil {
		return nil, fmt.Errorf("marshal reply header: %w", err)
	}
	if status == StatusOK && result != nil {
		if _, err := xdr.Marshal(&buf, result); err != nil {
			return nil, fmt.Errorf("marshal %T: %w", result, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeReply reads a reply body into result, which may be nil. A non-OK
// header is returned as *StatusError.
func DecodeReply(data []byte, result any) error {
	r := bytes.NewReader(data)
	var header ReplyHeader
	if _, err := decodeLimited(r, &header); err != nil {
		return fmt.Errorf("unmarshal reply header: %w", err)
	}
	if header.Status != StatusOK {
		return &StatusError{Status: header.Status, Message: header.Message}
	}
	if result == nil {
		return nil
	}
	if _, err := decodeLimited(r, result); err != nil {
		return fmt.Errorf("unmarshal %T: %w", result, err)
	}
	if r.Len() != 0 {
		return fmt.Errorf("unmarshal %T: %d trailing bytes", result, r.Len())
	}
	return nil
}
