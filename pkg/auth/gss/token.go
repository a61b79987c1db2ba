package gss

import (
	"fmt"
)

// krb5OID is the DER encoding of the krb5 mechanism OID 1.2.840.113554.1.2.2,
// including the OID tag and length.
var krb5OID = []byte{0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x02}

// Inner token IDs per RFC 1964 Section 1.1.
const (
	tokenIDAPReq uint16 = 0x0100
	tokenIDAPRep uint16 = 0x0200
)

// unwrapInitToken extracts the raw AP-REQ from a GSS-API initial context
// token.
//
// Initial context tokens (RFC 2743 Section 3.1) have the form
//
//	0x60 [length] 0x06 [OID-length] [OID] [token ID] [inner token]
//
// where the token ID for an AP-REQ is 0x01 0x00. A token that does not start
// with the 0x60 application tag is assumed to be a bare AP-REQ already.
func unwrapInitToken(token []byte) ([]byte, error) {
	if len(token) < 2 {
		return nil, fmt.Errorf("token too short: %d bytes", len(token))
	}
	if token[0] != 0x60 {
		return token, nil
	}

	offset := 1
	length, lenBytes, err := parseLength(token[offset:])
	if err != nil {
		return nil, fmt.Errorf("parse token length: %w", err)
	}
	offset += lenBytes
	if offset+length > len(token) {
		return nil, fmt.Errorf("token truncated: header says %d bytes, have %d", offset+length, len(token))
	}

	if offset >= len(token) || token[offset] != 0x06 {
		return nil, fmt.Errorf("expected OID tag at offset %d", offset)
	}
	offset++
	if offset >= len(token) {
		return nil, fmt.Errorf("truncated OID length")
	}
	oidLen := int(token[offset])
	offset++
	offset += oidLen
	if offset > len(token) {
		return nil, fmt.Errorf("truncated OID")
	}

	if offset+2 > len(token) {
		return nil, fmt.Errorf("truncated token ID")
	}
	tokenID := uint16(token[offset])<<8 | uint16(token[offset+1])
	if tokenID != tokenIDAPReq {
		return nil, fmt.Errorf("unexpected krb5 token ID 0x%04x, want AP-REQ", tokenID)
	}
	offset += 2

	return token[offset:], nil
}

// wrapToken wraps a Kerberos message in a GSS-API mechanism token:
// 0x60 [length] OID [token ID] [inner].
func wrapToken(inner []byte, tokenID uint16) []byte {
	content := make([]byte, 0, len(krb5OID)+2+len(inner))
	content = append(content, krb5OID...)
	content = append(content, byte(tokenID>>8), byte(tokenID&0xff))
	content = append(content, inner...)

	lengthBytes := encodeLength(len(content))

	out := make([]byte, 0, 1+len(lengthBytes)+len(content))
	out = append(out, 0x60)
	out = append(out, lengthBytes...)
	out = append(out, content...)
	return out
}

// encodeLength encodes a DER length field.
func encodeLength(length int) []byte {
	if length < 128 {
		return []byte{byte(length)}
	}
	var b []byte
	for length > 0 {
		b = append([]byte{byte(length & 0xff)}, b...)
		length >>= 8
	}
	return append([]byte{byte(0x80 | len(b))}, b...)
}

// parseLength parses a DER length field, returning the value and the number
// of bytes consumed.
func parseLength(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("empty length field")
	}
	first := data[0]
	if first < 0x80 {
		return int(first), 1, nil
	}
	numBytes := int(first & 0x7f)
	if numBytes == 0 || numBytes > 4 {
		return 0, 0, fmt.Errorf("invalid length of %d bytes", numBytes)
	}
	if 1+numBytes > len(data) {
		return 0, 0, fmt.Errorf("truncated length field")
	}
	length := 0
	for i := 1; i <= numBytes; i++ {
		length = length<<8 | int(data[i])
	}
	return length, 1 + numBytes, nil
}
