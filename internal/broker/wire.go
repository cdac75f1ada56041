// Package broker implements the C1 broker client: a TCP session to a
// gateway speaking a small length-prefixed, NUL-delimited wire protocol
// modeled on the Interactive Brokers API framing (4-byte big-endian
// length prefix, then NUL-separated string fields).
package broker

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// encodeFrame joins fields with NUL separators and prefixes the result
// with its 4-byte big-endian length, the framing the gateway expects.
func encodeFrame(fields ...string) []byte {
	body := []byte(joinNUL(fields))
	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

func joinNUL(fields []string) string {
	var buf bytes.Buffer
	for _, f := range fields {
		buf.WriteString(f)
		buf.WriteByte(0)
	}
	return buf.String()
}

// readFrame reads one length-prefixed frame from r and splits it into
// NUL-separated fields, dropping the trailing empty field left by the
// terminating NUL.
func readFrame(r io.Reader) ([]string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size == 0 {
		return nil, nil
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	fields := bytes.Split(body, []byte{0})
	if len(fields) > 0 && len(fields[len(fields)-1]) == 0 {
		fields = fields[:len(fields)-1]
	}
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out, nil
}

func atoiOr(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
