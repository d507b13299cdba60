// Package wire implements the low-level framing of the database's extended
// query protocol: length-prefixed message reads and writes over a byte
// stream, the Flush/Sync control bytes, and MD5 password hashing.
//
// Nothing in this package understands what a message *means*; that is
// internal/protocol's job. wire only knows how to cut the stream into
// messages and put messages back onto the stream.
package wire

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

// minReadChunk is the minimum number of bytes requested from the
// underlying stream on each fill, per the framing rule that reads are
// buffered in chunks of at least 1KiB.
const minReadChunk = 1024

// Flush is the five-byte Flush message the client sends after Parse, Bind,
// and Execute to request the server flush its output without ending the
// extended-query pipeline.
var Flush = []byte{'H', 0x00, 0x00, 0x00, 0x04}

// Sync is the five-byte Sync message the client sends to end a pipeline
// and return the connection to the ready-for-query state.
var Sync = []byte{'S', 0x00, 0x00, 0x00, 0x04}

// Message is one frame read off the wire: a one-byte type identifier and
// its body (the length prefix itself is not retained).
type Message struct {
	Type byte
	Body []byte
}

// Reader incrementally parses frames out of an underlying stream. It owns a
// growable buffer; each Message.Body it returns is a fresh copy, so callers
// may retain it past the next call to Next.
type Reader struct {
	src io.Reader
	buf bytes.Buffer
	tmp []byte
}

// NewReader wraps src in a frame Reader.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src, tmp: make([]byte, minReadChunk)}
}

// Next returns the next complete message, filling from the underlying
// stream in ≥1KiB chunks until one is available.
func (r *Reader) Next() (Message, error) {
	for {
		if msg, ok, err := r.tryParse(); err != nil {
			return Message{}, err
		} else if ok {
			return msg, nil
		}

		n, err := r.src.Read(r.tmp)
		if n > 0 {
			r.buf.Write(r.tmp[:n])
		}
		if err != nil {
			return Message{}, err
		}
	}
}

// tryParse attempts to pull one full message out of the buffered bytes
// without touching the underlying stream.
func (r *Reader) tryParse() (Message, bool, error) {
	data := r.buf.Bytes()
	if len(data) < 5 {
		return Message{}, false, nil
	}

	typ := data[0]
	length := binary.BigEndian.Uint32(data[1:5])
	if length < 4 {
		return Message{}, false, fmt.Errorf("wire: invalid message length %d", length)
	}
	bodySize := int(length) - 4
	total := 5 + bodySize
	if len(data) < total {
		return Message{}, false, nil
	}

	body := make([]byte, bodySize)
	copy(body, data[5:total])
	r.buf.Next(total)

	return Message{Type: typ, Body: body}, true, nil
}

// WriteMessage frames identifier+body and writes it to dst in one call.
func WriteMessage(dst io.Writer, identifier byte, body []byte) error {
	var header [5]byte
	header[0] = identifier
	binary.BigEndian.PutUint32(header[1:], uint32(len(body)+4))

	if _, err := dst.Write(header[:]); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := dst.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// WriteStartupMessage frames the untyped (no leading type byte) startup
// packet: a protocol version number followed by null-terminated
// key/value pairs and a final empty string.
func WriteStartupMessage(dst io.Writer, protocolVersion int32, params map[string]string) error {
	var buf bytes.Buffer
	var ver [4]byte
	binary.BigEndian.PutUint32(ver[:], uint32(protocolVersion))
	buf.Write(ver[:])
	for k, v := range params {
		buf.WriteString(k)
		buf.WriteByte(0)
		buf.WriteString(v)
		buf.WriteByte(0)
	}
	buf.WriteByte(0)

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(buf.Len()+4))
	if _, err := dst.Write(header[:]); err != nil {
		return err
	}
	_, err := dst.Write(buf.Bytes())
	return err
}

// MD5Password computes the `"md5" + hex(md5(hex(md5(password+user)) + salt))`
// challenge response required by AuthenticationMD5Password.
func MD5Password(user, password string, salt [4]byte) string {
	inner := hexMD5(password + user)
	outer := hexMD5(inner + string(salt[:]))
	return "md5" + outer
}

func hexMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
