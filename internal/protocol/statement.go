package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/kroeg/cellar/internal/codec"
	"github.com/kroeg/cellar/internal/wire"
)

// Statement is a parsed, named prepared statement. It is tied to the
// Connection that parsed it: Bind, and Execute on the resulting
// BoundStatement, always run on that stored Connection.
type Statement struct {
	name string
	conn *Connection
}

// Parse sends Parse+Flush for query and waits for ParseComplete.
func (c *Connection) Parse(query string) (*Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.stream.GenerateName()

	buf := encodeParse(name, query)
	buf = append(buf, wire.Flush...)
	if err := c.stream.WriteData(buf); err != nil {
		return nil, c.poison(fmt.Errorf("protocol: parse %q: %w", name, err))
	}

	for {
		msg, err := c.stream.ReadMessage()
		if err != nil {
			return nil, c.poison(fmt.Errorf("protocol: parse %q: read: %w", name, err))
		}
		switch msg.Type {
		case msgParseComplete:
			return &Statement{name: name, conn: c}, nil
		case msgErrorResponse:
			return nil, ParseErrorResponse(msg.Body)
		default:
			return nil, newProtocolError("unexpected message during Parse: %c", msg.Type)
		}
	}
}

// encodeParse builds a Parse message body: name, query, zero parameter
// type oids.
func encodeParse(name, query string) []byte {
	var header [5]byte
	header[0] = msgParse

	var body []byte
	body = append(body, name...)
	body = append(body, 0)
	body = append(body, query...)
	body = append(body, 0)
	body = binary.BigEndian.AppendUint16(body, 0) // zero parameter types

	binary.BigEndian.PutUint32(header[1:], uint32(len(body)+4))
	return append(header[:], body...)
}

// BoundStatement owns a portal name bound against a specific Statement. It
// is valid only while the owning Connection remains alive.
type BoundStatement struct {
	stmt   *Statement
	portal string
}

// Bind sends Bind+Flush binding params against stmt and waits for
// BindComplete.
func (s *Statement) Bind(params []codec.Serializable) (*BoundStatement, error) {
	c := s.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	portal := c.stream.GenerateName()

	buf := encodeBind(portal, s.name, params)
	buf = append(buf, wire.Flush...)
	if err := c.stream.WriteData(buf); err != nil {
		return nil, c.poison(fmt.Errorf("protocol: bind %q: %w", s.name, err))
	}

	for {
		msg, err := c.stream.ReadMessage()
		if err != nil {
			return nil, c.poison(fmt.Errorf("protocol: bind %q: read: %w", s.name, err))
		}
		switch msg.Type {
		case msgBindComplete:
			return &BoundStatement{stmt: s, portal: portal}, nil
		case msgErrorResponse:
			return nil, ParseErrorResponse(msg.Body)
		default:
			return nil, newProtocolError("unexpected message during Bind: %c", msg.Type)
		}
	}
}

// encodeBind builds a Bind message body with binary formats throughout:
// all parameters binary, one result-format code (binary) applied to all
// result columns.
func encodeBind(portal, statement string, params []codec.Serializable) []byte {
	var header [5]byte
	header[0] = msgBind

	var body []byte
	body = append(body, portal...)
	body = append(body, 0)
	body = append(body, statement...)
	body = append(body, 0)

	body = binary.BigEndian.AppendUint16(body, uint16(len(params)))
	for range params {
		body = binary.BigEndian.AppendUint16(body, 1) // binary format
	}

	body = binary.BigEndian.AppendUint16(body, uint16(len(params)))
	for _, p := range params {
		lenPos := len(body)
		body = binary.BigEndian.AppendUint32(body, 0)
		before := len(body)
		var isNull bool
		body, isNull = p.Serialize(body)
		if isNull {
			binary.BigEndian.PutUint32(body[lenPos:lenPos+4], 0xFFFFFFFF)
			body = body[:before]
		} else {
			binary.BigEndian.PutUint32(body[lenPos:lenPos+4], uint32(len(body)-before))
		}
	}

	body = binary.BigEndian.AppendUint16(body, 1) // one result format code
	body = binary.BigEndian.AppendUint16(body, 1) // binary

	binary.BigEndian.PutUint32(header[1:], uint32(len(body)+4))
	return append(header[:], body...)
}

// Row is one DataRow's fields, deferred-parsed on access.
type Row struct {
	fields [][]byte // nil element means SQL NULL
}

// Get returns column i's raw bytes and whether it was NULL.
func (r Row) Get(i int) (data []byte, isNull bool) {
	if i >= len(r.fields) || r.fields[i] == nil {
		return nil, true
	}
	return r.fields[i], false
}

// Int32 decodes column i as a nullable int4.
func (r Row) Int32(i int) (int32, bool, error) {
	data, isNull := r.Get(i)
	if isNull {
		return 0, true, nil
	}
	v, err := codec.DecodeInt32(data)
	return v, false, err
}

// Text decodes column i as a nullable text value.
func (r Row) Text(i int) (string, bool, error) {
	data, isNull := r.Get(i)
	if isNull {
		return "", true, nil
	}
	v, err := codec.DecodeText(data)
	return v, false, err
}

// BoundQuery is the lazy row stream Execute returns. It holds the
// connection mutex for its entire lifetime.
type BoundQuery struct {
	conn *Connection
	done bool
	err  error
}

// Execute sends Execute(portal, 0)+Flush and returns a row stream that
// holds the connection mutex until the stream finishes draining (done
// automatically once exhausted).
func (b *BoundStatement) Execute() (*BoundQuery, error) {
	c := b.stmt.conn
	c.mu.Lock() // released when the BoundQuery finishes draining

	buf := encodeExecute(b.portal)
	buf = append(buf, wire.Flush...)
	if err := c.stream.WriteData(buf); err != nil {
		c.mu.Unlock()
		return nil, c.poison(fmt.Errorf("protocol: execute %q: %w", b.portal, err))
	}

	return &BoundQuery{conn: c}, nil
}

func encodeExecute(portal string) []byte {
	var header [5]byte
	header[0] = msgExecute

	var body []byte
	body = append(body, portal...)
	body = append(body, 0)
	body = binary.BigEndian.AppendUint32(body, 0) // max rows: all

	binary.BigEndian.PutUint32(header[1:], uint32(len(body)+4))
	return append(header[:], body...)
}

// Next returns the next row, or ok=false once the portal is exhausted (in
// which case err is nil on a clean end and non-nil on a server error). The
// connection mutex is released the moment the stream finishes draining,
// whichever way it ends.
func (q *BoundQuery) Next() (row Row, ok bool, err error) {
	if q.done {
		return Row{}, false, q.err
	}

	for {
		msg, rerr := q.conn.stream.ReadMessage()
		if rerr != nil {
			q.finish(q.conn.poison(fmt.Errorf("protocol: row stream read: %w", rerr)))
			return Row{}, false, q.err
		}

		switch msg.Type {
		case msgDataRow:
			return decodeDataRow(msg.Body), true, nil

		case msgEmptyQueryResp, msgPortalSuspended, msgCommandComplete:
			q.drain(nil)
			return Row{}, false, q.err

		case msgErrorResponse:
			q.drain(ParseErrorResponse(msg.Body))
			return Row{}, false, q.err

		case msgNoticeResponse:
			continue

		default:
			continue
		}
	}
}

// drain sends Sync and reads until ReadyForQuery, then releases the mutex.
func (q *BoundQuery) drain(cause error) {
	if err := q.conn.stream.WriteData(wire.Sync); err != nil {
		q.finish(q.conn.poison(err))
		return
	}

	for {
		msg, err := q.conn.stream.ReadMessage()
		if err != nil {
			q.finish(q.conn.poison(err))
			return
		}
		if msg.Type == msgReadyForQuery {
			break
		}
	}

	q.finish(cause)
}

func (q *BoundQuery) finish(err error) {
	q.done = true
	q.err = err
	q.conn.mu.Unlock()
}

func decodeDataRow(body []byte) Row {
	if len(body) < 2 {
		return Row{}
	}
	n := int(binary.BigEndian.Uint16(body[0:2]))
	fields := make([][]byte, n)
	pos := 2
	for i := 0; i < n; i++ {
		length := int32(binary.BigEndian.Uint32(body[pos : pos+4]))
		pos += 4
		if length < 0 {
			fields[i] = nil
			continue
		}
		fields[i] = body[pos : pos+int(length)]
		pos += int(length)
	}
	return Row{fields: fields}
}

// All drains the stream into a slice, a convenience used throughout the
// higher layers since none of this adapter's queries are large enough to
// warrant manual incremental iteration.
func (q *BoundQuery) All() ([]Row, error) {
	var rows []Row
	for {
		row, ok, err := q.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}
