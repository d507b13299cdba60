package cache_test

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/kroeg/cellar/internal/cache"
	"github.com/kroeg/cellar/internal/protocol"
	"github.com/kroeg/cellar/internal/statements"
	"github.com/kroeg/cellar/internal/wire"
)

// fakeServer drives the backend side of the loopback connection under
// test, mirroring the harness in internal/protocol's own tests.
type fakeServer struct {
	conn   net.Conn
	reader *wire.Reader
}

func newFakeServer(conn net.Conn) *fakeServer {
	return &fakeServer{conn: conn, reader: wire.NewReader(conn)}
}

func (f *fakeServer) readStartup() {
	var lenBuf [4]byte
	io.ReadFull(f.conn, lenBuf[:])
	length := binary.BigEndian.Uint32(lenBuf[:])
	rest := make([]byte, length-4)
	io.ReadFull(f.conn, rest)
}

func (f *fakeServer) readMessage() wire.Message {
	msg, err := f.reader.Next()
	if err != nil {
		panic(err)
	}
	return msg
}

func (f *fakeServer) send(typ byte, body []byte) {
	if err := wire.WriteMessage(f.conn, typ, body); err != nil {
		panic(err)
	}
}

func (f *fakeServer) sendAuthOK()        { f.send('R', []byte{0, 0, 0, 0}) }
func (f *fakeServer) sendReadyForQuery() { f.send('Z', []byte{'I'}) }

func sendDataRow(fs *fakeServer, cols ...[]byte) {
	var body []byte
	body = binary.BigEndian.AppendUint16(body, uint16(len(cols)))
	for _, c := range cols {
		if c == nil {
			body = binary.BigEndian.AppendUint32(body, 0xFFFFFFFF)
			continue
		}
		body = binary.BigEndian.AppendUint32(body, uint32(len(c)))
		body = append(body, c...)
	}
	fs.send('D', body)
}

func int32Bytes(v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

// newTestRegistry brings up a real protocol.Connection against a loopback
// listener, drains the 14-statement Prepare sequence, and returns the
// ready Registry alongside the fakeServer for further message-level
// scripting.
func newTestRegistry(t *testing.T) (*statements.Registry, *fakeServer) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	type connResult struct {
		conn *protocol.Connection
		err  error
	}
	connCh := make(chan connResult, 1)
	go func() {
		c, err := protocol.Connect(context.Background(), protocol.Config{
			Address:  ln.Addr().String(),
			User:     "cellar",
			Database: "cellar",
			Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		connCh <- connResult{c, err}
	}()

	serverConn, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	t.Cleanup(func() { serverConn.Close() })
	fs := newFakeServer(serverConn)

	fs.readStartup()
	fs.sendAuthOK()
	fs.sendReadyForQuery()

	var cr connResult
	select {
	case cr = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Connect")
	}
	if cr.err != nil {
		t.Fatalf("Connect: %v", cr.err)
	}

	type regResult struct {
		reg *statements.Registry
		err error
	}
	regCh := make(chan regResult, 1)
	go func() {
		reg, err := statements.Prepare(cr.conn)
		regCh <- regResult{reg, err}
	}()

	for i := 0; i < 14; i++ {
		msg := fs.readMessage()
		if msg.Type != 'P' {
			t.Fatalf("expected Parse, got %c", msg.Type)
		}
		flush := fs.readMessage()
		if flush.Type != 'H' {
			t.Fatalf("expected Flush after Parse, got %c", flush.Type)
		}
		fs.send('1', nil)
	}

	var rr regResult
	select {
	case rr = <-regCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out preparing statements")
	}
	if rr.err != nil {
		t.Fatalf("Prepare: %v", rr.err)
	}

	return rr.reg, fs
}

func TestCacheURIs_UpsertsMissingAndPopulatesBothDirections(t *testing.T) {
	reg, fs := newTestRegistry(t)
	c := cache.New()

	done := make(chan error, 1)
	go func() {
		done <- c.CacheURIs(reg, []string{"http://a", "http://b"})
	}()

	msg := fs.readMessage()
	if msg.Type != 'B' {
		t.Fatalf("expected Bind, got %c", msg.Type)
	}
	flush := fs.readMessage()
	if flush.Type != 'H' {
		t.Fatalf("expected Flush after Bind, got %c", flush.Type)
	}
	fs.send('2', nil)

	msg = fs.readMessage()
	if msg.Type != 'E' {
		t.Fatalf("expected Execute, got %c", msg.Type)
	}
	flush = fs.readMessage()
	if flush.Type != 'H' {
		t.Fatalf("expected Flush after Execute, got %c", flush.Type)
	}

	sendDataRow(fs, int32Bytes(1), []byte("http://a"))
	sendDataRow(fs, int32Bytes(2), []byte("http://b"))
	fs.send('C', []byte("INSERT 0 2\x00"))

	sync := fs.readMessage()
	if sync.Type != 'S' {
		t.Fatalf("expected Sync, got %c", sync.Type)
	}
	fs.sendReadyForQuery()

	if err := <-done; err != nil {
		t.Fatalf("CacheURIs: %v", err)
	}

	if id, ok := c.ID("http://a"); !ok || id != 1 {
		t.Errorf("ID(http://a) = %d, %v", id, ok)
	}
	if id, ok := c.ID("http://b"); !ok || id != 2 {
		t.Errorf("ID(http://b) = %d, %v", id, ok)
	}
	if uri, ok := c.URI(1); !ok || uri != "http://a" {
		t.Errorf("URI(1) = %q, %v", uri, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCacheURIs_AlreadyCached_SkipsRoundTrip(t *testing.T) {
	reg, fs := newTestRegistry(t)
	c := cache.New()

	done := make(chan error, 1)
	go func() {
		done <- c.CacheURIs(reg, []string{"http://a"})
	}()

	msg := fs.readMessage()
	if msg.Type != 'B' {
		t.Fatalf("expected Bind, got %c", msg.Type)
	}
	fs.readMessage() // Flush
	fs.send('2', nil)
	fs.readMessage() // Execute
	fs.readMessage() // Flush
	sendDataRow(fs, int32Bytes(1), []byte("http://a"))
	fs.send('C', []byte("INSERT 0 1\x00"))
	fs.readMessage() // Sync
	fs.sendReadyForQuery()
	if err := <-done; err != nil {
		t.Fatalf("CacheURIs: %v", err)
	}

	// Second call asks only for an already-cached uri; it must return
	// without touching the connection at all.
	if err := c.CacheURIs(reg, []string{"http://a"}); err != nil {
		t.Fatalf("CacheURIs (cached): %v", err)
	}
}

func TestCacheIDs_ResolvesMissingIDs(t *testing.T) {
	reg, fs := newTestRegistry(t)
	c := cache.New()

	done := make(chan error, 1)
	go func() {
		done <- c.CacheIDs(reg, []int32{5, 6})
	}()

	msg := fs.readMessage()
	if msg.Type != 'B' {
		t.Fatalf("expected Bind, got %c", msg.Type)
	}
	fs.readMessage() // Flush
	fs.send('2', nil)
	fs.readMessage() // Execute
	fs.readMessage() // Flush
	sendDataRow(fs, int32Bytes(5), []byte("http://five"))
	sendDataRow(fs, int32Bytes(6), []byte("http://six"))
	fs.send('C', []byte("SELECT 2\x00"))
	fs.readMessage() // Sync
	fs.sendReadyForQuery()

	if err := <-done; err != nil {
		t.Fatalf("CacheIDs: %v", err)
	}

	if uri, ok := c.URI(5); !ok || uri != "http://five" {
		t.Errorf("URI(5) = %q, %v", uri, ok)
	}
	if id, ok := c.ID("http://six"); !ok || id != 6 {
		t.Errorf("ID(http://six) = %d, %v", id, ok)
	}
}

func TestCacheIDs_Empty_NoRoundTrip(t *testing.T) {
	reg, _ := newTestRegistry(t)
	c := cache.New()
	if err := c.CacheIDs(reg, nil); err != nil {
		t.Fatalf("CacheIDs(nil): %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}
