// Package protocol implements the extended query protocol state machine on
// top of internal/wire's framing: startup, authentication, prepared
// statements, portals, and row streaming, all serialised behind a single
// connection-wide mutex.
package protocol

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kroeg/cellar/internal/wire"
)

const protocolVersion3 = 0x00030000

// Backend message type bytes this client understands.
const (
	msgAuthentication   = 'R'
	msgBackendKeyData   = 'K'
	msgParameterStatus  = 'S'
	msgReadyForQuery    = 'Z'
	msgErrorResponse    = 'E'
	msgNoticeResponse   = 'N'
	msgParseComplete    = '1'
	msgBindComplete     = '2'
	msgRowDescription   = 'T'
	msgDataRow          = 'D'
	msgCommandComplete  = 'C'
	msgEmptyQueryResp   = 'I'
	msgPortalSuspended  = 's'
)

// Frontend message type bytes this client sends.
const (
	msgPasswordMessage = 'p'
	msgParse           = 'P'
	msgBind            = 'B'
	msgExecute         = 'E'
)

// Connection owns a single wire stream, the per-connection mutex that
// serialises every read/write, and connection-lifetime state (backend key
// data, parameter status, portal name counter).
type Connection struct {
	ID   uuid.UUID
	conn net.Conn
	stream *wire.Stream
	mu   sync.Mutex
	log  *slog.Logger

	processID  int32
	secretKey  int32
	parameters map[string]string

	alive atomic.Bool
}

// Config carries the parameters needed to open and authenticate a
// Connection.
type Config struct {
	Address  string
	User     string
	Password string
	Database string
	Logger   *slog.Logger
}

// Connect dials address, completes the startup/authentication/
// initialisation sequence, and returns a ready Connection.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("protocol: dial %s: %w", cfg.Address, err)
	}

	c := &Connection{
		ID:         uuid.New(),
		conn:       nc,
		stream:     wire.NewStream(nc, nc),
		log:        logger,
		parameters: make(map[string]string),
	}
	c.alive.Store(true)

	if err := c.startup(cfg.User, cfg.Password, cfg.Database); err != nil {
		_ = nc.Close()
		return nil, err
	}

	c.log.Info("protocol: connection established", "conn_id", c.ID, "address", cfg.Address)
	return c, nil
}

// Alive reports whether the connection is still usable. It becomes false
// permanently once Close or poison runs.
func (c *Connection) Alive() bool {
	return c.alive.Load()
}

// Close terminates the underlying connection. It is not safe to use the
// Connection afterward.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive.Store(false)
	return c.conn.Close()
}

// poison marks the connection unusable after a transport or protocol
// failure that leaves the wire in an inconsistent state, Callers may already hold c.mu, so this must never lock
// it.
func (c *Connection) poison(cause error) error {
	c.alive.Store(false)
	c.log.Warn("protocol: connection poisoned", "conn_id", c.ID, "cause", cause)
	return cause
}

// startup drives the startup message, authentication state machine, and
// initialisation phase.
func (c *Connection) startup(user, password, database string) error {
	if err := wire.WriteStartupMessage(c.conn, protocolVersion3, map[string]string{
		"user":     user,
		"database": database,
	}); err != nil {
		return c.poison(fmt.Errorf("protocol: send startup message: %w", err))
	}

	if err := c.authenticate(user, password); err != nil {
		return c.poison(err)
	}

	if err := c.initialize(); err != nil {
		return c.poison(err)
	}
	return nil
}

func (c *Connection) authenticate(user, password string) error {
	for {
		msg, err := c.stream.ReadMessage()
		if err != nil {
			return fmt.Errorf("protocol: read during authentication: %w", err)
		}

		switch msg.Type {
		case msgErrorResponse:
			return ParseErrorResponse(msg.Body)

		case msgAuthentication:
			if len(msg.Body) < 4 {
				return newProtocolError("truncated authentication message")
			}
			code := binary.BigEndian.Uint32(msg.Body[0:4])
			switch code {
			case 0: // AuthenticationOk
				return nil
			case 3: // AuthenticationCleartextPassword
				if err := c.sendPassword(password); err != nil {
					return err
				}
			case 5: // AuthenticationMD5Password
				if len(msg.Body) < 8 {
					return newProtocolError("truncated MD5 authentication message")
				}
				var salt [4]byte
				copy(salt[:], msg.Body[4:8])
				hash := wire.MD5Password(user, password, salt)
				if err := c.sendPassword(hash); err != nil {
					return err
				}
			default:
				return newProtocolError("unsupported authentication method")
			}

		default:
			return newProtocolError("unexpected message at this time: %c", msg.Type)
		}
	}
}

func (c *Connection) sendPassword(payload string) error {
	body := append([]byte(payload), 0)
	return wire.WriteMessage(c.conn, msgPasswordMessage, body)
}

func (c *Connection) initialize() error {
	for {
		msg, err := c.stream.ReadMessage()
		if err != nil {
			return fmt.Errorf("protocol: read during initialization: %w", err)
		}

		switch msg.Type {
		case msgBackendKeyData:
			c.processID, c.secretKey = decodeCancelKeyData(msg.Body)

		case msgParameterStatus:
			name, rest := splitCString(msg.Body)
			value, _ := splitCString(rest)
			c.parameters[name] = value

		case msgErrorResponse:
			return ParseErrorResponse(msg.Body)

		case msgNoticeResponse:
			// ignored

		case msgReadyForQuery:
			return nil

		default:
			return newProtocolError("unexpected message at this time: %c", msg.Type)
		}
	}
}

func splitCString(b []byte) (string, []byte) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), b[i+1:]
		}
	}
	return string(b), nil
}
