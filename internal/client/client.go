// Package client implements the player-side connection manager: one
// logical websocket per client process, an explicit connection state
// machine, bounded reconnect with jittered backoff, and a bounded
// outbound queue flushed on reconnect. Commands are delivered exactly
// once while the connection is open; while it is down they queue up
// instead of silently disappearing.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/websocket"

	"bullscows-server/internal/game"
)

type State string

const (
	StateIdle               State = "idle"
	StateConnecting         State = "connecting"
	StateOpen               State = "open"
	StateClosedPendingRetry State = "closed_pending_retry"
)

var (
	ErrQueueFull = errors.New("QUEUE_FULL: Outbound queue is full")
	ErrClosed    = errors.New("CLIENT_CLOSED: Client has been closed")
)

// Snapshot is the last authoritative state push, cached verbatim.
type Snapshot struct {
	Game     *game.Game
	PlayerID string
	Role     string
}

// Handlers receive pushes from the authority. All callbacks run on the
// read loop goroutine; nil handlers are skipped.
type Handlers struct {
	OnState    func(Snapshot)
	OnError    func(message string)
	OnRedirect func(path string)
	OnPoke     func(from string)
	OnSession  func(token string)

	// OnGiveUp fires when the retry budget is exhausted.
	OnGiveUp func(lastErr error)
}

type Config struct {
	URL string

	// Backoff between reconnect attempts: starts at InitialBackoff,
	// doubles up to MaxBackoff, with up to 20% jitter on every wait.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxRetries bounds consecutive failed attempts before the client
	// gives up and returns to idle. Zero means the default.
	MaxRetries int

	// QueueSize bounds commands buffered while disconnected.
	QueueSize int
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 15 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	return cfg
}

type Client struct {
	cfg      Config
	handlers Handlers

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	queue    [][]byte
	snapshot *Snapshot
	closed   bool
	cancel   context.CancelFunc

	lastPoke time.Time
}

func New(cfg Config, handlers Handlers) *Client {
	return &Client{
		cfg:      cfg.withDefaults(),
		handlers: handlers,
		state:    StateIdle,
	}
}

// Connect starts the connection loop. Concurrent and repeated calls
// are idempotent: a client that is already connecting or open ignores
// them.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Close is the user-cancel escape hatch: it stops reconnecting, closes
// any open socket and drops queued commands.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.state = StateIdle
	c.queue = nil
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close(websocket.StatusNormalClosure, "Client closing")
		c.conn = nil
	}
	return nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastSnapshot returns the cached copy of the most recent state push.
func (c *Client) LastSnapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return Snapshot{}, false
	}
	return *c.snapshot, true
}

// run owns the socket lifecycle: dial, flush the queue, read until the
// connection drops, back off, repeat until the retry budget runs out.
func (c *Client) run(ctx context.Context) {
	attempts := 0
	backoff := c.cfg.InitialBackoff
	var lastErr error

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			lastErr = err
			attempts++
			if attempts >= c.cfg.MaxRetries {
				c.giveUp(lastErr)
				return
			}

			c.setState(StateClosedPendingRetry)
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitter(backoff)):
			}
			backoff = min(backoff*2, c.cfg.MaxBackoff)
			continue
		}

		// Connected: reset the budget and deliver whatever queued up
		// while we were down.
		attempts = 0
		backoff = c.cfg.InitialBackoff
		c.attach(conn)
		c.flushQueue(ctx)

		err = c.readLoop(ctx, conn)
		c.detach(conn)
		if ctx.Err() != nil {
			return
		}
		lastErr = err
		log.Printf("Connection lost: %v", err)
		c.setState(StateClosedPendingRetry)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	c.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	if !c.closed {
		c.state = state
	}
	c.mu.Unlock()
}

func (c *Client) giveUp(lastErr error) {
	c.setState(StateIdle)
	if c.handlers.OnGiveUp != nil {
		c.handlers.OnGiveUp(lastErr)
	}
}

// flushQueue sends commands buffered while disconnected, in order.
func (c *Client) flushQueue(ctx context.Context) {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 || c.conn == nil {
			c.mu.Unlock()
			return
		}
		data := c.queue[0]
		c.queue = c.queue[1:]
		conn := c.conn
		c.mu.Unlock()

		if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
			log.Printf("Failed to flush queued command: %v", err)
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var msg struct {
		Type     string          `json:"type"`
		Payload  json.RawMessage `json:"payload"`
		PlayerID string          `json:"playerId"`
		Role     string          `json:"role"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Invalid message from server: %v", err)
		return
	}

	switch msg.Type {
	case "state":
		var g game.Game
		if err := json.Unmarshal(msg.Payload, &g); err != nil {
			log.Printf("Invalid state payload: %v", err)
			return
		}
		snapshot := Snapshot{Game: &g, PlayerID: msg.PlayerID, Role: msg.Role}
		c.mu.Lock()
		c.snapshot = &snapshot
		c.mu.Unlock()
		if c.handlers.OnState != nil {
			c.handlers.OnState(snapshot)
		}

	case "error":
		var message string
		if err := json.Unmarshal(msg.Payload, &message); err != nil {
			return
		}
		if c.handlers.OnError != nil {
			c.handlers.OnError(message)
		}

	case "redirect":
		var path string
		if err := json.Unmarshal(msg.Payload, &path); err != nil {
			return
		}
		if c.handlers.OnRedirect != nil {
			c.handlers.OnRedirect(path)
		}

	case "poke":
		var poke struct {
			From string `json:"from"`
		}
		if err := json.Unmarshal(msg.Payload, &poke); err != nil {
			return
		}
		if c.handlers.OnPoke != nil {
			c.handlers.OnPoke(poke.From)
		}

	case "session":
		var session struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(msg.Payload, &session); err != nil {
			return
		}
		if c.handlers.OnSession != nil {
			c.handlers.OnSession(session.Token)
		}

	case "pong":
		// Keepalive reply, nothing to do.
	}
}

func jitter(d time.Duration) time.Duration {
	// Up to 20% extra so reconnect storms spread out.
	return d + time.Duration(rand.Int63n(int64(d)/5+1))
}
