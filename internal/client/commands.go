package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
)

type clientMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// send delivers a command on the open socket, or queues it when the
// connection is down so the flush on reconnect can deliver it. A full
// queue rejects the command instead of dropping an older one.
func (c *Client) send(ctx context.Context, msgType string, payload interface{}) error {
	data, err := json.Marshal(clientMessage{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if c.conn == nil {
		if len(c.queue) >= c.cfg.QueueSize {
			c.mu.Unlock()
			return ErrQueueFull
		}
		c.queue = append(c.queue, data)
		c.mu.Unlock()
		return nil
	}

	conn := c.conn
	c.mu.Unlock()

	return conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, "ping", nil)
}

func (c *Client) CreateRoom(ctx context.Context, name string) error {
	return c.send(ctx, "create_room", map[string]string{"name": name})
}

func (c *Client) JoinRoom(ctx context.Context, name, code string) error {
	return c.send(ctx, "join_room", map[string]string{"name": name, "code": code})
}

func (c *Client) Spectate(ctx context.Context, code string) error {
	return c.send(ctx, "spectate", map[string]string{"code": code})
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.send(ctx, "leave_room", map[string]string{"room_id": roomID})
}

func (c *Client) SetSecret(ctx context.Context, code string) error {
	return c.send(ctx, "secret", map[string]string{"data": code})
}

func (c *Client) SubmitGuess(ctx context.Context, code string) error {
	return c.send(ctx, "submit_guess", map[string]string{"data": code})
}

func (c *Client) Restart(ctx context.Context) error {
	return c.send(ctx, "restart", nil)
}

// Poke nudges the opponent. The local cooldown mirrors the server's so
// well-behaved clients never burn their budget on dropped pokes.
func (c *Client) Poke(ctx context.Context) error {
	c.mu.Lock()
	if time.Since(c.lastPoke) < 10*time.Second {
		c.mu.Unlock()
		return nil
	}
	c.lastPoke = time.Now()
	c.mu.Unlock()

	return c.send(ctx, "poke", nil)
}

// Reconnect resumes a reserved player slot using the session token the
// server issued on join.
func (c *Client) Reconnect(ctx context.Context, token string) error {
	return c.send(ctx, "reconnect", map[string]string{"token": token})
}
