package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
)

// startTestServer runs handler for every accepted websocket and returns
// a ws:// URL pointing at it.
func startTestServer(t *testing.T, handler func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		handler(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// readCommand blocks until the next client command arrives.
func readCommand(ctx context.Context, conn *websocket.Conn) (clientMessage, error) {
	var msg clientMessage
	_, data, err := conn.Read(ctx)
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(data, &msg)
	return msg, err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestConnectIsIdempotent(t *testing.T) {
	assert := assert.New(t)

	var accepted atomic.Int32
	url := startTestServer(t, func(ctx context.Context, conn *websocket.Conn) {
		accepted.Add(1)
		<-ctx.Done()
	})

	c := New(Config{URL: url}, Handlers{})
	defer c.Close()

	assert.NoError(c.Connect(context.Background()))
	waitFor(t, func() bool { return c.State() == StateOpen })

	// A second Connect on an open client is a no-op.
	assert.NoError(c.Connect(context.Background()))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(int32(1), accepted.Load())
}

func TestQueueBoundedWhileDisconnected(t *testing.T) {
	assert := assert.New(t)

	c := New(Config{URL: "ws://unused", QueueSize: 2}, Handlers{})
	defer c.Close()

	ctx := context.Background()
	assert.NoError(c.SubmitGuess(ctx, "1234"))
	assert.NoError(c.SubmitGuess(ctx, "5678"))
	assert.ErrorIs(c.SubmitGuess(ctx, "9012"), ErrQueueFull)
}

func TestSendAfterCloseFails(t *testing.T) {
	assert := assert.New(t)

	c := New(Config{URL: "ws://unused"}, Handlers{})
	assert.NoError(c.Close())

	assert.ErrorIs(c.Ping(context.Background()), ErrClosed)
	assert.ErrorIs(c.Connect(context.Background()), ErrClosed)
	assert.Equal(StateIdle, c.State())
}

func TestQueueFlushedOnConnect(t *testing.T) {
	assert := assert.New(t)

	received := make(chan clientMessage, 4)
	url := startTestServer(t, func(ctx context.Context, conn *websocket.Conn) {
		for {
			msg, err := readCommand(ctx, conn)
			if err != nil {
				return
			}
			received <- msg
		}
	})

	c := New(Config{URL: url}, Handlers{})
	defer c.Close()

	ctx := context.Background()
	assert.NoError(c.CreateRoom(ctx, "Maximus"))
	assert.NoError(c.SetSecret(ctx, "1234"))

	assert.NoError(c.Connect(ctx))

	first := <-received
	second := <-received
	assert.Equal("create_room", first.Type)
	assert.Equal("secret", second.Type)
}

func TestStateUpdatesAreCached(t *testing.T) {
	assert := assert.New(t)

	url := startTestServer(t, func(ctx context.Context, conn *websocket.Conn) {
		push := `{"type":"state","payload":{"roomCode":"ABC123","status":"waiting","ownerId":"p1","p1":{"id":"p1","name":"Maximus","guesses":[]},"p2":{"id":"p2","guesses":[]},"spectators":0},"playerId":"p1","role":"player"}`
		conn.Write(ctx, websocket.MessageText, []byte(push))
		<-ctx.Done()
	})

	states := make(chan Snapshot, 1)
	c := New(Config{URL: url}, Handlers{
		OnState: func(s Snapshot) { states <- s },
	})
	defer c.Close()

	assert.NoError(c.Connect(context.Background()))

	snapshot := <-states
	assert.Equal("ABC123", snapshot.Game.RoomCode)
	assert.Equal("p1", snapshot.PlayerID)
	assert.Equal("player", snapshot.Role)

	cached, ok := c.LastSnapshot()
	assert.True(ok)
	assert.Equal("ABC123", cached.Game.RoomCode)
}

func TestErrorAndPokePushes(t *testing.T) {
	assert := assert.New(t)

	url := startTestServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Write(ctx, websocket.MessageText, []byte(`{"type":"error","payload":"TURN_VIOLATION: Not your turn"}`))
		conn.Write(ctx, websocket.MessageText, []byte(`{"type":"poke","payload":{"from":"Commodus"}}`))
		<-ctx.Done()
	})

	errs := make(chan string, 1)
	pokes := make(chan string, 1)
	c := New(Config{URL: url}, Handlers{
		OnError: func(msg string) { errs <- msg },
		OnPoke:  func(from string) { pokes <- from },
	})
	defer c.Close()

	assert.NoError(c.Connect(context.Background()))

	assert.Equal("TURN_VIOLATION: Not your turn", <-errs)
	assert.Equal("Commodus", <-pokes)
}

func TestGivesUpAfterRetryBudget(t *testing.T) {
	assert := assert.New(t)

	gaveUp := make(chan error, 1)
	c := New(Config{
		URL:            "ws://127.0.0.1:1", // nothing listening
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		MaxRetries:     3,
	}, Handlers{
		OnGiveUp: func(err error) { gaveUp <- err },
	})
	defer c.Close()

	assert.NoError(c.Connect(context.Background()))

	select {
	case err := <-gaveUp:
		assert.Error(err)
	case <-time.After(5 * time.Second):
		t.Fatal("client never gave up")
	}
	assert.Equal(StateIdle, c.State())
}

func TestJitterStaysBounded(t *testing.T) {
	assert := assert.New(t)

	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := jitter(base)
		assert.GreaterOrEqual(d, base)
		assert.LessOrEqual(d, base+base/5)
	}
}
