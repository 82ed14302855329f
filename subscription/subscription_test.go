package subscription

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// feedServer is a minimal stand-in for the movement feed. It records every
// command it receives and hands each accepted connection to the test.
type feedServer struct {
	*httptest.Server
	upgrader websocket.Upgrader
	commands chan string
	conns    chan *websocket.Conn
	attempts atomic.Int64
	refuse   atomic.Int64 // number of upcoming handshakes to reject
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{
		commands: make(chan string, 32),
		conns:    make(chan *websocket.Conn, 32),
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *feedServer) handle(w http.ResponseWriter, r *http.Request) {
	fs.attempts.Add(1)
	if fs.refuse.Load() > 0 {
		fs.refuse.Add(-1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := fs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	fs.conns <- conn
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		fs.commands <- string(msg)
	}
}

func (fs *feedServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.URL, "http")
}

func (fs *feedServer) nextCommand(t *testing.T) string {
	t.Helper()
	select {
	case cmd := <-fs.commands:
		return cmd
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for command")
		return ""
	}
}

func (fs *feedServer) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fs.conns:
		return conn
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func fastOptions() Options {
	return Options{
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		BreakerCooldown: time.Hour,
	}
}

func TestSubscription_DeliversMessages(t *testing.T) {
	fs := newFeedServer(t)
	received := make(chan string, 4)
	sub := New(fs.wsURL(), "87701", func(_ context.Context, msg []byte) {
		received <- string(msg)
	}, fastOptions())

	require.NoError(t, sub.Open(context.Background()))
	defer func() { _ = sub.Close(context.Background()) }()

	conn := fs.nextConn(t)
	assert.Equal(t, "substanox:87701", fs.nextCommand(t))
	require.Eventually(t, func() bool { return sub.State() == Subscribed }, waitFor, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"Response":[]}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`second`)))

	select {
	case msg := <-received:
		assert.Equal(t, `{"Response":[]}`, msg)
	case <-time.After(waitFor):
		t.Fatal("message not delivered")
	}
	select {
	case msg := <-received:
		assert.Equal(t, "second", msg)
	case <-time.After(waitFor):
		t.Fatal("message not delivered")
	}
}

func TestSubscription_ReconnectsAfterDisconnect(t *testing.T) {
	fs := newFeedServer(t)
	sub := New(fs.wsURL(), "87701", func(context.Context, []byte) {}, fastOptions())

	require.NoError(t, sub.Open(context.Background()))
	defer func() { _ = sub.Close(context.Background()) }()

	first := fs.nextConn(t)
	assert.Equal(t, "substanox:87701", fs.nextCommand(t))

	// server side drop
	require.NoError(t, first.Close())

	fs.nextConn(t)
	assert.Equal(t, "substanox:87701", fs.nextCommand(t))
	require.Eventually(t, func() bool { return sub.Connects() == 2 }, waitFor, 5*time.Millisecond)
}

func TestSubscription_RetriesFailedConnects(t *testing.T) {
	fs := newFeedServer(t)
	fs.refuse.Store(3)
	sub := New(fs.wsURL(), "87701", func(context.Context, []byte) {}, fastOptions())

	require.NoError(t, sub.Open(context.Background()))
	defer func() { _ = sub.Close(context.Background()) }()

	fs.nextConn(t)
	assert.Equal(t, "substanox:87701", fs.nextCommand(t))
	assert.Equal(t, int64(4), fs.attempts.Load())
}

func TestSubscription_BreakerPausesReconnects(t *testing.T) {
	fs := newFeedServer(t)
	fs.refuse.Store(1000)
	opts := fastOptions()
	opts.BreakerThreshold = 3
	sub := New(fs.wsURL(), "87701", func(context.Context, []byte) {}, opts)

	require.NoError(t, sub.Open(context.Background()))
	require.Eventually(t, func() bool { return fs.attempts.Load() == 3 }, waitFor, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(3), fs.attempts.Load())
	assert.Equal(t, Disconnected, sub.State())

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, sub.Close(ctx))
	assert.Equal(t, Closed, sub.State())
}

func TestSubscription_CloseStopsReconnecting(t *testing.T) {
	fs := newFeedServer(t)
	sub := New(fs.wsURL(), "87701", func(context.Context, []byte) {}, fastOptions())

	require.NoError(t, sub.Open(context.Background()))
	fs.nextConn(t)
	assert.Equal(t, "substanox:87701", fs.nextCommand(t))
	require.Eventually(t, func() bool { return sub.State() == Subscribed }, waitFor, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, sub.Close(ctx))

	assert.Equal(t, "unsubstanox", fs.nextCommand(t))
	assert.Equal(t, Closed, sub.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), fs.attempts.Load())
	assert.Equal(t, uint64(1), sub.Connects())
}

func TestSubscription_CloseDuringSubscribe(t *testing.T) {
	for i := 0; i < 20; i++ {
		fs := newFeedServer(t)
		sub := New(fs.wsURL(), "87701", func(context.Context, []byte) {}, fastOptions())
		require.NoError(t, sub.Open(context.Background()))
		fs.nextConn(t)

		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		require.NoError(t, sub.Close(ctx))
		cancel()

		var commands []string
		for drained := false; !drained; {
			select {
			case cmd := <-fs.commands:
				commands = append(commands, cmd)
			case <-time.After(50 * time.Millisecond):
				drained = true
			}
		}
		if len(commands) > 0 {
			assert.Equal(t, "substanox:87701", commands[0], "attempt %d: %v", i, commands)
		}
		assert.LessOrEqual(t, len(commands), 2, "attempt %d: %v", i, commands)
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	sub := New("ws://127.0.0.1:1/unused", "87701", func(context.Context, []byte) {}, fastOptions())

	assert.NoError(t, sub.Close(context.Background()))
	assert.Equal(t, Idle, sub.State())

	fs := newFeedServer(t)
	sub = New(fs.wsURL(), "87701", func(context.Context, []byte) {}, fastOptions())
	require.NoError(t, sub.Open(context.Background()))
	fs.nextConn(t)

	assert.NoError(t, sub.Close(context.Background()))
	assert.NoError(t, sub.Close(context.Background()))
	assert.Equal(t, Closed, sub.State())
}

func TestSubscription_OpenTwice(t *testing.T) {
	fs := newFeedServer(t)
	sub := New(fs.wsURL(), "87701", func(context.Context, []byte) {}, fastOptions())

	require.NoError(t, sub.Open(context.Background()))
	defer func() { _ = sub.Close(context.Background()) }()

	assert.ErrorIs(t, sub.Open(context.Background()), ErrAlreadyOpen)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "subscribed", Subscribed.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "unknown", State(42).String())
}
