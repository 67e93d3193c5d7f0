//go:build !production

package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ChatServer is an in-process WebSocket peer for client tests. It records
// every inbound frame and lets the test push frames back.
type ChatServer struct {
	*httptest.Server

	Frames chan []byte
	Conns  chan *websocket.Conn
	dials  atomic.Int32
}

// NewChatServer starts a server that accepts any upgrade on every path.
func NewChatServer(t testing.TB) *ChatServer {
	t.Helper()

	cs := &ChatServer{
		Frames: make(chan []byte, 64),
		Conns:  make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		cs.dials.Add(1)
		cs.Conns <- conn

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage {
				cs.Frames <- data
			}
		}
	}))
	t.Cleanup(cs.Close)
	return cs
}

// WSURL returns the ws:// address of the server.
func (cs *ChatServer) WSURL() string {
	return "ws" + strings.TrimPrefix(cs.URL, "http") + "/ws"
}

// Dials returns how many WebSocket upgrades succeeded.
func (cs *ChatServer) Dials() int {
	return int(cs.dials.Load())
}

// NextConn waits for the next accepted connection.
func (cs *ChatServer) NextConn(t testing.TB) *websocket.Conn {
	t.Helper()
	select {
	case c := <-cs.Conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

// NextFrame waits for the next text frame.
func (cs *ChatServer) NextFrame(t testing.TB) []byte {
	t.Helper()
	select {
	case f := <-cs.Frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// NoFrame asserts that nothing arrives within d.
func (cs *ChatServer) NoFrame(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case f := <-cs.Frames:
		t.Fatalf("unexpected frame: %s", f)
	case <-time.After(d):
	}
}
