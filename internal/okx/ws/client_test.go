package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func wsServer(t *testing.T, handler func(conn *websocket.Conn, connIndex int64)) string {
	t.Helper()
	var connections atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		handler(conn, connections.Add(1))
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClientResubscribesAfterReconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	frames := make(chan string, 4)
	url := wsServer(t, func(conn *websocket.Conn, connIndex int64) {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		frames <- string(data)
		if connIndex == 1 {
			// drop the first connection right after the subscribe
			return
		}
		<-ctx.Done()
	})

	client, err := New(Options{URL: url, ReconnectDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Subscribe(ctx, map[string]string{"op": "subscribe", "channel": "tickers"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() { _ = client.Run(runCtx, nil) }()

	for i := 0; i < 2; i++ {
		select {
		case frame := <-frames:
			if !strings.Contains(frame, "subscribe") {
				t.Fatalf("connection %d received %q, want subscribe frame", i+1, frame)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for subscribe frame on connection %d", i+1)
		}
	}
}

func TestClientSendsLiteralPing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	frames := make(chan string, 1)
	url := wsServer(t, func(conn *websocket.Conn, connIndex int64) {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		select {
		case frames <- string(data):
		default:
		}
		<-ctx.Done()
	})

	client, err := New(Options{URL: url, ReconnectDelay: time.Second, PingInterval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() { _ = client.Run(runCtx, nil) }()

	select {
	case frame := <-frames:
		if frame != "ping" {
			t.Fatalf("keepalive frame = %q, want literal ping", frame)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for ping")
	}
}

func TestClientFiltersPong(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := wsServer(t, func(conn *websocket.Conn, connIndex int64) {
		_ = conn.Write(ctx, websocket.MessageText, []byte("pong"))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event":"subscribe"}`))
		<-ctx.Done()
	})

	client, err := New(Options{URL: url, ReconnectDelay: time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	received := make(chan json.RawMessage, 2)
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, func(msg json.RawMessage) { received <- msg })
	}()

	select {
	case msg := <-received:
		if strings.Contains(string(msg), "pong") {
			t.Fatalf("pong delivered to handler: %q", msg)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for data message")
	}
}

func TestClientConnectHookRunsBeforeReplay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	frames := make(chan string, 4)
	url := wsServer(t, func(conn *websocket.Conn, connIndex int64) {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			frames <- string(data)
		}
	})

	client, err := New(Options{URL: url, ReconnectDelay: time.Second, Log: zap.NewNop()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetConnectHook(func(ctx context.Context, c *Client) error {
		return c.Send(ctx, map[string]string{"op": "login"})
	})
	if err := client.Subscribe(ctx, map[string]string{"op": "subscribe"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() { _ = client.Run(runCtx, nil) }()

	first := <-frames
	second := <-frames
	if !strings.Contains(first, "login") {
		t.Fatalf("first frame = %q, want login", first)
	}
	if !strings.Contains(second, "subscribe") {
		t.Fatalf("second frame = %q, want subscribe", second)
	}
}
