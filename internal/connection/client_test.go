package connection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/position-relay/internal/position"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url, clientID string) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = url
	cfg.ClientID = clientID
	cfg.WriteTimeout = 5 * time.Second
	return cfg
}

func TestClient_HandshakeFrameFirst(t *testing.T) {
	frames := make(chan []byte, 4)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.BinaryMessage {
				t.Errorf("message type = %d, want binary", msgType)
			}
			frames <- msg
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server), "alice"), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}
	if err := client.SendPosition("BTC", 1.5); err != nil {
		t.Fatalf("SendPosition failed: %v", err)
	}

	var got [][]byte
	for len(got) < 2 {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d frames, want 2", len(got))
		}
	}

	if string(got[0]) != "alice" {
		t.Errorf("first frame = %q, want client id", got[0])
	}
	pos, err := position.Decode(got[1])
	if err != nil {
		t.Fatalf("Decode second frame: %v", err)
	}
	if pos != (position.SymbolPosition{Symbol: "BTC", NetPosition: 1.5}) {
		t.Errorf("second frame = %+v", pos)
	}
}

func TestClient_MirrorsBroadcasts(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		frames := [][]byte{
			position.Encode(position.SymbolPosition{Symbol: "ETH", NetPosition: 3}.Qualify("bob")),
			position.Encode(position.SymbolPosition{Symbol: "BTCXYZ", NetPosition: 9}), // no qualifier
			[]byte("short"),
			position.Encode(position.SymbolPosition{Symbol: "BTC", NetPosition: -0.5}.Qualify("carol")),
			position.Encode(position.SymbolPosition{Symbol: "ETH", NetPosition: 4}.Qualify("bob")),
		}
		text := position.Encode(position.SymbolPosition{Symbol: "SOL", NetPosition: 7}.Qualify("dave"))
		if err := conn.WriteMessage(websocket.TextMessage, text); err != nil {
			return
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.BinaryMessage, f); err != nil {
				return
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server), "alice"), nil)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var updates []Update
	for len(updates) < 3 {
		select {
		case u := <-client.Updates():
			updates = append(updates, u)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d updates, want 3", len(updates))
		}
	}

	if updates[0].ClientID != "bob" || updates[0].Position.Symbol != "ETH" {
		t.Errorf("first update = %+v", updates[0])
	}

	mirror := client.Mirror()
	if len(mirror) != 2 {
		t.Fatalf("mirror has %d clients, want 2: %v", len(mirror), mirror)
	}
	if p, ok := client.Position("bob", "ETH"); !ok || p.NetPosition != 4 {
		t.Errorf("bob ETH = %+v, %v; want 4", p, ok)
	}
	if p, ok := client.Position("carol", "BTC"); !ok || p.NetPosition != -0.5 {
		t.Errorf("carol BTC = %+v, %v; want -0.5", p, ok)
	}
	if _, ok := mirror["alice"]; ok {
		t.Error("mirror contains own client id")
	}
	if _, ok := mirror["dave"]; ok {
		t.Error("mirror contains a client sent as a text frame")
	}
	if !client.IsConnected() {
		t.Error("malformed frames should not close the connection")
	}
}

func TestClient_SendPositionErrors(t *testing.T) {
	client := NewClient(testClientConfig("ws://127.0.0.1:1/", "alice"), nil)

	if err := client.SendPosition("BTC", 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendPosition before Connect = %v, want ErrNotConnected", err)
	}

	tests := []string{"", "BT", "TOOLONGSYM"}
	for _, symbol := range tests {
		if err := client.SendPosition(symbol, 1); !errors.Is(err, position.ErrFrameLength) {
			t.Errorf("SendPosition(%q) = %v, want ErrFrameLength", symbol, err)
		}
	}
}

func TestClient_DialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	client := NewClient(testClientConfig(url, "alice"), nil)
	err := client.Connect(context.Background())

	var te *TransportError
	if !errors.As(err, &te) || te.Op != "dial" {
		t.Errorf("Connect() error = %v, want dial TransportError", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected should be false after failed dial")
	}
}

func TestClient_ServerCloseAndReconnect(t *testing.T) {
	handshakes := make(chan string, 2)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		handshakes <- string(msg)
		// handler returns and the deferred Close drops the connection
	})
	defer server.Close()

	client := NewClient(testClientConfig(wsURL(server), "alice"), nil)
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case err := <-client.Errors():
		var te *TransportError
		if !errors.As(err, &te) {
			t.Errorf("error = %v, want TransportError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connection error")
	}
	if client.IsConnected() {
		t.Error("IsConnected should be false after server close")
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case id := <-handshakes:
			if id != "alice" {
				t.Errorf("handshake %d = %q, want alice", i, id)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for handshake %d", i)
		}
	}
}

func TestClient_ConnectAfterClose(t *testing.T) {
	client := NewClient(testClientConfig("ws://127.0.0.1:1/", "alice"), nil)

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := client.Connect(context.Background()); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Connect after Close = %v, want ErrAlreadyClosed", err)
	}
}
