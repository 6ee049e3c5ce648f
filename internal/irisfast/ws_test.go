package irisfast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestWebSocketRoundTrip(t *testing.T) {
	replies := make(chan ReplyRequest, 1)
	headers := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("X-User-Id")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		sender := "Alice"
		_ = wsjson.Write(ctx, conn, Message{Msg: "!help", Room: "room-1", Sender: &sender, JSON: &MessageJSON{UserID: "7"}})
		var rr ReplyRequest
		if err := wsjson.Read(ctx, conn, &rr); err == nil {
			replies <- rr
		}
		_, _, _ = conn.Read(ctx)
	}))
	defer srv.Close()

	ws := NewWebSocket("ws"+strings.TrimPrefix(srv.URL, "http"), 0, 10*time.Millisecond)
	ws.SetHeaderProvider(func() map[string]string { return map[string]string{"X-User-Id": "bot"} })
	got := make(chan *Message, 1)
	ws.OnMessage(func(m *Message) { got <- m })
	var states []WebSocketState
	ws.OnStateChange(func(s WebSocketState) { states = append(states, s) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if h := <-headers; h != "bot" {
		t.Fatalf("handshake header = %q", h)
	}

	select {
	case m := <-got:
		if m.Room != "room-1" || m.UserID() != "7" || m.SenderName() != "Alice" {
			t.Fatalf("message = %+v", m)
		}
	case <-ctx.Done():
		t.Fatalf("no message received")
	}

	if err := NewEgress("ws", false, nil, ws, nil).SendText(ctx, "room-1", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	select {
	case rr := <-replies:
		if rr.Type != "text" || rr.Room != "room-1" || rr.Data != "hello" {
			t.Fatalf("reply = %+v", rr)
		}
	case <-ctx.Done():
		t.Fatalf("no reply frame received")
	}

	if err := ws.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ws.Connected() {
		t.Fatalf("still connected after Close")
	}
	if len(states) < 2 || states[0] != WSStateConnecting || states[1] != WSStateConnected {
		t.Fatalf("states = %v", states)
	}
}
