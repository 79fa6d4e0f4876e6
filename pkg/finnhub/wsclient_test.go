package finnhub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type staticSymbols []string

func (s staticSymbols) GetAll() []string { return s }

// go test -v --run TestWSClientSubscribeAndReceive
func TestWSClientSubscribeAndReceive(t *testing.T) {
	subscribed := make(chan string, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for i := 0; i < 2; i++ {
			var msg subscribeMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "subscribe" {
				subscribed <- msg.Symbol
			}
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"p":190.25,"s":"AAPL","t":1721052000000,"v":15}]}`))

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWSClient(wsURL, "tok", staticSymbols{"AAPL", "MSFT"}, zap.NewNop())

	received := make(chan TradeMessage, 1)
	client.SetMessageHandler(func(b []byte) {
		var m TradeMessage
		if err := json.Unmarshal(b, &m); err == nil {
			received <- m
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	go client.Listen(ctx)

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		got[<-subscribed] = true
	}
	if !got["AAPL"] || !got["MSFT"] {
		t.Fatalf("subscriptions = %v", got)
	}

	select {
	case m := <-received:
		if m.Type != "trade" || len(m.Data) != 1 || m.Data[0].Symbol != "AAPL" || m.Data[0].Price != 190.25 {
			t.Fatalf("unexpected message: %+v", m)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for trade")
	}
}
