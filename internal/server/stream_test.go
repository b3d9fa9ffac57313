package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/botcharts/internal/api"
	"github.com/rickgao/botcharts/internal/model"
)

func dialStream(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(env.srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chart/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) streamEvent {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev streamEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_SubscribeReceivesQuotes(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	conn := dialStream(t, env)

	if err := conn.WriteJSON(streamCommand{Action: "subscribe", Symbol: "R_100", Granularity: 60}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "subscribed" || ev.Symbol != "R_100" || ev.Granularity != 60 {
		t.Fatalf("event = %+v, want subscribed", ev)
	}

	env.chart.push(model.NewCandleQuote(1741000020, 10, 12, 9, 11))

	ev := readEvent(t, conn)
	if ev.Type != "quote" || ev.Quote == nil {
		t.Fatalf("event = %+v, want quote", ev)
	}
	if ev.Quote.Date != "1741000020" || ev.Quote.Close != 11 || !ev.Quote.IsCandle() {
		t.Errorf("quote = %+v", ev.Quote)
	}
}

func TestStream_DuplicateSubscribeKeepsOneListener(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	conn := dialStream(t, env)

	for i := 0; i < 2; i++ {
		conn.WriteJSON(streamCommand{Action: "subscribe", Symbol: "R_100"})
		if ev := readEvent(t, conn); ev.Type != "subscribed" {
			t.Fatalf("event = %+v", ev)
		}
	}
	if n := env.chart.listenerCount(); n != 1 {
		t.Errorf("listeners = %d, want 1", n)
	}
}

func TestStream_Unsubscribe(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	conn := dialStream(t, env)

	conn.WriteJSON(streamCommand{Action: "subscribe", Symbol: "R_100"})
	readEvent(t, conn)

	conn.WriteJSON(streamCommand{Action: "unsubscribe", Symbol: "R_100"})
	if ev := readEvent(t, conn); ev.Type != "unsubscribed" {
		t.Fatalf("event = %+v, want unsubscribed", ev)
	}
	if n := env.chart.listenerCount(); n != 0 {
		t.Errorf("listeners = %d, want 0", n)
	}
}

func TestStream_DisconnectReleasesListeners(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	conn := dialStream(t, env)

	conn.WriteJSON(streamCommand{Action: "subscribe", Symbol: "R_100"})
	readEvent(t, conn)
	conn.WriteJSON(streamCommand{Action: "subscribe", Symbol: "frxEURUSD", Granularity: 300})
	readEvent(t, conn)

	if n := env.chart.listenerCount(); n != 2 {
		t.Fatalf("listeners = %d, want 2", n)
	}

	conn.Close()
	waitUntil(t, func() bool { return env.chart.listenerCount() == 0 })
}

func TestStream_Errors(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	conn := dialStream(t, env)

	conn.WriteJSON(streamCommand{Action: "subscribe"})
	if ev := readEvent(t, conn); ev.Type != "error" || ev.Field != "symbol" {
		t.Errorf("missing symbol: event = %+v", ev)
	}

	conn.WriteJSON(streamCommand{Action: "dance", Symbol: "R_100"})
	if ev := readEvent(t, conn); ev.Type != "error" {
		t.Errorf("unknown action: event = %+v", ev)
	}

	env.chart.failSubscribe(&api.Error{Code: "InvalidSymbol", Message: "Symbol XYZ invalid."})
	conn.WriteJSON(streamCommand{Action: "subscribe", Symbol: "XYZ"})
	ev := readEvent(t, conn)
	if ev.Type != "error" || ev.Field != "symbol" || ev.Message != "This symbol is not available." {
		t.Errorf("api error: event = %+v", ev)
	}
}

func TestStream_StopClosesConnections(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	conn := dialStream(t, env)

	conn.WriteJSON(streamCommand{Action: "subscribe", Symbol: "R_100"})
	readEvent(t, conn)

	env.srv.cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to close")
	}
	waitUntil(t, func() bool { return env.chart.listenerCount() == 0 })
}
