package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rickgao/botcharts/internal/api"
	"github.com/rickgao/botcharts/internal/chart"
	"github.com/rickgao/botcharts/internal/model"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
	streamOutBuffer  = 256
)

// streamCommand is sent by the browser.
type streamCommand struct {
	Action      string `json:"action"` // "subscribe" or "unsubscribe"
	Symbol      string `json:"symbol"`
	Granularity int    `json:"granularity"`
}

// streamEvent is sent to the browser.
type streamEvent struct {
	Type        string       `json:"type"` // "subscribed", "unsubscribed", "quote" or "error"
	Symbol      string       `json:"symbol,omitempty"`
	Granularity int          `json:"granularity"`
	Quote       *model.Quote `json:"quote,omitempty"`
	Field       string       `json:"field,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// streamConn is one browser connection and its quote listeners.
type streamConn struct {
	srv  *Server
	conn *websocket.Conn
	out  chan streamEvent
	done chan struct{}

	mu   sync.Mutex
	subs map[string]streamSub // by stream key
}

type streamSub struct {
	req        chart.QuotesRequest
	listenerID string
}

func (s *Server) upgrader() *websocket.Upgrader {
	origins := s.cfg.CORSOrigins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll(origins) {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, o := range origins {
				if o == origin || o == u.Host {
					return true
				}
			}
			return false
		},
	}
}

func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("stream upgrade failed", "error", err)
		return
	}

	sc := &streamConn{
		srv:  s,
		conn: conn,
		out:  make(chan streamEvent, streamOutBuffer),
		done: make(chan struct{}),
		subs: make(map[string]streamSub),
	}

	s.streams.Add(1)
	s.deps.Metrics.StreamClientConnected(1)
	defer func() {
		s.deps.Metrics.StreamClientConnected(-1)
		s.streams.Done()
	}()

	go sc.writeLoop()
	sc.readLoop()
}

// readLoop handles commands until the browser or the server goes away.
func (sc *streamConn) readLoop() {
	defer sc.close()

	sc.conn.SetReadLimit(4096)
	sc.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	sc.conn.SetPongHandler(func(string) error {
		return sc.conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	// Unblock ReadJSON when the server stops.
	stop := context.AfterFunc(sc.srv.ctx, func() { sc.conn.Close() })
	defer stop()

	for {
		var cmd streamCommand
		if err := sc.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sc.srv.logger.Debug("stream read failed", "error", err)
			}
			return
		}
		sc.handle(cmd)
	}
}

func (sc *streamConn) handle(cmd streamCommand) {
	req := chart.QuotesRequest{Symbol: cmd.Symbol, Granularity: cmd.Granularity}

	switch cmd.Action {
	case "subscribe":
		sc.subscribe(req)
	case "unsubscribe":
		sc.unsubscribe(req)
	default:
		sc.send(streamEvent{Type: "error", Message: "unknown action " + cmd.Action})
	}
}

func (sc *streamConn) subscribe(req chart.QuotesRequest) {
	if req.Symbol == "" || req.Granularity < 0 {
		sc.send(streamEvent{Type: "error", Field: "symbol", Message: "symbol is required"})
		return
	}
	key := req.Key()

	sc.mu.Lock()
	_, exists := sc.subs[key]
	sc.mu.Unlock()
	if exists {
		sc.send(streamEvent{Type: "subscribed", Symbol: req.Symbol, Granularity: req.Granularity})
		return
	}

	id, err := sc.srv.deps.Chart.SubscribeQuotes(sc.srv.ctx, req, func(q model.Quote) {
		sc.send(streamEvent{Type: "quote", Symbol: req.Symbol, Granularity: req.Granularity, Quote: &q})
	})
	if err != nil {
		sc.srv.logger.Warn("stream subscribe failed", "symbol", req.Symbol, "error", err)
		sc.send(subscribeError(req, err))
		return
	}

	sc.mu.Lock()
	sc.subs[key] = streamSub{req: req, listenerID: id}
	sc.mu.Unlock()

	sc.send(streamEvent{Type: "subscribed", Symbol: req.Symbol, Granularity: req.Granularity})
}

func subscribeError(req chart.QuotesRequest, err error) streamEvent {
	ev := streamEvent{Type: "error", Symbol: req.Symbol, Granularity: req.Granularity}
	if apiErr, ok := api.AsError(err); ok {
		fe := api.ToFieldError(apiErr)
		ev.Field, ev.Message = fe.Field, fe.Message
		return ev
	}
	if errors.Is(err, chart.ErrMissingSymbol) {
		ev.Field = "symbol"
	}
	ev.Message = "subscription failed"
	return ev
}

func (sc *streamConn) unsubscribe(req chart.QuotesRequest) {
	key := req.Key()

	sc.mu.Lock()
	sub, ok := sc.subs[key]
	delete(sc.subs, key)
	sc.mu.Unlock()

	if ok {
		if err := sc.srv.deps.Chart.UnsubscribeQuotes(sc.srv.ctx, sub.req, sub.listenerID); err != nil {
			sc.srv.logger.Warn("stream unsubscribe failed", "symbol", req.Symbol, "error", err)
		}
	}
	sc.send(streamEvent{Type: "unsubscribed", Symbol: req.Symbol, Granularity: req.Granularity})
}

// send queues an event. Quotes are dropped when the browser cannot keep up.
func (sc *streamConn) send(ev streamEvent) {
	select {
	case <-sc.done:
	case sc.out <- ev:
	default:
		sc.srv.logger.Debug("stream client slow, dropping event", "type", ev.Type)
	}
}

func (sc *streamConn) writeLoop() {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-sc.done:
			return
		case ev := <-sc.out:
			sc.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := sc.conn.WriteJSON(ev); err != nil {
				sc.conn.Close()
				return
			}
		case <-ticker.C:
			sc.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := sc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sc.conn.Close()
				return
			}
		}
	}
}

// close releases every listener of the connection.
func (sc *streamConn) close() {
	close(sc.done)

	sc.mu.Lock()
	subs := sc.subs
	sc.subs = make(map[string]streamSub)
	sc.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for key, sub := range subs {
		if err := sc.srv.deps.Chart.UnsubscribeQuotes(ctx, sub.req, sub.listenerID); err != nil {
			sc.srv.logger.Debug("stream cleanup failed", "key", key, "error", err)
		}
	}
	sc.conn.Close()
}
